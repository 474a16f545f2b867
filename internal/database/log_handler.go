package database

import (
	"context"
	"errors"
	"time"

	"nophish/internal/domain"

	"gorm.io/gorm"
)

// InsertDetectionLog appends one detection record.
func (s *Store) InsertDetectionLog(ctx context.Context, entry *domain.DetectionLog) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if entry == nil {
		return errors.New("database: nil detection log")
	}

	entry.Domain = normalizeKey(entry.Domain)
	entry.MessageContent = domain.TruncateMessageContent(entry.MessageContent)
	if entry.DetectionDate.IsZero() {
		entry.DetectionDate = time.Now()
	}
	entry.DetectionDate = entry.DetectionDate.UTC()
	return db.Create(entry).Error
}

// HistoryQuery filters detection logs for one guild.
type HistoryQuery struct {
	GuildID string
	Domain  string
	Since   time.Time
	Limit   int
}

// DetectionHistory returns the most recent detections matching the query, newest first.
func (s *Store) DetectionHistory(ctx context.Context, q HistoryQuery) ([]domain.DetectionLog, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Where("guild_id = ? AND detection_date >= ?", q.GuildID, q.Since.UTC())
	if q.Domain != "" {
		query = query.Where("domain = ?", normalizeKey(q.Domain))
	}
	query = query.Order("detection_date DESC").Order("id DESC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []domain.DetectionLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertReport appends one user-submitted domain report.
func (s *Store) InsertReport(ctx context.Context, report *domain.DomainReport) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if report == nil {
		return errors.New("database: nil domain report")
	}

	report.Domain = normalizeKey(report.Domain)
	report.IsProcessed = false
	if report.ReportDate.IsZero() {
		report.ReportDate = time.Now()
	}
	report.ReportDate = report.ReportDate.UTC()
	return db.Create(report).Error
}

// InsertImportLog appends the summary of one feed import run.
func (s *Store) InsertImportLog(ctx context.Context, entry *domain.ImportLog) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if entry == nil {
		return errors.New("database: nil import log")
	}
	if entry.ImportDate.IsZero() {
		entry.ImportDate = time.Now().UTC()
	}
	return db.Create(entry).Error
}

// LatestImportLog returns the newest import summary, or nil when no run imported anything yet.
func (s *Store) LatestImportLog(ctx context.Context) (*domain.ImportLog, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var entry domain.ImportLog
	err = db.Order("import_date DESC").Order("id DESC").Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) CountImportLogs(ctx context.Context) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.Model(&domain.ImportLog{}).Count(&count).Error
	return count, err
}
