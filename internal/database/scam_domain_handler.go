package database

import (
	"context"
	"errors"
	"time"

	"nophish/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	scamInsertBatchSize = 1000
)

// UpsertOutcome describes what an upsert did to the stored row.
type UpsertOutcome int

const (
	UpsertUnchanged UpsertOutcome = iota
	UpsertInserted
	UpsertReactivated
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertReactivated:
		return "reactivated"
	default:
		return "unchanged"
	}
}

// Changed reports whether the upsert made the domain newly active.
func (o UpsertOutcome) Changed() bool {
	return o == UpsertInserted || o == UpsertReactivated
}

// IsActiveScam reports whether an active row exists for the domain, ignoring case.
func (s *Store) IsActiveScam(ctx context.Context, name string) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	err = db.Model(&domain.ScamDomain{}).
		Where("LOWER(domain) = ? AND is_active = ?", normalizeKey(name), true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindScam returns the row for the domain regardless of state, or nil when none exists.
func (s *Store) FindScam(ctx context.Context, name string) (*domain.ScamDomain, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	return findScam(db, name)
}

func findScam(db *gorm.DB, name string) (*domain.ScamDomain, error) {
	var row domain.ScamDomain
	err := db.Where("LOWER(domain) = ?", normalizeKey(name)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertScam makes the domain active. An inactive row is reactivated with fresh
// metadata, an active row is left untouched, and a missing row is inserted.
// Concurrent calls for the same domain leave exactly one row behind.
func (s *Store) UpsertScam(ctx context.Context, name, source, notes string) (UpsertOutcome, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return UpsertUnchanged, err
	}

	key := normalizeKey(name)
	if key == "" {
		return UpsertUnchanged, errors.New("database: empty domain")
	}

	s.scamMu.Lock()
	defer s.scamMu.Unlock()

	outcome := UpsertUnchanged
	err = db.Transaction(func(tx *gorm.DB) error {
		existing, err := findScam(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		switch {
		case existing == nil:
			row := domain.ScamDomain{
				Domain:          key,
				DetectionSource: source,
				Notes:           notes,
				IsActive:        true,
				DateAdded:       now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			outcome = UpsertInserted
		case !existing.IsActive:
			updates := map[string]any{
				"is_active":        true,
				"date_added":       now,
				"detection_source": source,
				"notes":            notes,
			}
			if err := tx.Model(&domain.ScamDomain{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return err
			}
			outcome = UpsertReactivated
		}
		return nil
	})
	if err != nil {
		return UpsertUnchanged, err
	}
	return outcome, nil
}

// DeactivateScam soft-deletes the domain. It reports whether an active row was changed.
func (s *Store) DeactivateScam(ctx context.Context, name string) (bool, error) {
	return s.setScamActive(ctx, name, false)
}

// ReactivateScam flips an inactive row back to active and refreshes its date.
func (s *Store) ReactivateScam(ctx context.Context, name string) (bool, error) {
	return s.setScamActive(ctx, name, true)
}

func (s *Store) setScamActive(ctx context.Context, name string, active bool) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}

	s.scamMu.Lock()
	defer s.scamMu.Unlock()

	updates := map[string]any{"is_active": active}
	if active {
		updates["date_added"] = time.Now().UTC()
	}

	res := db.Model(&domain.ScamDomain{}).
		Where("LOWER(domain) = ? AND is_active = ?", normalizeKey(name), !active).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) CountActiveScams(ctx context.Context) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&domain.ScamDomain{}).Where("is_active = ?", true).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListActiveScamDomains returns every active domain; it is the source for cache reloads.
func (s *Store) ListActiveScamDomains(ctx context.Context) ([]string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var domains []string
	if err := db.Model(&domain.ScamDomain{}).Where("is_active = ?", true).Pluck("domain", &domains).Error; err != nil {
		return nil, err
	}
	return domains, nil
}

// ListKnownScamDomains returns every stored domain, active or not.
func (s *Store) ListKnownScamDomains(ctx context.Context) ([]string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var domains []string
	if err := db.Model(&domain.ScamDomain{}).Pluck("domain", &domains).Error; err != nil {
		return nil, err
	}
	return domains, nil
}

// BatchResult reports what one feed batch did.
type BatchResult struct {
	Inserted int64
	// Active lists the batch domains stored as active once the batch committed,
	// whether this batch inserted them or they already were.
	Active []string
}

// InsertScamBatch inserts new active rows in one transaction, skipping domains
// that already exist in any state.
func (s *Store) InsertScamBatch(ctx context.Context, names []string, source, notes string) (BatchResult, error) {
	var result BatchResult

	db, err := s.conn(ctx)
	if err != nil {
		return result, err
	}

	now := time.Now().UTC()
	keys := make([]string, 0, len(names))
	records := make([]domain.ScamDomain, 0, len(names))
	for _, name := range names {
		key := normalizeKey(name)
		if key == "" {
			continue
		}
		keys = append(keys, key)
		records = append(records, domain.ScamDomain{
			Domain:          key,
			DetectionSource: source,
			Notes:           notes,
			IsActive:        true,
			DateAdded:       now,
		})
	}
	if len(records) == 0 {
		return result, nil
	}

	s.scamMu.Lock()
	defer s.scamMu.Unlock()

	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "domain"}},
			DoNothing: true,
		}).CreateInBatches(&records, scamInsertBatchSize)
		if res.Error != nil {
			return res.Error
		}
		result.Inserted = res.RowsAffected

		return tx.Model(&domain.ScamDomain{}).
			Where("domain IN ? AND is_active = ?", keys, true).
			Pluck("domain", &result.Active).Error
	})
	if err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

// ListScamsBySource returns up to limit active rows for a detection source ordered by domain.
func (s *Store) ListScamsBySource(ctx context.Context, source string, limit int) ([]domain.ScamDomain, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []domain.ScamDomain
	query := db.Where("is_active = ? AND detection_source = ?", true, source).Order("domain ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
