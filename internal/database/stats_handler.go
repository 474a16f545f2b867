package database

import (
	"context"
	"time"

	"nophish/internal/domain"

	"gorm.io/gorm"
)

const topDomainsLimit = 5

type DomainCount struct {
	Domain string
	Count  int64
}

// GuildStats summarises protection activity for one guild.
type GuildStats struct {
	TotalDetections   int64
	MonthlyDetections int64
	WeeklyDetections  int64
	TotalReports      int64
	MonthlyReports    int64
	WhitelistSize     int64
	ActiveScamDomains int64
	TopDomains        []DomainCount
}

// GuildStats computes detection and report counters relative to now.
func (s *Store) GuildStats(ctx context.Context, guildID string, now time.Time) (GuildStats, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return GuildStats{}, err
	}

	now = now.UTC()
	monthAgo := now.AddDate(0, 0, -30)
	weekAgo := now.AddDate(0, 0, -7)

	var stats GuildStats
	detections := db.Model(&domain.DetectionLog{}).Where("guild_id = ?", guildID)
	reports := db.Model(&domain.DomainReport{}).Where("guild_id = ?", guildID)

	if err := detections.Session(&gorm.Session{}).Count(&stats.TotalDetections).Error; err != nil {
		return GuildStats{}, err
	}
	if err := detections.Session(&gorm.Session{}).Where("detection_date >= ?", monthAgo).Count(&stats.MonthlyDetections).Error; err != nil {
		return GuildStats{}, err
	}
	if err := detections.Session(&gorm.Session{}).Where("detection_date >= ?", weekAgo).Count(&stats.WeeklyDetections).Error; err != nil {
		return GuildStats{}, err
	}
	if err := reports.Session(&gorm.Session{}).Count(&stats.TotalReports).Error; err != nil {
		return GuildStats{}, err
	}
	if err := reports.Session(&gorm.Session{}).Where("report_date >= ?", monthAgo).Count(&stats.MonthlyReports).Error; err != nil {
		return GuildStats{}, err
	}

	if stats.WhitelistSize, err = s.CountWhitelist(ctx, guildID); err != nil {
		return GuildStats{}, err
	}
	if stats.ActiveScamDomains, err = s.CountActiveScams(ctx); err != nil {
		return GuildStats{}, err
	}

	err = db.Model(&domain.DetectionLog{}).
		Select("domain, COUNT(*) AS count").
		Where("guild_id = ? AND detection_date >= ?", guildID, monthAgo).
		Group("domain").
		Order("count DESC").
		Order("domain ASC").
		Limit(topDomainsLimit).
		Scan(&stats.TopDomains).Error
	if err != nil {
		return GuildStats{}, err
	}

	return stats, nil
}
