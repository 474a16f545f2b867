package database

import (
	"context"
	"errors"
	"time"

	"nophish/internal/domain"

	"gorm.io/gorm"
)

// GetServerConfig returns the stored settings for the guild or the defaults
// when the guild has never been configured. Defaults are not persisted.
func (s *Store) GetServerConfig(ctx context.Context, guildID string) (domain.ServerConfig, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return domain.DefaultServerConfig(guildID), err
	}
	return loadServerConfig(db, guildID)
}

func loadServerConfig(db *gorm.DB, guildID string) (domain.ServerConfig, error) {
	var cfg domain.ServerConfig
	err := db.Where("guild_id = ?", guildID).Take(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DefaultServerConfig(guildID), nil
	}
	if err != nil {
		return domain.DefaultServerConfig(guildID), err
	}
	return cfg, nil
}

// UpdateServerConfig applies fn to the guild's current settings and persists
// the result. Concurrent updates are serialised so none is lost.
func (s *Store) UpdateServerConfig(ctx context.Context, guildID string, fn func(*domain.ServerConfig) error) (domain.ServerConfig, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return domain.ServerConfig{}, err
	}

	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	var updated domain.ServerConfig
	err = db.Transaction(func(tx *gorm.DB) error {
		cfg, err := loadServerConfig(tx, guildID)
		if err != nil {
			return err
		}
		if err := fn(&cfg); err != nil {
			return err
		}

		cfg.GuildID = guildID
		cfg.LastUpdated = time.Now().UTC()
		if err := tx.Save(&cfg).Error; err != nil {
			return err
		}
		updated = cfg
		return nil
	})
	if err != nil {
		return domain.ServerConfig{}, err
	}
	return updated, nil
}

func (s *Store) CountDefendingGuilds(ctx context.Context) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.Model(&domain.ServerConfig{}).Where("defending_mode = ?", true).Count(&count).Error
	return count, err
}
