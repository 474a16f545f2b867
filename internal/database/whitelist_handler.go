package database

import (
	"context"
	"errors"
	"time"

	"nophish/internal/domain"

	"gorm.io/gorm"
)

// IsWhitelisted reports whether an active entry exists for the domain in the
// guild's scope or the global scope.
func (s *Store) IsWhitelisted(ctx context.Context, name, guildID string) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}

	scopes := []string{domain.GlobalScope}
	if guildID != "" && guildID != domain.GlobalScope {
		scopes = append(scopes, guildID)
	}

	var count int64
	err = db.Model(&domain.WhitelistDomain{}).
		Where("LOWER(domain) = ? AND is_active = ? AND guild_scope IN ?", normalizeKey(name), true, scopes).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddWhitelist stores the entry or reactivates an inactive entry for the same
// (domain, scope) pair. An already active entry is left unchanged.
func (s *Store) AddWhitelist(ctx context.Context, entry domain.WhitelistDomain) (UpsertOutcome, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return UpsertUnchanged, err
	}

	entry.Domain = normalizeKey(entry.Domain)
	if entry.Domain == "" {
		return UpsertUnchanged, errors.New("database: empty domain")
	}
	if entry.GuildScope == "" {
		entry.GuildScope = domain.GlobalScope
	}
	entry.IsActive = true
	if entry.DateAdded.IsZero() {
		entry.DateAdded = time.Now().UTC()
	}

	outcome := UpsertUnchanged
	err = db.Transaction(func(tx *gorm.DB) error {
		var existing domain.WhitelistDomain
		err := tx.Where("domain = ? AND guild_scope = ?", entry.Domain, entry.GuildScope).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			outcome = UpsertInserted
			return nil
		case err != nil:
			return err
		case existing.IsActive:
			return nil
		}

		updates := map[string]any{
			"is_active":         true,
			"date_added":        entry.DateAdded,
			"reason":            entry.Reason,
			"guild_name":        entry.GuildName,
			"added_by_user_id":  entry.AddedByUserID,
			"added_by_username": entry.AddedByUsername,
		}
		if err := tx.Model(&domain.WhitelistDomain{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return err
		}
		outcome = UpsertReactivated
		return nil
	})
	if err != nil {
		return UpsertUnchanged, err
	}
	return outcome, nil
}

// RemoveWhitelist deactivates the entry for (domain, scope). It reports whether anything changed.
func (s *Store) RemoveWhitelist(ctx context.Context, name, scope string) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}

	res := db.Model(&domain.WhitelistDomain{}).
		Where("domain = ? AND guild_scope = ? AND is_active = ?", normalizeKey(name), scope, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListWhitelist returns up to limit active entries of one scope ordered by domain.
func (s *Store) ListWhitelist(ctx context.Context, scope string, limit int) ([]domain.WhitelistDomain, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []domain.WhitelistDomain
	query := db.Where("guild_scope = ? AND is_active = ?", scope, true).Order("domain ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) CountWhitelist(ctx context.Context, scope string) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.Model(&domain.WhitelistDomain{}).
		Where("guild_scope = ? AND is_active = ?", scope, true).
		Count(&count).Error
	return count, err
}
