package domain

import "time"

// GlobalScope is the guild scope of a whitelist entry that applies to every guild.
const GlobalScope = "global"

type WhitelistDomain struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Domain string `gorm:"size:255;not null;uniqueIndex:idx_whitelist_domain_scope;index"`

	// GuildScope is a guild id or GlobalScope.
	GuildScope string `gorm:"size:32;not null;uniqueIndex:idx_whitelist_domain_scope;index"`
	GuildName  string `gorm:"size:200"`

	AddedByUserID   string    `gorm:"size:32;not null"`
	AddedByUsername string    `gorm:"size:100;not null"`
	DateAdded       time.Time `gorm:"not null"`
	Reason          string    `gorm:"size:500"`
	IsActive        bool      `gorm:"not null"`
}
