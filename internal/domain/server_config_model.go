package domain

import "time"

const (
	MinScamThreshold = 1
	MaxScamThreshold = 3
)

// ServerConfig holds the per-guild moderation toggles.
type ServerConfig struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	GuildID   string `gorm:"size:32;not null;uniqueIndex"`
	GuildName string `gorm:"size:200"`

	DefendingMode          bool   `gorm:"not null"`
	AutoDeleteScamMessages bool   `gorm:"not null"`
	SendWarningMessages    bool   `gorm:"not null"`
	LogDetections          bool   `gorm:"not null"`
	LogChannelID           string `gorm:"size:32"`
	RequireManualReview    bool   `gorm:"not null"`

	// ScamThreshold is how many tiers must match before a message is actioned.
	ScamThreshold int `gorm:"not null"`

	LastUpdated       time.Time `gorm:"not null"`
	UpdatedByUserID   string    `gorm:"size:32"`
	UpdatedByUsername string    `gorm:"size:100"`
}

// DefaultServerConfig returns the settings a guild starts with.
func DefaultServerConfig(guildID string) ServerConfig {
	return ServerConfig{
		GuildID:                guildID,
		AutoDeleteScamMessages: true,
		SendWarningMessages:    true,
		LogDetections:          true,
		ScamThreshold:          MinScamThreshold,
		LastUpdated:            time.Now().UTC(),
	}
}

// Threshold returns ScamThreshold clamped to the supported range.
func (c ServerConfig) Threshold() int {
	switch {
	case c.ScamThreshold < MinScamThreshold:
		return MinScamThreshold
	case c.ScamThreshold > MaxScamThreshold:
		return MaxScamThreshold
	default:
		return c.ScamThreshold
	}
}
