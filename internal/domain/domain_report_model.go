package domain

import "time"

// DomainReport is a user-submitted suspicion. It is never promoted automatically.
type DomainReport struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Domain             string `gorm:"size:255;not null;index"`
	Reason             string `gorm:"size:500"`
	ReportedByUserID   string `gorm:"size:32;not null"`
	ReportedByUsername string `gorm:"size:100;not null"`
	GuildID            string `gorm:"size:32;index"`
	GuildName          string `gorm:"size:200"`

	ReportDate      time.Time `gorm:"not null;index"`
	IsProcessed     bool      `gorm:"not null"`
	ProcessingNotes string    `gorm:"size:1000"`
}
