package domain

import "time"

// ImportLog summarises one feed ingestion run that imported at least one domain.
type ImportLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Source          string    `gorm:"size:100;not null"`
	ImportDate      time.Time `gorm:"not null"`
	DomainsImported int       `gorm:"not null"`
	DomainsSkipped  int       `gorm:"not null"`
	Notes           string    `gorm:"size:1000"`
}

func (ImportLog) TableName() string {
	return "domain_import_logs"
}
