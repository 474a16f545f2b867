package domain

import "time"

// ScamDomain is the durable record of a confirmed phishing domain. Rows are
// never deleted; removal flips IsActive and a later detection flips it back.
type ScamDomain struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	// Domain holds the normalized, lower-cased host. One row per domain regardless of state.
	Domain string `gorm:"size:255;uniqueIndex;not null"`

	// DetectionSource names the tier or actor that produced the row (feed, provider, "Manual").
	DetectionSource string `gorm:"size:100;not null;default:''"`

	Notes     string    `gorm:"size:500"`
	IsActive  bool      `gorm:"not null;index"`
	DateAdded time.Time `gorm:"not null"`
}

const (
	SourceManual = "Manual"
)

// State reports the lifecycle state of the row.
func (s ScamDomain) State() DomainState {
	if s.IsActive {
		return StateActive
	}
	return StateInactive
}

type DomainState string

const (
	StateActive   DomainState = "active"
	StateInactive DomainState = "inactive"
)
