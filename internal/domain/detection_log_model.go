package domain

import "time"

const maxMessageContent = 2000

// DetectionLog is an append-only record of one detected domain in one message.
type DetectionLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Domain      string `gorm:"size:255;not null;index"`
	GuildID     string `gorm:"size:32;not null;index"`
	GuildName   string `gorm:"size:200"`
	UserID      string `gorm:"size:32;not null"`
	Username    string `gorm:"size:100;not null"`
	ChannelID   string `gorm:"size:32;not null"`
	ChannelName string `gorm:"size:100;not null"`
	MessageID   string `gorm:"size:32;not null"`

	MessageContent string `gorm:"size:2000"`

	// Sources lists, in tier order, every source that matched the domain.
	Sources SourceList `gorm:"type:text;not null"`

	DetectionDate time.Time `gorm:"not null;index"`
	WasDeleted    bool      `gorm:"not null"`
	WasWarned     bool      `gorm:"not null"`
	ActionTaken   string    `gorm:"size:500"`
}

// TruncateMessageContent clips content to the stored column width.
func TruncateMessageContent(content string) string {
	runes := []rune(content)
	if len(runes) <= maxMessageContent {
		return content
	}
	return string(runes[:maxMessageContent])
}
