package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nophish/internal/scanner"

	"github.com/bwmarrin/discordgo"
)

const (
	revealButtonPrefix = "reveal_scam_"

	colorDanger  = 0xE74C3C
	colorWarning = 0xF1C40F
	colorInfo    = 0x3498DB
	colorSuccess = 0x2ECC71
)

// Moderator carries out scanner actions through the REST API.
type Moderator struct {
	session *discordgo.Session
}

func NewModerator(session *discordgo.Session) *Moderator {
	return &Moderator{session: session}
}

func (m *Moderator) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return m.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (m *Moderator) SendWarning(ctx context.Context, channelID string, warning scanner.Warning) error {
	_, err := m.session.ChannelMessageSendComplex(channelID, warningMessage(warning), discordgo.WithContext(ctx))
	return err
}

func (m *Moderator) SendLog(ctx context.Context, channelID string, warning scanner.Warning) error {
	_, err := m.session.ChannelMessageSendEmbed(channelID, logEmbed(warning), discordgo.WithContext(ctx))
	return err
}

func warningMessage(w scanner.Warning) *discordgo.MessageSend {
	description := fmt.Sprintf("<@%s> posted %s flagged as a scam.", w.UserID, pluralLinks(w.URLCount))
	switch {
	case w.ManualReview:
		description += " The message is waiting for moderator review."
	case w.Deleted:
		description += " The message has been removed."
	}

	msg := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Scam link detected",
			Description: description,
			Color:       colorDanger,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Detected by", Value: sourceList(w.Sources), Inline: true},
			},
			Footer:    &discordgo.MessageEmbedFooter{Text: "Do not click links promising free Nitro or gifts"},
			Timestamp: time.Now().Format(time.RFC3339),
		}},
	}

	if w.RevealToken != "" {
		msg.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Show flagged links",
					Style:    discordgo.SecondaryButton,
					CustomID: revealButtonPrefix + w.RevealToken,
				},
			}},
		}
	}
	return msg
}

func logEmbed(w scanner.Warning) *discordgo.MessageEmbed {
	action := "Warned"
	switch {
	case w.ManualReview:
		action = "Pending manual review"
	case w.Deleted:
		action = "Deleted"
	}

	return &discordgo.MessageEmbed{
		Title: "Scam detection",
		Color: colorWarning,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (%s)", w.UserID, w.Username), Inline: true},
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", w.ChannelID), Inline: true},
			{Name: "Links", Value: fmt.Sprintf("%d", w.URLCount), Inline: true},
			{Name: "Detected by", Value: sourceList(w.Sources), Inline: true},
			{Name: "Action", Value: action, Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func revealTokenFromCustomID(customID string) (string, bool) {
	token, ok := strings.CutPrefix(customID, revealButtonPrefix)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func pluralLinks(n int) string {
	if n == 1 {
		return "a link"
	}
	return fmt.Sprintf("%d links", n)
}

func sourceList(sources []string) string {
	if len(sources) == 0 {
		return "-"
	}
	return strings.Join(sources, ", ")
}
