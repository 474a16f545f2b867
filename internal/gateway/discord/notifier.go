package discord

import (
	"context"
	"errors"
	"time"

	"nophish/internal/domain"

	"github.com/bwmarrin/discordgo"
)

var ErrNoDeveloper = errors.New("developer user id not configured")

// DeveloperNotifier forwards domain reports to the developer by direct message.
type DeveloperNotifier struct {
	session     *discordgo.Session
	developerID string
}

func NewDeveloperNotifier(session *discordgo.Session, developerID string) *DeveloperNotifier {
	return &DeveloperNotifier{session: session, developerID: developerID}
}

func (n *DeveloperNotifier) NotifyReport(ctx context.Context, report domain.DomainReport) error {
	if n.developerID == "" {
		return ErrNoDeveloper
	}

	channel, err := n.session.UserChannelCreate(n.developerID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = n.session.ChannelMessageSendEmbed(channel.ID, reportEmbed(report), discordgo.WithContext(ctx))
	return err
}

func reportEmbed(report domain.DomainReport) *discordgo.MessageEmbed {
	reason := report.Reason
	if reason == "" {
		reason = "No reason given"
	}
	guild := report.GuildName
	if guild == "" {
		guild = report.GuildID
	}

	return &discordgo.MessageEmbed{
		Title: "New domain report",
		Color: colorWarning,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Domain", Value: "`" + report.Domain + "`"},
			{Name: "Reason", Value: reason},
			{Name: "Reported by", Value: report.ReportedByUsername + " (" + report.ReportedByUserID + ")", Inline: true},
			{Name: "Guild", Value: guild, Inline: true},
		},
		Timestamp: report.ReportDate.Format(time.RFC3339),
	}
}
