package discord

import (
	"fmt"
	"strings"
	"time"

	"nophish/internal/commands"
	"nophish/internal/domain"
	"nophish/internal/reveal"

	"github.com/bwmarrin/discordgo"
)

func checkEmbed(report commands.CheckReport) *discordgo.MessageEmbed {
	title, color := "✅ No threats found", colorSuccess
	if report.IsScam {
		title, color = "🚨 Scam domain", colorDanger
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Matched sources", Value: sourceList(report.Sources), Inline: true},
	}
	if entry := report.Entry; entry != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Listed",
			Value:  fmt.Sprintf("%s via %s", entry.DateAdded.Format("2006-01-02"), entry.DetectionSource),
			Inline: true,
		})
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "Details", Value: bulletList(report.Details)})

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: "`" + report.Domain + "`",
		Color:       color,
		Fields:      fields,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func changeEmbed(list string, change commands.ListChange) *discordgo.MessageEmbed {
	color := colorInfo
	if change.Changed {
		color = colorSuccess
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Domain", Value: "`" + change.Domain + "`", Inline: true},
		{Name: "Result", Value: strings.ReplaceAll(change.Outcome, "_", " "), Inline: true},
	}
	if change.Scope != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Scope", Value: change.Scope, Inline: true})
	}
	return &discordgo.MessageEmbed{Title: list + " updated", Color: color, Fields: fields}
}

func blacklistEmbed(rows []domain.ScamDomain) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("`%s` added %s", row.Domain, row.DateAdded.Format("2006-01-02")))
	}
	return &discordgo.MessageEmbed{
		Title:       "Blacklisted domains",
		Description: listOrEmpty(lines, "No manually blacklisted domains."),
		Color:       colorInfo,
	}
}

func whitelistEmbed(rows []domain.WhitelistDomain) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line := fmt.Sprintf("`%s` by %s", row.Domain, row.AddedByUsername)
		if row.Reason != "" {
			line += ": " + row.Reason
		}
		lines = append(lines, line)
	}
	return &discordgo.MessageEmbed{
		Title:       "Whitelisted domains",
		Description: listOrEmpty(lines, "No whitelisted domains for this server."),
		Color:       colorInfo,
	}
}

func configEmbed(title string, cfg domain.ServerConfig) *discordgo.MessageEmbed {
	logChannel := "Not set"
	if cfg.LogChannelID != "" {
		logChannel = "<#" + cfg.LogChannelID + ">"
	}
	updatedBy := cfg.UpdatedByUsername
	if updatedBy == "" {
		updatedBy = "System"
	}

	return &discordgo.MessageEmbed{
		Title: title,
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Defending mode", Value: onOff(cfg.DefendingMode), Inline: true},
			{Name: commands.SettingAutoDelete, Value: onOff(cfg.AutoDeleteScamMessages), Inline: true},
			{Name: commands.SettingSendWarnings, Value: onOff(cfg.SendWarningMessages), Inline: true},
			{Name: commands.SettingLogDetections, Value: onOff(cfg.LogDetections), Inline: true},
			{Name: commands.SettingLogChannel, Value: logChannel, Inline: true},
			{Name: commands.SettingManualReview, Value: onOff(cfg.RequireManualReview), Inline: true},
			{Name: commands.SettingScamThreshold, Value: fmt.Sprintf("%d", cfg.Threshold()), Inline: true},
			{Name: "Last updated", Value: cfg.LastUpdated.Format("2006-01-02 15:04"), Inline: true},
			{Name: "Updated by", Value: updatedBy, Inline: true},
		},
	}
}

func defendEmbed(active bool) *discordgo.MessageEmbed {
	if active {
		return &discordgo.MessageEmbed{
			Title:       "🛡️ Defending mode activated",
			Description: "Messages in this server are now scanned for scam links.",
			Color:       colorSuccess,
		}
	}
	return &discordgo.MessageEmbed{
		Title:       "Defending mode deactivated",
		Description: "Messages in this server are no longer scanned.",
		Color:       colorDanger,
	}
}

func historyEmbed(report commands.HistoryReport) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(report.Entries))
	for _, entry := range report.Entries {
		lines = append(lines, fmt.Sprintf("%s `%s` by %s: %s",
			entry.DetectionDate.Format("01-02 15:04"), entry.Domain, entry.Username, entry.ActionTaken))
	}

	title := fmt.Sprintf("Detections in the last %d days", report.Days)
	if report.Domain != "" {
		title += " for " + report.Domain
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: listOrEmpty(lines, "No detections in this period."),
		Color:       colorInfo,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d unique domains, %d unique users", report.UniqueDomains, report.UniqueUsers),
		},
	}
}

func statsEmbed(stats commands.StatsReport) *discordgo.MessageEmbed {
	top := make([]string, 0, len(stats.TopDomains))
	for _, d := range stats.TopDomains {
		top = append(top, fmt.Sprintf("`%s` (%d)", d.Domain, d.Count))
	}

	return &discordgo.MessageEmbed{
		Title: "📊 Protection statistics",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Defending mode", Value: onOff(stats.DefendingMode), Inline: true},
			{Name: "Detections", Value: fmt.Sprintf("%d total\n%d last 30 days\n%d last 7 days",
				stats.TotalDetections, stats.MonthlyDetections, stats.WeeklyDetections), Inline: true},
			{Name: "Reports", Value: fmt.Sprintf("%d total\n%d last 30 days", stats.TotalReports, stats.MonthlyReports), Inline: true},
			{Name: "Whitelisted domains", Value: fmt.Sprintf("%d", stats.WhitelistSize), Inline: true},
			{Name: "Known scam domains", Value: fmt.Sprintf("%d", stats.ActiveScamDomains), Inline: true},
			{Name: "Servers defended", Value: fmt.Sprintf("%d", stats.DefendedGuilds), Inline: true},
			{Name: "Feed", Value: feedStatus(stats.Feed), Inline: true},
			{Name: "Top domains (30 days)", Value: listOrEmpty(top, "None")},
		},
	}
}

func feedStatus(status commands.FeedStatus) string {
	last := status.LastImport
	if last == nil {
		return "No imports yet"
	}
	return fmt.Sprintf("%d runs\nlast %s: +%d domains", status.ImportRuns, last.ImportDate.Format("2006-01-02 15:04"), last.DomainsImported)
}

func reportOutcomeEmbed(outcome commands.ReportOutcome) *discordgo.MessageEmbed {
	color := colorSuccess
	switch {
	case !outcome.Saved && outcome.Notified:
		color = colorWarning
	case !outcome.Saved:
		color = colorDanger
	}
	return &discordgo.MessageEmbed{
		Title:       "Domain report",
		Description: outcome.Message,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Domain", Value: "`" + outcome.Domain + "`"},
		},
	}
}

func revealEmbed(findings []reveal.Finding) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		lines = append(lines, fmt.Sprintf("`%s` (%s)", f.URL, f.Source))
	}
	return &discordgo.MessageEmbed{
		Title:       "⚠️ Flagged links",
		Description: listOrEmpty(lines, "No links recorded."),
		Color:       colorWarning,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Do not open these links"},
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "✅ Enabled"
	}
	return "❌ Disabled"
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return "• " + strings.Join(items, "\n• ")
}

func listOrEmpty(lines []string, empty string) string {
	if len(lines) == 0 {
		return empty
	}
	return strings.Join(lines, "\n")
}
