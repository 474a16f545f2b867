package discord

import (
	"context"
	"errors"

	"nophish/internal/commands"
	"nophish/internal/reveal"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

// Manage Server permission bit.
var manageGuild int64 = 1 << 5

func slashCommands() []*discordgo.ApplicationCommand {
	domainOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "domain",
		Description: "Domain or URL",
		Required:    true,
	}
	reasonOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Why",
	}
	globalOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionBoolean,
		Name:        "global",
		Description: "Apply to every server (bot owner only)",
	}

	settingChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(commands.SettingNames)+1)
	settingChoices = append(settingChoices, &discordgo.ApplicationCommandOptionChoice{Name: "show", Value: "show"})
	for _, name := range commands.SettingNames {
		settingChoices = append(settingChoices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name})
	}

	minDays, maxDays := 1.0, 90.0

	return []*discordgo.ApplicationCommand{
		{
			Name:        "check",
			Description: "Check a domain against every reputation source",
			Options:     []*discordgo.ApplicationCommandOption{domainOption},
		},
		{
			Name:                     "blacklist",
			Description:              "Manage manually blacklisted domains",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "Blacklist a domain",
					Options: []*discordgo.ApplicationCommandOption{domainOption, reasonOption}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove a domain from the blacklist",
					Options: []*discordgo.ApplicationCommandOption{domainOption}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List manually blacklisted domains"},
			},
		},
		{
			Name:                     "whitelist",
			Description:              "Manage domains that scanning skips",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "Whitelist a domain",
					Options: []*discordgo.ApplicationCommandOption{domainOption, reasonOption, globalOption}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove a domain from the whitelist",
					Options: []*discordgo.ApplicationCommandOption{domainOption, globalOption}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List whitelisted domains"},
			},
		},
		{
			Name:                     "config",
			Description:              "Show or change server settings",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "setting", Description: "Setting", Required: true, Choices: settingChoices},
				{Type: discordgo.ApplicationCommandOptionString, Name: "value", Description: "New value"},
			},
		},
		{
			Name:                     "defend",
			Description:              "Turn message scanning on or off",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "active", Description: "Scan messages", Required: true},
			},
		},
		{
			Name:                     "history",
			Description:              "Recent detections in this server",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "domain", Description: "Only this domain"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "days", Description: "Days to look back (1-90)", MinValue: &minDays, MaxValue: maxDays},
			},
		},
		{
			Name:        "stats",
			Description: "Protection statistics for this server",
		},
		{
			Name:        "report",
			Description: "Report a suspicious domain to the developers",
			Options:     []*discordgo.ApplicationCommandOption{domainOption, reasonOption},
		},
		{
			Name:        "update",
			Description: "Refresh the scam feed now (bot owner only)",
		},
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(b.ctx, b.commandTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.GuildID == "" {
			respond(s, i, &discordgo.InteractionResponseData{
				Content: "Commands only work inside a server.",
				Flags:   discordgo.MessageFlagsEphemeral,
			})
			return
		}
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		}); err != nil {
			log.Warn("Failed to defer interaction", "error", err)
			return
		}

		data := b.runCommand(ctx, interactionInvoker(s.State, i), i.ApplicationCommandData())
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: &data.Content,
			Embeds:  &data.Embeds,
		}); err != nil {
			log.Warn("Failed to send command response", "command", i.ApplicationCommandData().Name, "error", err)
		}

	case discordgo.InteractionMessageComponent:
		token, ok := revealTokenFromCustomID(i.MessageComponentData().CustomID)
		if !ok {
			return
		}
		respond(s, i, b.revealResponse(ctx, token))
	}
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Warn("Failed to respond to interaction", "error", err)
	}
}

func interactionInvoker(state *discordgo.State, i *discordgo.InteractionCreate) commands.Invoker {
	inv := commands.Invoker{GuildID: i.GuildID}

	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user != nil {
		inv.UserID = user.ID
		inv.Username = user.Username
	}

	if state != nil && i.GuildID != "" {
		if guild, err := state.Guild(i.GuildID); err == nil {
			inv.GuildName = guild.Name
		}
	}
	return inv
}

func (b *Bot) revealResponse(ctx context.Context, token string) *discordgo.InteractionResponseData {
	findings, err := b.commands.Reveal(ctx, token)
	switch {
	case errors.Is(err, reveal.ErrNotFound):
		return ephemeral("These links are no longer available.")
	case err != nil:
		log.Warn("Reveal failed", "error", err)
		return ephemeral("Something went wrong, please try again later.")
	}

	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{revealEmbed(findings)},
		Flags:  discordgo.MessageFlagsEphemeral,
	}
}

func ephemeral(content string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral}
}
