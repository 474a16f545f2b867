package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nophish/internal/commands"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(list []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(list))
	for _, opt := range list {
		m[opt.Name] = opt
	}
	return m
}

func (o options) str(name string) string {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionString {
		return opt.StringValue()
	}
	return ""
}

func (o options) boolean(name string) bool {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionBoolean {
		return opt.BoolValue()
	}
	return false
}

func (o options) integer(name string) int {
	if opt, ok := o[name]; ok && opt.Type == discordgo.ApplicationCommandOptionInteger {
		return int(opt.IntValue())
	}
	return 0
}

// subcommand splits "blacklist add" style data into the subcommand name and its options.
func subcommand(data discordgo.ApplicationCommandInteractionData) (string, options) {
	if len(data.Options) == 0 || data.Options[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		return "", optionMap(data.Options)
	}
	return data.Options[0].Name, optionMap(data.Options[0].Options)
}

func (b *Bot) runCommand(ctx context.Context, inv commands.Invoker, data discordgo.ApplicationCommandInteractionData) *discordgo.InteractionResponseData {
	resp, err := b.dispatch(ctx, inv, data)
	if err != nil {
		return errorResponse(data.Name, err)
	}
	return resp
}

func (b *Bot) dispatch(ctx context.Context, inv commands.Invoker, data discordgo.ApplicationCommandInteractionData) (*discordgo.InteractionResponseData, error) {
	svc := b.commands
	sub, opts := subcommand(data)

	switch data.Name {
	case "check":
		report, err := svc.Check(ctx, inv, opts.str("domain"))
		if err != nil {
			return nil, err
		}
		return embedResponse(checkEmbed(report)), nil

	case "blacklist":
		switch sub {
		case "add":
			change, err := svc.BlacklistAdd(ctx, inv, opts.str("domain"), opts.str("reason"))
			if err != nil {
				return nil, err
			}
			return embedResponse(changeEmbed("Blacklist", change)), nil
		case "remove":
			change, err := svc.BlacklistRemove(ctx, inv, opts.str("domain"))
			if err != nil {
				return nil, err
			}
			return embedResponse(changeEmbed("Blacklist", change)), nil
		case "list":
			rows, err := svc.BlacklistList(ctx)
			if err != nil {
				return nil, err
			}
			return embedResponse(blacklistEmbed(rows)), nil
		}

	case "whitelist":
		switch sub {
		case "add":
			change, err := svc.WhitelistAdd(ctx, inv, opts.str("domain"), opts.str("reason"), opts.boolean("global"))
			if err != nil {
				return nil, err
			}
			return embedResponse(changeEmbed("Whitelist", change)), nil
		case "remove":
			change, err := svc.WhitelistRemove(ctx, inv, opts.str("domain"), opts.boolean("global"))
			if err != nil {
				return nil, err
			}
			return embedResponse(changeEmbed("Whitelist", change)), nil
		case "list":
			rows, err := svc.WhitelistList(ctx, inv)
			if err != nil {
				return nil, err
			}
			return embedResponse(whitelistEmbed(rows)), nil
		}

	case "config":
		setting := opts.str("setting")
		if setting == "show" {
			cfg, err := svc.ShowConfig(ctx, inv)
			if err != nil {
				return nil, err
			}
			return embedResponse(configEmbed("Server configuration", cfg)), nil
		}
		cfg, err := svc.UpdateConfig(ctx, inv, setting, opts.str("value"))
		if err != nil {
			return nil, err
		}
		return embedResponse(configEmbed("Configuration updated", cfg)), nil

	case "defend":
		cfg, err := svc.SetDefending(ctx, inv, opts.boolean("active"))
		if err != nil {
			return nil, err
		}
		return embedResponse(defendEmbed(cfg.DefendingMode)), nil

	case "history":
		report, err := svc.History(ctx, inv, opts.str("domain"), opts.integer("days"))
		if err != nil {
			return nil, err
		}
		return embedResponse(historyEmbed(report)), nil

	case "stats":
		stats, err := svc.Stats(ctx, inv)
		if err != nil {
			return nil, err
		}
		return embedResponse(statsEmbed(stats)), nil

	case "report":
		outcome, err := svc.Report(ctx, inv, opts.str("domain"), opts.str("reason"))
		if err != nil {
			return nil, err
		}
		return embedResponse(reportOutcomeEmbed(outcome)), nil

	case "update":
		outcome, err := svc.RefreshFeed(ctx, inv)
		if err != nil {
			return nil, err
		}
		return &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("Feed refreshed: %d imported, %d skipped in %s.",
				outcome.Result.Imported, outcome.Result.Skipped, outcome.Duration.Round(100*time.Millisecond)),
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown command %s %s", commands.ErrInvalidArgument, data.Name, sub)
}

func errorResponse(command string, err error) *discordgo.InteractionResponseData {
	switch {
	case errors.Is(err, commands.ErrInvalidArgument), errors.Is(err, commands.ErrHistoryRange):
		return &discordgo.InteractionResponseData{Content: "❌ " + err.Error()}
	case errors.Is(err, commands.ErrForbidden):
		return &discordgo.InteractionResponseData{Content: "🔒 Only the bot owner can run this command."}
	case errors.Is(err, commands.ErrUnavailable):
		return &discordgo.InteractionResponseData{Content: "This command is not available right now."}
	}

	log.Error("Command failed", "command", command, "error", err)
	return &discordgo.InteractionResponseData{Content: "Something went wrong, please try again later."}
}

func embedResponse(embed *discordgo.MessageEmbed) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
}
