package discord

import (
	"context"
	"fmt"
	"time"

	"nophish/internal/commands"
	"nophish/internal/scanner"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

const (
	defaultScanTimeout    = 15 * time.Second
	defaultCommandTimeout = 45 * time.Second
)

// MessageScanner is the scan path fed by guild messages.
type MessageScanner interface {
	HandleMessage(ctx context.Context, msg scanner.Message) *scanner.Outcome
}

// Bot connects the gateway events to the scanner and the command service.
type Bot struct {
	session  *discordgo.Session
	scanner  MessageScanner
	commands *commands.Service

	scanTimeout    time.Duration
	commandTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Bot)

func WithTimeouts(scan, command time.Duration) Option {
	return func(b *Bot) {
		if scan > 0 {
			b.scanTimeout = scan
		}
		if command > 0 {
			b.commandTimeout = command
		}
	}
}

// NewSession creates a bot session with the intents the scanner needs.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	return session, nil
}

func New(session *discordgo.Session, scan MessageScanner, svc *commands.Service, opts ...Option) *Bot {
	b := &Bot{
		session:        session,
		scanner:        scan,
		commands:       svc,
		scanTimeout:    defaultScanTimeout,
		commandTimeout: defaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start registers the handlers and opens the gateway connection. Handlers
// stop doing work once ctx ends.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		b.cancel()
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info("Discord gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))

	if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, "", slashCommands()); err != nil {
		log.Error("Failed to register slash commands", "error", err)
		return
	}
	log.Info("Slash commands registered", "count", len(slashCommands()))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.scanTimeout)
	defer cancel()

	b.scanner.HandleMessage(ctx, messageFromEvent(s.State, m))
}

func messageFromEvent(state *discordgo.State, m *discordgo.MessageCreate) scanner.Message {
	msg := scanner.Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Content:   m.Content,
	}
	if state == nil {
		return msg
	}
	if guild, err := state.Guild(m.GuildID); err == nil {
		msg.GuildName = guild.Name
	}
	if channel, err := state.Channel(m.ChannelID); err == nil {
		msg.ChannelName = channel.Name
	}
	return msg
}
