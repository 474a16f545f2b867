package scanner

import (
	"context"
	"strings"
	"time"

	"nophish/internal/domain"
	"nophish/internal/reputation"
	"nophish/internal/reveal"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 4
	storeWriteTimeout  = 5 * time.Second
)

// Message is one inbound chat message.
type Message struct {
	GuildID     string
	GuildName   string
	ChannelID   string
	ChannelName string
	MessageID   string
	UserID      string
	Username    string
	Content     string
}

// Warning is what the gateway renders in the channel and the log channel.
// It never carries the URLs themselves, only the reveal token.
type Warning struct {
	GuildID      string
	UserID       string
	Username     string
	ChannelID    string
	MessageID    string
	URLCount     int
	Sources      []string
	RevealToken  string
	Deleted      bool
	ManualReview bool
}

// Moderator carries out actions on the chat platform.
type Moderator interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendWarning(ctx context.Context, channelID string, warning Warning) error
	SendLog(ctx context.Context, channelID string, warning Warning) error
}

type Store interface {
	GetServerConfig(ctx context.Context, guildID string) (domain.ServerConfig, error)
	IsWhitelisted(ctx context.Context, name, guildID string) (bool, error)
	InsertDetectionLog(ctx context.Context, entry *domain.DetectionLog) error
}

type Checker interface {
	Scan(ctx context.Context, input string) reputation.Result
	ScanAll(ctx context.Context, input string) reputation.Result
}

// Detection is one flagged URL in a message.
type Detection struct {
	URL    string
	Result reputation.Result
}

// Outcome reports what the scanner did with a message.
type Outcome struct {
	Skipped     string
	Detections  []Detection
	Deleted     bool
	Warned      bool
	Logged      bool
	RevealToken string
	Action      string
}

type Scanner struct {
	checker     Checker
	store       Store
	moderator   Moderator
	reveals     reveal.Store
	concurrency int
}

type Option func(*Scanner)

func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(checker Checker, store Store, moderator Moderator, reveals reveal.Store, opts ...Option) *Scanner {
	s := &Scanner{
		checker:     checker,
		store:       store,
		moderator:   moderator,
		reveals:     reveals,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleMessage scans every URL in the message and applies the guild's
// moderation settings to the ones that are flagged.
func (s *Scanner) HandleMessage(ctx context.Context, msg Message) *Outcome {
	if msg.GuildID == "" || strings.TrimSpace(msg.Content) == "" {
		return &Outcome{Skipped: "no content"}
	}

	cfg, err := s.store.GetServerConfig(ctx, msg.GuildID)
	if err != nil {
		log.Error("Failed to load guild settings, skipping scan", "guild_id", msg.GuildID, "error", err)
		return &Outcome{Skipped: "settings unavailable"}
	}
	if !cfg.DefendingMode {
		return &Outcome{Skipped: "defending mode off"}
	}

	urls := reputation.ExtractURLs(msg.Content)
	if len(urls) == 0 {
		return &Outcome{Skipped: "no links"}
	}

	detections := s.detect(ctx, msg.GuildID, urls, cfg.Threshold())
	if len(detections) == 0 {
		return &Outcome{}
	}

	outcome := &Outcome{Detections: detections}
	s.act(ctx, msg, cfg, outcome)
	s.writeLogs(ctx, msg, outcome)

	log.Info("Scam links detected",
		"guild_id", msg.GuildID,
		"channel_id", msg.ChannelID,
		"user_id", msg.UserID,
		"links", len(detections),
		"action", outcome.Action,
	)
	return outcome
}

func (s *Scanner) detect(ctx context.Context, guildID string, urls []string, threshold int) []Detection {
	found := make([]*Detection, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for idx, url := range urls {
		g.Go(func() error {
			name := reputation.Normalize(url)

			whitelisted, err := s.store.IsWhitelisted(gctx, name, guildID)
			if err != nil {
				log.Warn("Whitelist lookup failed", "domain", name, "guild_id", guildID, "error", err)
			}
			if whitelisted {
				log.Debug("Whitelisted domain skipped", "domain", name, "guild_id", guildID)
				return nil
			}

			var result reputation.Result
			if threshold > 1 {
				result = s.checker.ScanAll(gctx, url)
			} else {
				result = s.checker.Scan(gctx, url)
			}

			if result.IsScam && len(result.Sources) >= threshold {
				found[idx] = &Detection{URL: url, Result: result}
			}
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{}, len(found))
	detections := make([]Detection, 0, len(found))
	for _, d := range found {
		if d == nil {
			continue
		}
		if _, dup := seen[d.Result.Domain]; dup {
			continue
		}
		seen[d.Result.Domain] = struct{}{}
		detections = append(detections, *d)
	}
	return detections
}

func (s *Scanner) act(ctx context.Context, msg Message, cfg domain.ServerConfig, outcome *Outcome) {
	var actions []string

	if cfg.AutoDeleteScamMessages && !cfg.RequireManualReview {
		if err := s.moderator.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil {
			log.Error("Failed to delete scam message", "channel_id", msg.ChannelID, "message_id", msg.MessageID, "error", err)
			actions = append(actions, "Delete failed")
		} else {
			outcome.Deleted = true
			actions = append(actions, "Message deleted")
		}
	}

	if s.reveals != nil {
		findings := make([]reveal.Finding, 0, len(outcome.Detections))
		for _, d := range outcome.Detections {
			findings = append(findings, reveal.Finding{URL: d.URL, Source: strings.Join(d.Result.Sources, ", ")})
		}
		token, err := s.reveals.Put(ctx, findings)
		if err != nil {
			log.Warn("Failed to store reveal token", "message_id", msg.MessageID, "error", err)
		} else {
			outcome.RevealToken = token
		}
	}

	warning := Warning{
		GuildID:      msg.GuildID,
		UserID:       msg.UserID,
		Username:     msg.Username,
		ChannelID:    msg.ChannelID,
		MessageID:    msg.MessageID,
		URLCount:     len(outcome.Detections),
		Sources:      unionSources(outcome.Detections),
		RevealToken:  outcome.RevealToken,
		Deleted:      outcome.Deleted,
		ManualReview: cfg.RequireManualReview,
	}

	if cfg.SendWarningMessages || cfg.RequireManualReview {
		if err := s.moderator.SendWarning(ctx, msg.ChannelID, warning); err != nil {
			log.Error("Failed to send scam warning", "channel_id", msg.ChannelID, "error", err)
		} else {
			outcome.Warned = true
			actions = append(actions, "Warning sent")
		}
	}

	if cfg.LogDetections && cfg.LogChannelID != "" {
		if err := s.moderator.SendLog(ctx, cfg.LogChannelID, warning); err != nil {
			log.Warn("Failed to post to log channel", "channel_id", cfg.LogChannelID, "error", err)
		} else {
			outcome.Logged = true
		}
	}

	if cfg.RequireManualReview {
		actions = append(actions, "Pending manual review")
	}
	if len(actions) == 0 {
		actions = append(actions, "Logged only")
	}
	outcome.Action = strings.Join(actions, ", ")
}

func (s *Scanner) writeLogs(ctx context.Context, msg Message, outcome *Outcome) {
	for _, d := range outcome.Detections {
		entry := domain.DetectionLog{
			Domain:         d.Result.Domain,
			GuildID:        msg.GuildID,
			GuildName:      msg.GuildName,
			UserID:         msg.UserID,
			Username:       msg.Username,
			ChannelID:      msg.ChannelID,
			ChannelName:    msg.ChannelName,
			MessageID:      msg.MessageID,
			MessageContent: domain.TruncateMessageContent(msg.Content),
			Sources:        domain.SourceList(d.Result.Sources),
			DetectionDate:  time.Now().UTC(),
			WasDeleted:     outcome.Deleted,
			WasWarned:      outcome.Warned,
			ActionTaken:    outcome.Action,
		}

		var err error
		for attempt := 0; attempt < 2; attempt++ {
			writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
			record := entry
			err = s.store.InsertDetectionLog(writeCtx, &record)
			cancel()
			if err == nil {
				break
			}
		}
		if err != nil {
			log.Warn("Failed to write detection log", "domain", d.Result.Domain, "guild_id", msg.GuildID, "error", err)
		}
	}
}

func unionSources(detections []Detection) []string {
	seen := make(map[string]struct{})
	var sources []string
	for _, d := range detections {
		for _, source := range d.Result.Sources {
			if _, ok := seen[source]; ok {
				continue
			}
			seen[source] = struct{}{}
			sources = append(sources, source)
		}
	}
	return sources
}
