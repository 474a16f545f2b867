package commands

import (
	"context"
	"errors"
	"strings"
	"time"

	"nophish/internal/database"
	"nophish/internal/domain"
	"nophish/internal/feed"
	"nophish/internal/reputation"
	"nophish/internal/reveal"
)

const listLimit = 25

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrHistoryRange    = errors.New("history days must be between 1 and 90")
	ErrForbidden       = errors.New("command restricted to the bot owner")
	ErrUnavailable     = errors.New("command not available")
)

// Invoker identifies who ran a command and in which guild.
type Invoker struct {
	GuildID   string `json:"guild_id"`
	GuildName string `json:"guild_name,omitempty"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
}

type Store interface {
	IsWhitelisted(ctx context.Context, name, guildID string) (bool, error)
	AddWhitelist(ctx context.Context, entry domain.WhitelistDomain) (database.UpsertOutcome, error)
	RemoveWhitelist(ctx context.Context, name, scope string) (bool, error)
	ListWhitelist(ctx context.Context, scope string, limit int) ([]domain.WhitelistDomain, error)
	ListScamsBySource(ctx context.Context, source string, limit int) ([]domain.ScamDomain, error)
	GetServerConfig(ctx context.Context, guildID string) (domain.ServerConfig, error)
	UpdateServerConfig(ctx context.Context, guildID string, fn func(*domain.ServerConfig) error) (domain.ServerConfig, error)
	DetectionHistory(ctx context.Context, q database.HistoryQuery) ([]domain.DetectionLog, error)
	GuildStats(ctx context.Context, guildID string, now time.Time) (database.GuildStats, error)
	InsertReport(ctx context.Context, report *domain.DomainReport) error
	FindScam(ctx context.Context, name string) (*domain.ScamDomain, error)
	CountDefendingGuilds(ctx context.Context) (int64, error)
	LatestImportLog(ctx context.Context) (*domain.ImportLog, error)
	CountImportLogs(ctx context.Context) (int64, error)
}

type Checker interface {
	Check(ctx context.Context, input string) reputation.Result
}

// Blacklist is the registry side of manual blacklist management.
type Blacklist interface {
	Promote(ctx context.Context, domain, source, notes string) (database.UpsertOutcome, error)
	Deactivate(ctx context.Context, domain string) (bool, error)
}

// Notifier forwards a domain report outside the store, e.g. as a direct message to the developers.
type Notifier interface {
	NotifyReport(ctx context.Context, report domain.DomainReport) error
}

type FeedRefresher interface {
	Refresh(ctx context.Context, reason string) (*feed.RefreshOutcome, error)
}

// Service implements the administrative commands shared by the chat gateway
// and the HTTP API.
type Service struct {
	store     Store
	checker   Checker
	blacklist Blacklist
	reveals   reveal.Store
	notifier  Notifier
	feed      FeedRefresher
	ownerID   string
	now       func() time.Time
}

type Option func(*Service)

func WithReveals(store reveal.Store) Option {
	return func(s *Service) {
		s.reveals = store
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithOwner names the bot owner. Only the owner may manage global whitelist
// entries or trigger a feed refresh once an owner is set.
func WithOwner(ownerID string) Option {
	return func(s *Service) {
		s.ownerID = strings.TrimSpace(ownerID)
	}
}

// WithFeedRefresher enables the manual feed refresh.
func WithFeedRefresher(r FeedRefresher) Option {
	return func(s *Service) {
		s.feed = r
	}
}

func New(store Store, checker Checker, blacklist Blacklist, opts ...Option) *Service {
	s := &Service{
		store:     store,
		checker:   checker,
		blacklist: blacklist,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeArgument(raw string) (string, error) {
	name := reputation.Normalize(strings.TrimSpace(raw))
	if name == "" || strings.ContainsAny(name, " \t\r\n") {
		return "", ErrInvalidArgument
	}
	return name, nil
}

func (s *Service) isOwner(inv Invoker) bool {
	return s.ownerID != "" && inv.UserID == s.ownerID
}

func requireGuild(inv Invoker) error {
	if strings.TrimSpace(inv.GuildID) == "" {
		return ErrInvalidArgument
	}
	return nil
}
