package commands

import (
	"context"
	"fmt"
	"strings"

	"nophish/internal/database"
	"nophish/internal/domain"
	"nophish/internal/feed"

	"github.com/charmbracelet/log"
)

const (
	defaultHistoryDays = 7
	maxHistoryDays     = 90
)

// HistoryReport holds recent detections for a guild.
type HistoryReport struct {
	Days          int                   `json:"days"`
	Domain        string                `json:"domain,omitempty"`
	Entries       []domain.DetectionLog `json:"entries"`
	UniqueDomains int                   `json:"unique_domains"`
	UniqueUsers   int                   `json:"unique_users"`
}

// History returns the most recent detections over the last days. A zero
// value means the default window; anything outside 1..90 is rejected.
func (s *Service) History(ctx context.Context, inv Invoker, domainFilter string, days int) (HistoryReport, error) {
	if days == 0 {
		days = defaultHistoryDays
	}
	if days < 1 || days > maxHistoryDays {
		return HistoryReport{}, ErrHistoryRange
	}
	if err := requireGuild(inv); err != nil {
		return HistoryReport{}, err
	}

	var name string
	if strings.TrimSpace(domainFilter) != "" {
		var err error
		if name, err = normalizeArgument(domainFilter); err != nil {
			return HistoryReport{}, err
		}
	}

	entries, err := s.store.DetectionHistory(ctx, database.HistoryQuery{
		GuildID: inv.GuildID,
		Domain:  name,
		Since:   s.now().AddDate(0, 0, -days),
		Limit:   listLimit,
	})
	if err != nil {
		return HistoryReport{}, err
	}

	domains := make(map[string]struct{})
	users := make(map[string]struct{})
	for _, entry := range entries {
		domains[entry.Domain] = struct{}{}
		users[entry.UserID] = struct{}{}
	}

	return HistoryReport{
		Days:          days,
		Domain:        name,
		Entries:       entries,
		UniqueDomains: len(domains),
		UniqueUsers:   len(users),
	}, nil
}

// StatsReport is the guild statistics view.
type StatsReport struct {
	database.GuildStats
	DefendingMode  bool       `json:"defending_mode"`
	DefendedGuilds int64      `json:"defended_guilds"`
	Feed           FeedStatus `json:"feed"`
}

// FeedStatus summarises the feed imports recorded so far.
type FeedStatus struct {
	ImportRuns int64             `json:"import_runs"`
	LastImport *domain.ImportLog `json:"last_import,omitempty"`
}

func (s *Service) Stats(ctx context.Context, inv Invoker) (StatsReport, error) {
	if err := requireGuild(inv); err != nil {
		return StatsReport{}, err
	}

	stats, err := s.store.GuildStats(ctx, inv.GuildID, s.now())
	if err != nil {
		return StatsReport{}, err
	}

	report := StatsReport{GuildStats: stats}
	cfg, err := s.store.GetServerConfig(ctx, inv.GuildID)
	if err != nil {
		log.Warn("Failed to read defending mode for stats", "guild_id", inv.GuildID, "error", err)
	} else {
		report.DefendingMode = cfg.DefendingMode
	}

	if report.DefendedGuilds, err = s.store.CountDefendingGuilds(ctx); err != nil {
		log.Warn("Failed to count defended guilds for stats", "error", err)
	}
	if report.Feed.ImportRuns, err = s.store.CountImportLogs(ctx); err != nil {
		log.Warn("Failed to count feed imports for stats", "error", err)
	}
	if report.Feed.LastImport, err = s.store.LatestImportLog(ctx); err != nil {
		log.Warn("Failed to read latest feed import for stats", "error", err)
	}
	return report, nil
}

// Report outcome messages.
const (
	ReportSaved         = "Report saved successfully"
	ReportForwardedOnly = "Database error occurred, but the report was sent to the developers"
	ReportFailed        = "Both database save and developer notification failed"
)

// ReportOutcome tells the reporter what happened to the report.
type ReportOutcome struct {
	Domain   string `json:"domain"`
	Saved    bool   `json:"saved"`
	Notified bool   `json:"notified"`
	Message  string `json:"message"`
}

// Report stores a user suspicion and forwards it to the notifier. A report
// that cannot be stored is still forwarded.
func (s *Service) Report(ctx context.Context, inv Invoker, input, reason string) (ReportOutcome, error) {
	name, err := normalizeArgument(input)
	if err != nil {
		return ReportOutcome{}, err
	}

	report := domain.DomainReport{
		Domain:             name,
		Reason:             strings.TrimSpace(reason),
		ReportedByUserID:   inv.UserID,
		ReportedByUsername: inv.Username,
		GuildID:            inv.GuildID,
		GuildName:          inv.GuildName,
		ReportDate:         s.now().UTC(),
	}

	outcome := ReportOutcome{Domain: name}
	if err := s.store.InsertReport(ctx, &report); err != nil {
		log.Error("Failed to save domain report", "domain", name, "user", inv.Username, "error", err)
	} else {
		outcome.Saved = true
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyReport(ctx, report); err != nil {
			log.Warn("Failed to forward domain report", "domain", name, "error", err)
		} else {
			outcome.Notified = true
		}
	}

	switch {
	case outcome.Saved:
		outcome.Message = ReportSaved
	case outcome.Notified:
		outcome.Message = ReportForwardedOnly
	default:
		outcome.Message = ReportFailed
	}

	log.Info("Domain report processed", "domain", name, "saved", outcome.Saved, "notified", outcome.Notified, "user", inv.Username)
	return outcome, nil
}

// RefreshFeed runs one feed import on demand.
func (s *Service) RefreshFeed(ctx context.Context, inv Invoker) (*feed.RefreshOutcome, error) {
	if s.feed == nil {
		return nil, ErrUnavailable
	}
	if s.ownerID != "" && !s.isOwner(inv) {
		log.Warn("Feed refresh blocked for non-owner", "user", inv.Username, "user_id", inv.UserID)
		return nil, ErrForbidden
	}

	outcome, err := s.feed.Refresh(ctx, "manual")
	if err != nil {
		return nil, fmt.Errorf("refresh feed: %w", err)
	}
	return outcome, nil
}
