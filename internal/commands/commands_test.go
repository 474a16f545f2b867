package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"nophish/internal/database"
	"nophish/internal/domain"
	"nophish/internal/feed"
	"nophish/internal/reputation"
	"nophish/internal/reveal"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupCommandStore(t *testing.T) *database.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store, err := database.SetupDB(database.WithExistingDB(db))
	if err != nil {
		t.Fatalf("setup store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type staticClient struct {
	name    string
	matches map[string]bool
}

func (c staticClient) Name() string { return c.name }

func (c staticClient) Check(_ context.Context, input string) (bool, error) {
	return c.matches[reputation.Normalize(input)], nil
}

type testEnv struct {
	store    *database.Store
	registry *reputation.Registry
	service  *Service
}

func newTestEnv(t *testing.T, opts ...Option) testEnv {
	t.Helper()

	store := setupCommandStore(t)
	registry := reputation.NewRegistry(store, nil)
	checker := reputation.NewChecker(registry,
		staticClient{name: "community"},
		staticClient{name: "analysis"},
	)
	return testEnv{store: store, registry: registry, service: New(store, checker, registry, opts...)}
}

var admin = Invoker{GuildID: "g1", GuildName: "Guild", UserID: "u1", Username: "admin"}

func TestCheckReportsStoreHitEvenWhenWhitelisted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.service.BlacklistAdd(ctx, admin, "https://evil.example/login", "phishing"); err != nil {
		t.Fatalf("blacklist add: %v", err)
	}
	if _, err := env.service.WhitelistAdd(ctx, admin, "evil.example", "false positive", false); err != nil {
		t.Fatalf("whitelist add: %v", err)
	}

	report, err := env.service.Check(ctx, admin, "evil.example")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !report.IsScam || !report.Matched(reputation.TierLocal) {
		t.Fatalf("expected tier1 hit, got %+v", report.Result)
	}
	if !report.Whitelisted {
		t.Fatalf("expected whitelist note")
	}
	if report.Entry == nil || report.Entry.DetectionSource != domain.SourceManual {
		t.Fatalf("expected the stored manual entry, got %+v", report.Entry)
	}
	last := report.Details[len(report.Details)-1]
	if last != whitelistNote {
		t.Fatalf("unexpected last detail %q", last)
	}
}

func TestCheckRejectsEmptyInput(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.service.Check(context.Background(), admin, "   "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBlacklistLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	change, err := env.service.BlacklistAdd(ctx, admin, "WWW.Bad.example", "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if change.Domain != "bad.example" || !change.Changed || change.Outcome != database.UpsertInserted.String() {
		t.Fatalf("unexpected add change: %+v", change)
	}
	if !env.registry.Cache().Contains("bad.example") {
		t.Fatalf("expected cache to hold blacklisted domain")
	}

	again, err := env.service.BlacklistAdd(ctx, admin, "bad.example", "")
	if err != nil || again.Changed {
		t.Fatalf("second add should be unchanged: %+v %v", again, err)
	}

	list, err := env.service.BlacklistList(ctx)
	if err != nil || len(list) != 1 || list[0].Domain != "bad.example" {
		t.Fatalf("unexpected list: %+v %v", list, err)
	}

	removed, err := env.service.BlacklistRemove(ctx, admin, "bad.example")
	if err != nil || !removed.Changed {
		t.Fatalf("remove: %+v %v", removed, err)
	}
	if env.registry.Cache().Contains("bad.example") {
		t.Fatalf("expected cache eviction")
	}

	list, err = env.service.BlacklistList(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list after removal, got %+v %v", list, err)
	}

	readded, err := env.service.BlacklistAdd(ctx, admin, "bad.example", "")
	if err != nil || readded.Outcome != database.UpsertReactivated.String() {
		t.Fatalf("expected reactivation, got %+v %v", readded, err)
	}
}

func TestWhitelistScopes(t *testing.T) {
	env := newTestEnv(t, WithOwner("owner"))
	ctx := context.Background()

	guildChange, err := env.service.WhitelistAdd(ctx, admin, "partner.example", "", false)
	if err != nil || guildChange.Scope != "g1" {
		t.Fatalf("guild whitelist: %+v %v", guildChange, err)
	}
	owner := Invoker{GuildID: "g1", UserID: "owner", Username: "dev"}
	globalChange, err := env.service.WhitelistAdd(ctx, owner, "docs.example", "", true)
	if err != nil || globalChange.Scope != domain.GlobalScope {
		t.Fatalf("global whitelist: %+v %v", globalChange, err)
	}

	other := Invoker{GuildID: "g2", UserID: "u2", Username: "other"}
	ok, err := env.store.IsWhitelisted(ctx, "docs.example", other.GuildID)
	if err != nil || !ok {
		t.Fatalf("global entry must apply to other guilds")
	}
	ok, err = env.store.IsWhitelisted(ctx, "partner.example", other.GuildID)
	if err != nil || ok {
		t.Fatalf("guild entry must not leak to other guilds")
	}

	list, err := env.service.WhitelistList(ctx, admin)
	if err != nil || len(list) != 1 || list[0].Domain != "partner.example" {
		t.Fatalf("unexpected whitelist list: %+v %v", list, err)
	}

	removed, err := env.service.WhitelistRemove(ctx, admin, "partner.example", false)
	if err != nil || !removed.Changed {
		t.Fatalf("remove: %+v %v", removed, err)
	}
	missing, err := env.service.WhitelistRemove(ctx, admin, "partner.example", false)
	if err != nil || missing.Changed || missing.Outcome != "not_found" {
		t.Fatalf("second remove should report not_found: %+v %v", missing, err)
	}
}

func TestUpdateConfigValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		setting string
		value   string
		wantErr bool
	}{
		{SettingAutoDelete, "false", false},
		{SettingSendWarnings, "maybe", true},
		{SettingLogChannel, "<#123456789>", false},
		{SettingLogChannel, "general", true},
		{SettingScamThreshold, "3", false},
		{SettingScamThreshold, "4", true},
		{SettingScamThreshold, "0", true},
		{"colour", "blue", true},
	}

	for _, tt := range tests {
		t.Run(tt.setting+"="+tt.value, func(t *testing.T) {
			_, err := env.service.UpdateConfig(ctx, admin, tt.setting, tt.value)
			if tt.wantErr && !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	cfg, err := env.service.ShowConfig(ctx, admin)
	if err != nil {
		t.Fatalf("show config: %v", err)
	}
	if cfg.AutoDeleteScamMessages || cfg.LogChannelID != "123456789" || cfg.ScamThreshold != 3 {
		t.Fatalf("unexpected stored config: %+v", cfg)
	}
	if cfg.UpdatedByUsername != "admin" {
		t.Fatalf("expected updated-by to be recorded, got %q", cfg.UpdatedByUsername)
	}
}

func TestSetDefending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cfg, err := env.service.SetDefending(ctx, admin, true)
	if err != nil || !cfg.DefendingMode {
		t.Fatalf("activate: %+v %v", cfg, err)
	}

	stored, err := env.store.GetServerConfig(ctx, admin.GuildID)
	if err != nil || !stored.DefendingMode {
		t.Fatalf("defending mode not persisted: %+v %v", stored, err)
	}

	stats, err := env.service.Stats(ctx, admin)
	if err != nil || !stats.DefendingMode {
		t.Fatalf("stats should report defending mode: %+v %v", stats, err)
	}
	if stats.DefendedGuilds != 1 {
		t.Fatalf("defended guilds = %d, want 1", stats.DefendedGuilds)
	}
}

func TestStatsIncludesFeedImports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stats, err := env.service.Stats(ctx, admin)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Feed.ImportRuns != 0 || stats.Feed.LastImport != nil {
		t.Fatalf("expected no imports yet, got %+v", stats.Feed)
	}

	for i, imported := range []int{5, 2} {
		entry := &domain.ImportLog{
			Source:          "feed",
			ImportDate:      time.Now().UTC().Add(time.Duration(i) * time.Minute),
			DomainsImported: imported,
		}
		if err := env.store.InsertImportLog(ctx, entry); err != nil {
			t.Fatalf("insert import log: %v", err)
		}
	}

	stats, err = env.service.Stats(ctx, admin)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Feed.ImportRuns != 2 || stats.Feed.LastImport == nil || stats.Feed.LastImport.DomainsImported != 2 {
		t.Fatalf("unexpected feed status: runs=%d last=%+v", stats.Feed.ImportRuns, stats.Feed.LastImport)
	}
}

type historyCountingStore struct {
	*database.Store
	calls int
}

func (s *historyCountingStore) DetectionHistory(ctx context.Context, q database.HistoryQuery) ([]domain.DetectionLog, error) {
	s.calls++
	return s.Store.DetectionHistory(ctx, q)
}

func TestHistoryRejectsRangeBeforeQuerying(t *testing.T) {
	store := &historyCountingStore{Store: setupCommandStore(t)}
	registry := reputation.NewRegistry(store.Store, nil)
	service := New(store, reputation.NewChecker(registry, staticClient{name: "a"}, staticClient{name: "b"}), registry)

	for _, days := range []int{-1, 91} {
		if _, err := service.History(context.Background(), admin, "", days); !errors.Is(err, ErrHistoryRange) {
			t.Fatalf("days=%d: expected ErrHistoryRange, got %v", days, err)
		}
	}
	if store.calls != 0 {
		t.Fatalf("storage must not be queried for an invalid range, got %d calls", store.calls)
	}

	report, err := service.History(context.Background(), admin, "", 0)
	if err != nil {
		t.Fatalf("default history: %v", err)
	}
	if report.Days != defaultHistoryDays || store.calls != 1 {
		t.Fatalf("unexpected default history: %+v calls=%d", report, store.calls)
	}
}

func TestHistorySummarisesDetections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i, entry := range []struct{ domain, user string }{
		{"a.example", "u1"},
		{"a.example", "u2"},
		{"b.example", "u1"},
	} {
		err := env.store.InsertDetectionLog(ctx, &domain.DetectionLog{
			Domain:        entry.domain,
			GuildID:       admin.GuildID,
			UserID:        entry.user,
			Username:      entry.user,
			ChannelID:     "c1",
			ChannelName:   "general",
			MessageID:     fmt.Sprintf("m%d", i),
			Sources:       domain.SourceList{reputation.TierLocal},
			DetectionDate: time.Now().Add(-time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("insert detection: %v", err)
		}
	}

	report, err := env.service.History(ctx, admin, "", 7)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(report.Entries) != 3 || report.UniqueDomains != 2 || report.UniqueUsers != 2 {
		t.Fatalf("unexpected summary: %+v", report)
	}

	filtered, err := env.service.History(ctx, admin, "https://a.example/x", 7)
	if err != nil || len(filtered.Entries) != 2 {
		t.Fatalf("unexpected filtered history: %+v %v", filtered, err)
	}
}

type fakeNotifier struct {
	err     error
	reports []domain.DomainReport
}

func (n *fakeNotifier) NotifyReport(_ context.Context, report domain.DomainReport) error {
	n.reports = append(n.reports, report)
	return n.err
}

type failingReportStore struct {
	*database.Store
}

func (failingReportStore) InsertReport(context.Context, *domain.DomainReport) error {
	return errors.New("disk full")
}

func TestReportOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("saved", func(t *testing.T) {
		notifier := &fakeNotifier{}
		env := newTestEnv(t, WithNotifier(notifier))

		outcome, err := env.service.Report(ctx, admin, "HTTPS://Sus.example/x", "looks fake")
		if err != nil {
			t.Fatalf("report: %v", err)
		}
		if !outcome.Saved || !outcome.Notified || outcome.Message != ReportSaved {
			t.Fatalf("unexpected outcome: %+v", outcome)
		}
		if len(notifier.reports) != 1 || notifier.reports[0].Domain != "sus.example" {
			t.Fatalf("unexpected notification: %+v", notifier.reports)
		}
	})

	t.Run("forwarded only", func(t *testing.T) {
		notifier := &fakeNotifier{}
		base := setupCommandStore(t)
		registry := reputation.NewRegistry(base, nil)
		service := New(failingReportStore{base}, nil, registry, WithNotifier(notifier))

		outcome, err := service.Report(ctx, admin, "sus.example", "")
		if err != nil {
			t.Fatalf("report: %v", err)
		}
		if outcome.Saved || !outcome.Notified || outcome.Message != ReportForwardedOnly {
			t.Fatalf("unexpected outcome: %+v", outcome)
		}
	})

	t.Run("both failed", func(t *testing.T) {
		notifier := &fakeNotifier{err: errors.New("dm closed")}
		base := setupCommandStore(t)
		service := New(failingReportStore{base}, nil, reputation.NewRegistry(base, nil), WithNotifier(notifier))

		outcome, err := service.Report(ctx, admin, "sus.example", "")
		if err != nil {
			t.Fatalf("report: %v", err)
		}
		if outcome.Message != ReportFailed {
			t.Fatalf("unexpected outcome: %+v", outcome)
		}
	})
}

func TestRevealRedeemsToken(t *testing.T) {
	reveals := reveal.NewMemoryStore(time.Minute)
	env := newTestEnv(t, WithReveals(reveals))
	ctx := context.Background()

	token, err := reveals.Put(ctx, []reveal.Finding{{URL: "https://evil.example", Source: reputation.TierLocal}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	findings, err := env.service.Reveal(ctx, token)
	if err != nil || len(findings) != 1 {
		t.Fatalf("reveal: %+v %v", findings, err)
	}
	if _, err := env.service.Reveal(ctx, "missing"); !errors.Is(err, reveal.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type fakeRefresher struct {
	calls int
}

func (f *fakeRefresher) Refresh(_ context.Context, reason string) (*feed.RefreshOutcome, error) {
	f.calls++
	return &feed.RefreshOutcome{Reason: reason}, nil
}

func TestGlobalWhitelistRequiresOwner(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		opts []Option
	}{
		{name: "no owner configured"},
		{name: "guild admin is not the owner", opts: []Option{WithOwner("owner")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.opts...)
			if _, err := env.service.BlacklistAdd(ctx, admin, "evil.example", "phishing"); err != nil {
				t.Fatalf("blacklist add: %v", err)
			}

			if _, err := env.service.WhitelistAdd(ctx, admin, "evil.example", "", true); !errors.Is(err, ErrForbidden) {
				t.Fatalf("global add: expected ErrForbidden, got %v", err)
			}
			if _, err := env.service.WhitelistRemove(ctx, admin, "evil.example", true); !errors.Is(err, ErrForbidden) {
				t.Fatalf("global remove: expected ErrForbidden, got %v", err)
			}

			ok, err := env.store.IsWhitelisted(ctx, "evil.example", "victim-guild")
			if err != nil || ok {
				t.Fatalf("other guilds must keep scanning evil.example: whitelisted=%v err=%v", ok, err)
			}
		})
	}
}

func TestRefreshFeedOwnerOnly(t *testing.T) {
	refresher := &fakeRefresher{}
	env := newTestEnv(t, WithFeedRefresher(refresher), WithOwner("owner"))
	ctx := context.Background()

	if _, err := env.service.RefreshFeed(ctx, admin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	outcome, err := env.service.RefreshFeed(ctx, Invoker{UserID: "owner", Username: "dev"})
	if err != nil || outcome.Reason != "manual" || refresher.calls != 1 {
		t.Fatalf("owner refresh: %+v %v calls=%d", outcome, err, refresher.calls)
	}
}
