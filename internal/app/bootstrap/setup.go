package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nophish/internal/commands"
	"nophish/internal/config"
	"nophish/internal/database"
	"nophish/internal/feed"
	"nophish/internal/intel"
	"nophish/internal/reputation"
	"nophish/internal/reveal"
	"nophish/internal/security"
	"nophish/internal/support"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	promoterDrainTimeout = 15 * time.Second
	revealSweepInterval  = time.Minute
)

// Components holds every long-lived service the process runs.
type Components struct {
	Store     *database.Store
	Registry  *reputation.Registry
	Promoter  *reputation.Promoter
	Checker   *reputation.Checker
	Refresher *feed.Refresher
	Reveals   reveal.Store
	Redis     *redis.Client

	cacheSync    *reputation.CacheSync
	memoryReveal *reveal.MemoryStore
}

// Setup loads settings, opens the store, warms the cache and builds the
// reputation pipeline. Redis is optional.
func Setup(ctx context.Context) (*Components, error) {
	if err := config.ReadSettings(); err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	cfg := config.GetConfig()

	store, err := database.SetupDB()
	if err != nil {
		return nil, fmt.Errorf("failed to set up database: %w", err)
	}

	c := &Components{Store: store}

	c.Redis, err = support.GetRedisClient()
	switch {
	case errors.Is(err, support.ErrRedisDisabled):
		log.Info("Redis disabled, running as a single instance")
	case err != nil:
		log.Warn("Redis unavailable, running as a single instance", "error", err)
		c.Redis = nil
	}

	c.Registry = reputation.NewRegistry(store, nil)
	if _, err := c.Registry.Reload(ctx); err != nil {
		log.Error("Failed to warm scam domain cache", "error", err)
	}

	if c.Redis != nil {
		c.cacheSync = reputation.NewCacheSync(c.Redis, c.Registry.Cache())
		c.Registry.SetBroadcaster(c.cacheSync)
	}

	c.Promoter = reputation.NewPromoter(c.Registry,
		reputation.WithQueueSize(cfg.Checker.PromotionQueueSize),
	)

	community := intel.NewCommunityListClient(cfg.CommunityList.URL,
		intel.WithCommunityName(cfg.CommunityList.Name),
		intel.WithSnapshotTTL(config.SnapshotTTL()),
		intel.WithCommunityUserAgent(cfg.UserAgent),
	)
	analysis := intel.NewAnalysisClient(cfg.Analysis.URL,
		intel.WithAnalysisName(cfg.Analysis.Name),
		intel.WithAnalysisUserAgent(cfg.UserAgent),
		intel.WithRateLimit(cfg.Analysis.RequestsPerMinute, cfg.Analysis.Burst),
	)

	c.Checker = reputation.NewChecker(c.Registry, community, analysis,
		reputation.WithPromotions(c.Promoter),
		reputation.WithScanTimeout(config.ScanTimeout()),
		reputation.WithCommandTimeout(config.CommandTimeout()),
	)

	importer := feed.NewImporter(store, c.Registry,
		feed.WithSourceName(cfg.Feed.SourceName),
		feed.WithBatchSize(cfg.Feed.BatchSize),
	)
	c.Refresher = feed.NewRefresher(importer, cfg.Feed.URL,
		feed.WithUserAgent(cfg.UserAgent),
		feed.WithLeaderLock(c.Redis),
	)

	c.Reveals = c.buildRevealStore()
	return c, nil
}

func (c *Components) buildRevealStore() reveal.Store {
	ttl := config.RevealTTL()
	if c.Redis == nil {
		c.memoryReveal = reveal.NewMemoryStore(ttl)
		return c.memoryReveal
	}

	var opts []reveal.RedisOption
	sealer, err := security.NewSealerFromEnv()
	switch {
	case err == nil:
		opts = append(opts, reveal.WithSealer(sealer))
	case errors.Is(err, security.ErrNoEncryptionKey):
		log.Debug("Reveal payloads stored unencrypted", "env", security.PayloadEncryptionKeyEnv)
	default:
		log.Warn("Reveal encryption disabled", "error", err)
	}
	return reveal.NewRedisStore(c.Redis, ttl, opts...)
}

// CommandOptions returns the command service options backed by these components.
func (c *Components) CommandOptions(ownerID string) []commands.Option {
	return []commands.Option{
		commands.WithReveals(c.Reveals),
		commands.WithFeedRefresher(c.Refresher),
		commands.WithOwner(ownerID),
	}
}

// StartRoutines launches the background loops. They stop when ctx ends.
func (c *Components) StartRoutines(ctx context.Context) {
	go c.Refresher.StartRefreshRoutine(ctx)

	if c.cacheSync != nil {
		go c.cacheSync.Run(ctx)
	}
	if c.memoryReveal != nil {
		go c.memoryReveal.StartJanitor(ctx, revealSweepInterval)
	}
}

// Close drains pending promotions and releases connections.
func (c *Components) Close() {
	drainCtx, cancel := context.WithTimeout(context.Background(), promoterDrainTimeout)
	defer cancel()

	if err := c.Promoter.Close(drainCtx); err != nil {
		log.Warn("Promotion queue not fully drained", "error", err)
	}
	if err := c.Store.Close(); err != nil {
		log.Warn("Error closing database", "error", err)
	}
	if c.Redis != nil {
		if err := support.CloseRedisClient(); err != nil {
			log.Warn("Error closing redis client", "error", err)
		}
	}
}
