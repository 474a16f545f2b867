package commands

import (
	"fmt"
	"net/url"

	"nophish/internal/config"

	"github.com/charmbracelet/log"
)

// RuntimeSettings returns the process-wide tunables. Owner only.
func (s *Service) RuntimeSettings(inv Invoker) (config.Config, error) {
	if !s.isOwner(inv) {
		return config.Config{}, ErrForbidden
	}
	return config.GetConfig(), nil
}

// UpdateRuntimeSettings validates and persists new process-wide tunables.
// The feed refresh timer applies at once; endpoints, client limits and
// timeouts are read when the process starts. Owner only.
func (s *Service) UpdateRuntimeSettings(inv Invoker, next config.Config) (config.Config, error) {
	if !s.isOwner(inv) {
		log.Warn("Runtime settings update blocked for non-owner", "user", inv.Username, "user_id", inv.UserID)
		return config.Config{}, ErrForbidden
	}
	if err := validateRuntimeSettings(next); err != nil {
		return config.Config{}, err
	}

	if err := config.SetConfig(next); err != nil {
		return config.Config{}, fmt.Errorf("save runtime settings: %w", err)
	}
	log.Info("Runtime settings updated", "user", inv.Username, "feed_refresh", config.GetFeedRefreshInterval())
	return config.GetConfig(), nil
}

func validateRuntimeSettings(cfg config.Config) error {
	endpoints := map[string]string{
		"feed.url":           cfg.Feed.URL,
		"community_list.url": cfg.CommunityList.URL,
		"analysis.url":       cfg.Analysis.URL,
	}
	for field, raw := range endpoints {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s must be an http(s) URL", ErrInvalidArgument, field)
		}
	}

	counts := map[string]int{
		"feed.batch_size":              cfg.Feed.BatchSize,
		"analysis.requests_per_minute": cfg.Analysis.RequestsPerMinute,
		"analysis.burst":               cfg.Analysis.Burst,
		"checker.promotion_queue_size": cfg.Checker.PromotionQueueSize,
		"checker.scan_concurrency":     cfg.Checker.ScanConcurrency,
	}
	for field, n := range counts {
		if n < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidArgument, field)
		}
	}
	return nil
}
