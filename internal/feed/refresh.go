package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"nophish/internal/config"
	"nophish/internal/support"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	maxResponseBytes       = 50 << 20 // 50 MiB safety cap
	refreshLockKey         = "nophish:leader:feed_refresh"
	defaultRefreshInterval = 6 * time.Hour
	defaultFetchTimeout    = 60 * time.Second
	refreshRunTimeout      = 10 * time.Minute
)

// RefreshOutcome describes one completed refresh.
type RefreshOutcome struct {
	Reason   string        `json:"reason"`
	Source   string        `json:"source"`
	Result   Result        `json:"result"`
	Duration time.Duration `json:"duration"`
}

// Refresher downloads the feed and hands it to the importer. Concurrent
// refreshes share one run.
type Refresher struct {
	importer   *Importer
	url        string
	userAgent  string
	httpClient *http.Client
	redis      *redis.Client

	refreshOnce singleflight.Group
}

type RefresherOption func(*Refresher)

func WithHTTPClient(client *http.Client) RefresherOption {
	return func(r *Refresher) {
		if client != nil {
			r.httpClient = client
		}
	}
}

func WithUserAgent(ua string) RefresherOption {
	return func(r *Refresher) {
		r.userAgent = ua
	}
}

// WithLeaderLock makes the scheduled loop run on one instance at a time.
func WithLeaderLock(client *redis.Client) RefresherOption {
	return func(r *Refresher) {
		r.redis = client
	}
}

func NewRefresher(importer *Importer, url string, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		importer:   importer,
		url:        url,
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh fetches and imports the feed once. A fetch failure abandons the run
// before anything is written. Callers arriving during a run share it; the run
// is detached from their contexts, so a caller that gives up only stops waiting.
func (r *Refresher) Refresh(ctx context.Context, reason string) (*RefreshOutcome, error) {
	ch := r.refreshOnce.DoChan("refresh", func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshRunTimeout)
		defer cancel()
		return r.doRefresh(runCtx, reason)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		outcome, _ := res.Val.(*RefreshOutcome)
		return outcome, nil
	}
}

func (r *Refresher) doRefresh(ctx context.Context, reason string) (*RefreshOutcome, error) {
	started := time.Now()

	content, err := Fetch(ctx, r.httpClient, r.url, r.userAgent)
	if err != nil {
		return nil, err
	}

	result, err := r.importer.Import(ctx, content)
	if err != nil {
		return nil, err
	}

	return &RefreshOutcome{
		Reason:   reason,
		Source:   r.importer.Source(),
		Result:   result,
		Duration: time.Since(started),
	}, nil
}

// StartRefreshRoutine refreshes at startup and then on the configured interval
// until ctx ends. With a redis client only the lock holder runs the loop.
func (r *Refresher) StartRefreshRoutine(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	var intervalValue atomic.Value
	initial := config.GetFeedRefreshInterval()
	if initial <= 0 {
		initial = defaultRefreshInterval
	}
	intervalValue.Store(initial)

	updateSignal := make(chan struct{}, 1)
	updates := config.FeedRefreshIntervalUpdates()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case newInterval := <-updates:
				if newInterval <= 0 {
					newInterval = defaultRefreshInterval
				}
				intervalValue.Store(newInterval)
				select {
				case updateSignal <- struct{}{}:
				default:
				}
			}
		}
	}()

	lock := support.NewLeaderLock(r.redis, refreshLockKey, support.DefaultLeadershipTTL)
	err := lock.Run(ctx, func(leaderCtx context.Context) {
		r.runRefreshLoop(leaderCtx, &intervalValue, updateSignal)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Feed refresh routine stopped", "error", err)
	}
}

func (r *Refresher) runRefreshLoop(ctx context.Context, intervalValue *atomic.Value, updateSignal <-chan struct{}) {
	current := intervalValue.Load().(time.Duration)
	if current <= 0 {
		current = defaultRefreshInterval
	}

	ticker := time.NewTicker(current)
	defer ticker.Stop()

	r.triggerRefresh(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.triggerRefresh(ctx, "scheduled")
		case <-updateSignal:
			newInterval := intervalValue.Load().(time.Duration)
			if newInterval <= 0 {
				newInterval = defaultRefreshInterval
			}
			if newInterval == current {
				continue
			}
			drainTicker(ticker)
			current = newInterval
			ticker.Reset(current)
		}
	}
}

func (r *Refresher) triggerRefresh(ctx context.Context, reason string) {
	outcome, err := r.Refresh(ctx, reason)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			log.Info("Feed refresh canceled", "reason", reason)
		case errors.Is(err, ErrEmptyFeed):
			log.Warn("Feed was empty, keeping existing database", "reason", reason)
		default:
			log.Error("Feed refresh failed, keeping existing database", "reason", reason, "error", err)
		}
		return
	}
	if outcome == nil {
		return
	}

	log.Info("Feed refresh completed",
		"reason", reason,
		"source", outcome.Source,
		"imported", outcome.Result.Imported,
		"skipped", outcome.Result.Skipped,
		"duration", outcome.Duration.Round(time.Millisecond),
	)
}

func drainTicker(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
		default:
			return
		}
	}
}

// Fetch downloads the feed body. Non-2xx answers and empty bodies are errors.
func Fetch(ctx context.Context, client *http.Client, source, userAgent string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return "", ErrEmptyFeed
	}
	return string(content), nil
}
