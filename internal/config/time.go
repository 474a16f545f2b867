package config

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultFeedRefreshInterval = 6 * time.Hour
	defaultScanTimeout         = 10 * time.Second
	defaultCommandTimeout      = 30 * time.Second
	defaultSnapshotTTL         = 10 * time.Minute
	defaultRevealTTL           = 10 * time.Minute

	// MaxExternalTimeout caps every external reputation call.
	MaxExternalTimeout = 30 * time.Second
)

var (
	feedRefreshInterval  atomic.Value
	feedRefreshListeners []chan time.Duration
	listenersMu          sync.Mutex
)

func init() {
	feedRefreshInterval.Store(defaultFeedRefreshInterval)
}

// SetRefreshInterval recomputes the feed refresh interval from the active config
// and notifies listeners when it changed.
func SetRefreshInterval() {
	setFeedRefreshInterval(durationOr(GetConfig().Feed.RefreshTimer, defaultFeedRefreshInterval))
}

// CalculateBetweenTime converts a timer into a duration of at least one second.
func CalculateBetweenTime(timer Timer) time.Duration {
	intervalMs := CalculateMilliseconds(timer)

	minInterval := uint64(1000)
	if intervalMs < minInterval {
		intervalMs = minInterval
	}

	return time.Duration(intervalMs) * time.Millisecond
}

func CalculateMilliseconds(timer Timer) uint64 {
	return uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000
}

func durationOr(timer Timer, fallback time.Duration) time.Duration {
	if timer.IsZero() {
		return fallback
	}
	return CalculateBetweenTime(timer)
}

func capExternal(d time.Duration) time.Duration {
	if d > MaxExternalTimeout {
		return MaxExternalTimeout
	}
	return d
}

// ScanTimeout bounds each external call made while scanning chat messages.
func ScanTimeout() time.Duration {
	return capExternal(durationOr(GetConfig().Checker.ScanTimeout, defaultScanTimeout))
}

// CommandTimeout bounds each external call made by the manual check command.
func CommandTimeout() time.Duration {
	return capExternal(durationOr(GetConfig().Checker.CommandTimeout, defaultCommandTimeout))
}

func SnapshotTTL() time.Duration {
	return durationOr(GetConfig().CommunityList.SnapshotTTL, defaultSnapshotTTL)
}

func RevealTTL() time.Duration {
	return durationOr(GetConfig().Reveal.TTL, defaultRevealTTL)
}

func GetFeedRefreshInterval() time.Duration {
	return feedRefreshInterval.Load().(time.Duration)
}

// FeedRefreshIntervalUpdates returns a channel that receives the current interval
// immediately and every subsequent change.
func FeedRefreshIntervalUpdates() <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	listenersMu.Lock()
	feedRefreshListeners = append(feedRefreshListeners, ch)
	listenersMu.Unlock()

	ch <- GetFeedRefreshInterval()
	return ch
}

func setFeedRefreshInterval(interval time.Duration) {
	if interval <= 0 {
		interval = defaultFeedRefreshInterval
	}

	current := GetFeedRefreshInterval()
	if current == interval {
		return
	}

	feedRefreshInterval.Store(interval)

	listenersMu.Lock()
	defer listenersMu.Unlock()
	for _, ch := range feedRefreshListeners {
		select {
		case ch <- interval:
		default:
		}
	}
}
