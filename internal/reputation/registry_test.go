package reputation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"nophish/internal/database"
)

type recordingBroadcaster struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (b *recordingBroadcaster) PublishAdded(_ context.Context, domains ...string) {
	b.mu.Lock()
	b.added = append(b.added, domains...)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) PublishRemoved(_ context.Context, domains ...string) {
	b.mu.Lock()
	b.removed = append(b.removed, domains...)
	b.mu.Unlock()
}

func TestRegistryFallsBackToStoreAndCaches(t *testing.T) {
	store := newFakeStore("stored.example")
	registry := NewRegistry(store, nil)

	hit, err := registry.IsKnownScam(context.Background(), "stored.example")
	if err != nil || !hit {
		t.Fatalf("IsKnownScam = %v, %v; want true", hit, err)
	}
	if !registry.Cache().Contains("stored.example") {
		t.Fatal("store hit should populate the cache")
	}

	hit, _ = registry.IsKnownScam(context.Background(), "unknown.example")
	if hit || registry.Cache().Contains("unknown.example") {
		t.Fatal("negatives must never be cached")
	}
}

func TestRegistryPromoteWriteFailureLeavesCacheUntouched(t *testing.T) {
	store := newFakeStore()
	store.writeErr = errors.New("disk full")
	registry := NewRegistry(store, nil)

	if _, err := registry.Promote(context.Background(), "new.example", "tier2", ""); err == nil {
		t.Fatal("expected promote error")
	}
	if registry.Cache().Contains("new.example") {
		t.Fatal("cache must not be marked positive without a durable write")
	}
}

func TestRegistryPromoteAndDeactivate(t *testing.T) {
	store := newFakeStore()
	registry := NewRegistry(store, nil)
	broadcaster := &recordingBroadcaster{}
	registry.SetBroadcaster(broadcaster)
	ctx := context.Background()

	outcome, err := registry.Promote(ctx, "new.example", "tier2", "")
	if err != nil || outcome != database.UpsertInserted {
		t.Fatalf("Promote = %s, %v", outcome, err)
	}
	if !registry.Cache().Contains("new.example") {
		t.Fatal("promoted domain should be cached")
	}

	changed, err := registry.Deactivate(ctx, "new.example")
	if err != nil || !changed {
		t.Fatalf("Deactivate = %v, %v", changed, err)
	}
	if registry.Cache().Contains("new.example") {
		t.Fatal("deactivated domain should leave the cache")
	}

	if len(broadcaster.added) != 1 || len(broadcaster.removed) != 1 {
		t.Fatalf("broadcasts added=%v removed=%v", broadcaster.added, broadcaster.removed)
	}
}

func TestRegistryReload(t *testing.T) {
	store := newFakeStore("a.example", "b.example")
	registry := NewRegistry(store, nil)
	registry.Cache().Add("stale.example")

	n, err := registry.Reload(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("Reload = %d, %v", n, err)
	}
	if registry.Cache().Contains("stale.example") || !registry.Cache().Contains("a.example") {
		t.Fatal("reload should mirror the store exactly")
	}
}
