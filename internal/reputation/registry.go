package reputation

import (
	"context"
	"sync"

	"nophish/internal/database"

	"github.com/charmbracelet/log"
)

// ScamStore is the durable side of the registry.
type ScamStore interface {
	IsActiveScam(ctx context.Context, name string) (bool, error)
	UpsertScam(ctx context.Context, name, source, notes string) (database.UpsertOutcome, error)
	DeactivateScam(ctx context.Context, name string) (bool, error)
	ListActiveScamDomains(ctx context.Context) ([]string, error)
	CountActiveScams(ctx context.Context) (int64, error)
}

// CacheBroadcaster tells other instances about cache changes made here.
type CacheBroadcaster interface {
	PublishAdded(ctx context.Context, domains ...string)
	PublishRemoved(ctx context.Context, domains ...string)
}

// Registry keeps the cache in step with the store. The cache is only marked
// positive after the store write succeeded.
type Registry struct {
	store ScamStore
	cache *Cache

	mu          sync.RWMutex
	broadcaster CacheBroadcaster
}

func NewRegistry(store ScamStore, cache *Cache) *Registry {
	if cache == nil {
		cache = NewCache()
	}
	return &Registry{store: store, cache: cache}
}

func (r *Registry) Cache() *Cache {
	return r.cache
}

func (r *Registry) SetBroadcaster(b CacheBroadcaster) {
	r.mu.Lock()
	r.broadcaster = b
	r.mu.Unlock()
}

func (r *Registry) currentBroadcaster() CacheBroadcaster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.broadcaster
}

// IsKnownScam checks the cache and falls back to the store on a miss. A store
// hit is written back into the cache.
func (r *Registry) IsKnownScam(ctx context.Context, domain string) (bool, error) {
	if r.cache.Contains(domain) {
		return true, nil
	}

	active, err := r.store.IsActiveScam(ctx, domain)
	if err != nil {
		return false, err
	}
	if active {
		r.cache.Add(domain)
	}
	return active, nil
}

// Promote makes the domain an active scam in the store and then in the cache.
func (r *Registry) Promote(ctx context.Context, domain, source, notes string) (database.UpsertOutcome, error) {
	outcome, err := r.store.UpsertScam(ctx, domain, source, notes)
	if err != nil {
		return outcome, err
	}

	r.cache.Add(domain)
	if outcome.Changed() {
		if b := r.currentBroadcaster(); b != nil {
			b.PublishAdded(ctx, domain)
		}
	}
	return outcome, nil
}

// Deactivate soft-deletes the domain and drops it from the cache.
func (r *Registry) Deactivate(ctx context.Context, domain string) (bool, error) {
	changed, err := r.store.DeactivateScam(ctx, domain)
	if err != nil {
		return false, err
	}

	r.cache.Remove(domain)
	if b := r.currentBroadcaster(); b != nil {
		b.PublishRemoved(ctx, domain)
	}
	return changed, nil
}

// AddCached records domains that were already written to the store.
func (r *Registry) AddCached(ctx context.Context, domains ...string) {
	if len(domains) == 0 {
		return
	}
	r.cache.Add(domains...)
	if b := r.currentBroadcaster(); b != nil {
		b.PublishAdded(ctx, domains...)
	}
}

// Reload rebuilds the cache from every active row in the store.
func (r *Registry) Reload(ctx context.Context) (int, error) {
	domains, err := r.store.ListActiveScamDomains(ctx)
	if err != nil {
		return 0, err
	}
	r.cache.Reload(domains)
	log.Info("Scam domain cache reloaded", "domains", len(domains))
	return len(domains), nil
}

func (r *Registry) Count(ctx context.Context) (int64, error) {
	return r.store.CountActiveScams(ctx)
}
