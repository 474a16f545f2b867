package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	cacheSyncChannel   = "nophish:cache:updates"
	cacheSyncOpTimeout = 5 * time.Second
)

const (
	cacheOpAdd    = "add"
	cacheOpRemove = "remove"
)

type cacheEvent struct {
	Origin  string   `json:"origin"`
	Op      string   `json:"op"`
	Domains []string `json:"domains"`
}

// CacheSync fans cache changes out to other instances over redis pub/sub and
// applies the changes they publish to the local cache.
type CacheSync struct {
	client *redis.Client
	cache  *Cache
	origin string
}

func NewCacheSync(client *redis.Client, cache *Cache) *CacheSync {
	return &CacheSync{
		client: client,
		cache:  cache,
		origin: uuid.NewString(),
	}
}

func (s *CacheSync) PublishAdded(ctx context.Context, domains ...string) {
	s.publish(ctx, cacheOpAdd, domains)
}

func (s *CacheSync) PublishRemoved(ctx context.Context, domains ...string) {
	s.publish(ctx, cacheOpRemove, domains)
}

func (s *CacheSync) publish(ctx context.Context, op string, domains []string) {
	if s == nil || s.client == nil || len(domains) == 0 {
		return
	}

	payload, err := json.Marshal(cacheEvent{Origin: s.origin, Op: op, Domains: domains})
	if err != nil {
		log.Error("Cache sync: failed to serialize event", "error", err)
		return
	}

	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheSyncOpTimeout)
	defer cancel()

	if err := s.client.Publish(opCtx, cacheSyncChannel, payload).Err(); err != nil {
		log.Warn("Cache sync: failed to publish event", "op", op, "domains", len(domains), "error", err)
	}
}

// Run applies remote cache events until ctx is cancelled.
func (s *CacheSync) Run(ctx context.Context) {
	if s == nil || s.client == nil {
		return
	}

	pubsub := s.client.Subscribe(ctx, cacheSyncChannel)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) || ctx.Err() != nil {
				return
			}
			log.Error("Cache sync: subscription error", "error", err)
			time.Sleep(time.Second)
			continue
		}

		s.apply([]byte(msg.Payload))
	}
}

func (s *CacheSync) apply(payload []byte) {
	var event cacheEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Error("Cache sync: invalid payload", "error", err)
		return
	}
	if event.Origin == s.origin {
		return
	}

	switch event.Op {
	case cacheOpAdd:
		s.cache.Add(event.Domains...)
	case cacheOpRemove:
		s.cache.Remove(event.Domains...)
	default:
		log.Warn("Cache sync: unknown operation", "op", event.Op)
		return
	}
	log.Debug("Cache sync: applied remote update", "op", event.Op, "domains", len(event.Domains))
}
