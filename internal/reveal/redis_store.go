package reveal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "nophish:reveal:"
	redisOpTimeout = 5 * time.Second
)

// Sealer encrypts payloads before they are written to redis.
type Sealer interface {
	Seal(plain []byte) (string, error)
	Open(value string) ([]byte, error)
}

// RedisStore keeps tokens in redis so any instance can redeem them. Expiry is
// left to the key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	sealer Sealer
}

type RedisOption func(*RedisStore)

func WithSealer(sealer Sealer) RedisOption {
	return func(s *RedisStore) {
		s.sealer = sealer
	}
}

func NewRedisStore(client *redis.Client, ttl time.Duration, opts ...RedisOption) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &RedisStore{client: client, ttl: ttl}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Put(ctx context.Context, findings []Finding) (string, error) {
	payload, err := json.Marshal(findings)
	if err != nil {
		return "", fmt.Errorf("reveal: encode findings: %w", err)
	}

	var value any = payload
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(payload)
		if err != nil {
			return "", fmt.Errorf("reveal: seal findings: %w", err)
		}
		value = sealed
	}

	token := uuid.NewString()

	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := s.client.Set(opCtx, redisKeyPrefix+token, value, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("reveal: store token: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) ([]Finding, error) {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	raw, err := s.client.Get(opCtx, redisKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reveal: load token: %w", err)
	}

	payload := []byte(raw)
	if s.sealer != nil {
		if payload, err = s.sealer.Open(raw); err != nil {
			return nil, fmt.Errorf("reveal: open findings: %w", err)
		}
	}

	var findings []Finding
	if err := json.Unmarshal(payload, &findings); err != nil {
		return nil, fmt.Errorf("reveal: decode findings: %w", err)
	}
	return findings, nil
}
