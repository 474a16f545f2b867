package support

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisConnectTimeout = 5 * time.Second

// ErrRedisDisabled is returned when no REDIS_URL is configured.
var ErrRedisDisabled = errors.New("redis disabled: REDIS_URL not set")

var shared struct {
	sync.Mutex
	client *redis.Client
}

// GetRedisClient returns the process-wide client, connecting on first use.
// Redis is optional; callers treat ErrRedisDisabled as single-instance mode.
func GetRedisClient() (*redis.Client, error) {
	shared.Lock()
	defer shared.Unlock()

	if shared.client != nil {
		return shared.client, nil
	}

	client, err := dialRedis(GetEnv("REDIS_URL", ""))
	if err != nil {
		return nil, err
	}
	shared.client = client
	return client, nil
}

func dialRedis(url string) (*redis.Client, error) {
	if url == "" {
		return nil, ErrRedisDisabled
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opt.Addr, err)
	}
	return client, nil
}

func CloseRedisClient() error {
	shared.Lock()
	defer shared.Unlock()

	if shared.client == nil {
		return nil
	}
	err := shared.client.Close()
	shared.client = nil
	return err
}
