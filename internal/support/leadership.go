package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeadershipTTL = 45 * time.Second
	leaderRetryDelay     = time.Second
	leaderCallTimeout    = 5 * time.Second
)

var (
	errLeaseLost = errors.New("leader lease lost")

	// both scripts act only while the caller still owns the key
	extendLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	dropLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// LeaderLock elects a single instance to run a job among all processes that
// share a redis server. A nil client means the process runs alone.
type LeaderLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	owner  string
}

func NewLeaderLock(client *redis.Client, key string, ttl time.Duration) *LeaderLock {
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}
	return &LeaderLock{client: client, key: key, ttl: ttl, owner: newOwnerID()}
}

// Run blocks until ctx ends. Whenever this instance holds the lease, run is
// invoked with a context that is cancelled if the lease is lost. After run
// returns the lease is dropped and the instance competes for it again.
func (l *LeaderLock) Run(ctx context.Context, run func(context.Context)) error {
	if run == nil {
		return errors.New("support: leader run function cannot be nil")
	}
	if l.client == nil {
		log.Debug("No redis client, running job standalone", "lock", l.key)
		run(ctx)
		return ctx.Err()
	}

	for {
		held, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			log.Warn("Leader lease acquisition failed", "lock", l.key, "error", err)
		case held:
			l.lead(ctx, run)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(leaderRetryDelay):
		}
	}
}

func (l *LeaderLock) lead(ctx context.Context, run func(context.Context)) {
	leaseCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(leaseCtx, cancel)
	}()

	log.Debug("Leader lease acquired", "lock", l.key)
	run(leaseCtx)

	cancel()
	<-done
	if err := l.drop(); err != nil {
		log.Warn("Leader lease release failed", "lock", l.key, "error", err)
	}
	log.Debug("Leader lease released", "lock", l.key)
}

func (l *LeaderLock) keepAlive(ctx context.Context, lost context.CancelFunc) {
	ticker := time.NewTicker(renewEvery(l.ttl))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.extend(); err != nil {
				log.Warn("Leader lease renewal failed", "lock", l.key, "error", err)
				lost()
				return
			}
		}
	}
}

func (l *LeaderLock) extend() error {
	ctx, cancel := context.WithTimeout(context.Background(), leaderCallTimeout)
	defer cancel()

	n, err := extendLeaseScript.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return errLeaseLost
	}
	return nil
}

func (l *LeaderLock) drop() error {
	ctx, cancel := context.WithTimeout(context.Background(), leaderCallTimeout)
	defer cancel()

	err := dropLeaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// renewEvery renews three times per lease, never faster than once a second.
func renewEvery(ttl time.Duration) time.Duration {
	if every := ttl / 3; every > time.Second {
		return every
	}
	return time.Second
}

func newOwnerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.NewString())
}
