package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeadershipTTL = 45 * time.Second
	acquireRetryEvery    = time.Second
	redisCallTimeout     = 5 * time.Second
)

var (
	tokenCounter atomic.Uint64

	// Both scripts compare the stored token first so a worker can only
	// extend or drop a lease it still owns.
	extendLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	dropLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// RunWithLeader runs the given function only while this process holds the
// Redis lease named by key, so a job scheduled on every worker of a
// deployment executes on exactly one of them. The function receives a
// context that is cancelled when the lease is lost; when it returns, the
// lease is dropped and re-acquisition starts over. RunWithLeader itself
// returns when ctx ends, or immediately with an error when no Redis client
// is available.
func RunWithLeader(ctx context.Context, key string, ttl time.Duration, run func(context.Context)) error {
	if run == nil {
		return errors.New("support: leadership requires a run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}

	client, err := GetRedisClient()
	if err != nil {
		return fmt.Errorf("support: leadership lock: %w", err)
	}

	lock := leaderLock{client: client, key: key, ttl: ttl}

	for {
		if err := lock.waitForLease(ctx); err != nil {
			return err
		}
		log.Debug("took leadership", "key", key)

		leaderCtx, stop := lock.keepRenewed(ctx)
		run(leaderCtx)
		stop()

		lock.release()
		log.Debug("gave up leadership", "key", key)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquireRetryEvery):
		}
	}
}

// leaderLock is one worker's claim on a named lease. The token ties every
// extend/release back to the acquisition that created it.
type leaderLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// waitForLease blocks until SetNX wins the key or ctx ends. Transient Redis
// errors are logged and retried; a contested key is simply polled.
func (l *leaderLock) waitForLease(ctx context.Context) error {
	l.token = newLeaderToken()

	for {
		won, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("leadership acquire failed", "key", l.key, "error", err)
		} else if won {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquireRetryEvery):
		}
	}
}

// keepRenewed extends the lease on a third of its TTL until the returned
// stop function is called; a failed extension cancels the returned context.
func (l *leaderLock) keepRenewed(ctx context.Context) (context.Context, context.CancelFunc) {
	leaderCtx, cancel := context.WithCancel(ctx)

	every := l.ttl / 3
	if every < time.Second {
		every = time.Second
	}

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-leaderCtx.Done():
				return
			case <-ticker.C:
				if err := l.extend(); err != nil {
					log.Warn("leadership lease lost", "key", l.key, "error", err)
					cancel()
					return
				}
			}
		}
	}()

	return leaderCtx, cancel
}

func (l *leaderLock) extend() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisCallTimeout)
	defer cancel()

	res, err := extendLease.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if extended, _ := res.(int64); extended == 0 {
		return errors.New("another worker holds the key")
	}
	return nil
}

func (l *leaderLock) release() {
	ctx, cancel := context.WithTimeout(context.Background(), redisCallTimeout)
	defer cancel()

	_, err := dropLease.Run(ctx, l.client, []string{l.key}, l.token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Warn("leadership release failed", "key", l.key, "error", err)
	}
}

func newLeaderToken() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s:%d:%d:%d", host, os.Getpid(), time.Now().UnixNano(), tokenCounter.Add(1))
}
