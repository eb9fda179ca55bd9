package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL bounds how long a crashed holder can block others.
const DefaultRedisTTL = 30 * time.Second

// Only the owner may release or extend the key.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker implements Locker with SET NX PX on a shared Redis key. While
// held, the key's TTL is refreshed in the background so long-running scripts
// keep their lock.
type RedisLocker struct {
	client  redis.UniversalClient
	key     string
	ttl     time.Duration
	timeout time.Duration

	mu     sync.Mutex
	token  string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisLocker creates a locker for key. A zero ttl uses DefaultRedisTTL.
func NewRedisLocker(client redis.UniversalClient, key string, ttl, timeout time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisLocker{
		client:  client,
		key:     key,
		ttl:     ttl,
		timeout: timeout,
	}
}

// DialRedis connects to the Redis server described by a redis:// URL.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Key returns the Redis key guarded by this locker.
func (l *RedisLocker) Key() string {
	return l.key
}

// Lock acquires the Redis key.
func (l *RedisLocker) Lock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != "" {
		return fmt.Errorf("redis lock %s: already held by this locker", l.key)
	}

	token := uuid.NewString()
	err := Retry(ctx, l.timeout, func() error {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("redis lock %s: %w", l.key, err)
		}
		if !ok {
			return fmt.Errorf("redis lock %s: %w", l.key, ErrHeld)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.token = token
	keepCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.keepAlive(keepCtx, token, l.done)
	return nil
}

func (l *RedisLocker) keepAlive(ctx context.Context, token string, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A failed refresh lets the key expire; the next holder then wins.
			_ = extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Err()
		}
	}
}

// Unlock releases the key if this locker still owns it.
func (l *RedisLocker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return ErrNotHeld
	}

	l.cancel()
	<-l.done
	token := l.token
	l.token, l.cancel, l.done = "", nil, nil

	released, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis unlock %s: %w", l.key, err)
	}
	if released == 0 {
		return fmt.Errorf("redis unlock %s: key expired or taken over: %w", l.key, ErrNotHeld)
	}
	return nil
}
