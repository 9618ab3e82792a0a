package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when the lock is held elsewhere and the wait expired.
var ErrNotObtained = errors.New("could not obtain lock")

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive locks keyed by string.
type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}

// WaveKey is the lock key for mutations of one wave.
func WaveKey(waveID int64) string {
	return fmt.Sprintf("lock:wave:%d", waveID)
}

// OrderKey is the lock key for the pick or pack of one order reference.
func OrderKey(reference string) string {
	return "lock:order:" + reference
}

// RedisLocker obtains locks through redislock so several instances share them.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker creates a locker on top of rdb. Locks expire after ttl and
// Obtain retries for at most wait.
func NewRedisLocker(rdb *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, wait: wait}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	retries := int(l.wait / (100 * time.Millisecond))
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtaining redis lock %s: %w", key, err)
	}
	return lock, nil
}

// LocalLocker serializes work inside one process. Used when no redis is configured.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

// NewLocalLocker creates an in-process locker whose Obtain gives up after wait.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{}), wait: wait}
}

type localLock struct {
	slot chan struct{}
	once sync.Once
}

func (l *localLock) Release(context.Context) error {
	l.once.Do(func() { <-l.slot })
	return nil
}

// Obtain blocks until key is free, wait has passed or ctx is done.
func (l *LocalLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return &localLock{slot: slot}, nil
	default:
	}
	select {
	case slot <- struct{}{}:
		return &localLock{slot: slot}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrNotObtained, key, ctx.Err())
	}
}
