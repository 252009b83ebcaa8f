// Package runlock keeps two archive runs from working on the same day and
// records a short history of finished runs. It needs redis; without a URL
// every call is a no-op.
package runlock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "recarchive:lock:"
	historyKey = "recarchive:runs"
	historyLen = 100
)

// ErrHeld is returned by Acquire when another run owns the day.
var ErrHeld = errors.New("day is locked by another run")

// release deletes the key only while it still carries our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// New parses url and returns a Locker. An empty url yields a disabled Locker.
func New(url string, ttl time.Duration) (*Locker, error) {
	if url == "" {
		return &Locker{}, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Locker{client: redis.NewClient(opt), ttl: ttl}, nil
}

// Enabled reports whether a redis server backs the Locker.
func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

func (l *Locker) Ping(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}
	return l.client.Ping(ctx).Err()
}

// Acquire takes the lock for day using token as the owner. The returned
// function releases it.
func (l *Locker) Acquire(ctx context.Context, day, token string) (func(context.Context) error, error) {
	if !l.Enabled() {
		return func(context.Context) error { return nil }, nil
	}
	key := keyPrefix + day
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		return release.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}

// Record prepends summary to the run history, keeping the newest entries.
func (l *Locker) Record(ctx context.Context, summary string) error {
	if !l.Enabled() {
		return nil
	}
	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, historyKey, summary)
	pipe.LTrim(ctx, historyKey, 0, historyLen-1)
	_, err := pipe.Exec(ctx)
	return err
}

// History returns up to n of the most recent run summaries.
func (l *Locker) History(ctx context.Context, n int64) ([]string, error) {
	if !l.Enabled() {
		return nil, nil
	}
	return l.client.LRange(ctx, historyKey, 0, n-1).Result()
}

func (l *Locker) Close() error {
	if !l.Enabled() {
		return nil
	}
	return l.client.Close()
}
