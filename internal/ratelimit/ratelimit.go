package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultLimit         = 5
	defaultWindow        = time.Minute
	defaultBlockDuration = 5 * time.Minute
	defaultKeyPrefix     = "vendorpos:ratelimit"
)

type Config struct {
	// Attempts allowed per window
	Limit int

	Window time.Duration

	// How long a client stays blocked after going over the limit
	BlockDuration time.Duration

	KeyPrefix string
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Fixed window limiter: INCR a per client counter, EXPIRE it on first hit,
// set a block key once the counter goes over the limit.
type Limiter struct {
	rdb           redis.Cmdable
	limit         int
	window        time.Duration
	blockDuration time.Duration
	prefix        string
}

func New(cfg Config, rdb redis.Cmdable) (*Limiter, error) {
	if rdb == nil {
		return nil, errors.New("redis client must not be nil")
	}

	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = defaultBlockDuration
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}

	return &Limiter{
		rdb:           rdb,
		limit:         cfg.Limit,
		window:        cfg.Window,
		blockDuration: cfg.BlockDuration,
		prefix:        cfg.KeyPrefix,
	}, nil
}

// Count one attempt for the client.
// On redis errors the decision is Allowed and the error is returned for logging
func (l *Limiter) Allow(ctx context.Context, clientID string) (Decision, error) {
	key := l.prefix + ":" + clientID
	blockKey := key + ":blocked"
	allowed := Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}

	ttl, err := l.rdb.TTL(ctx, blockKey).Result()
	if err != nil {
		return allowed, fmt.Errorf("redis ttl: %w", err)
	}
	if ttl > 0 {
		return Decision{Allowed: false, Limit: l.limit, RetryAfter: ttl}, nil
	}

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return allowed, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return allowed, fmt.Errorf("redis expire: %w", err)
		}
	}

	if count > int64(l.limit) {
		if err := l.rdb.Set(ctx, blockKey, "1", l.blockDuration).Err(); err != nil {
			return allowed, fmt.Errorf("redis set: %w", err)
		}
		return Decision{Allowed: false, Limit: l.limit, RetryAfter: l.blockDuration}, nil
	}

	return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - int(count)}, nil
}

// Forget the client, e.g. after a successful login
func (l *Limiter) Reset(ctx context.Context, clientID string) error {
	key := l.prefix + ":" + clientID
	return l.rdb.Del(ctx, key, key+":blocked").Err()
}
