package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gustycube/conjunctions/internal/logging"
)

const keyPrefix = "conjunctions:seen:"

type Redis struct {
	cli        *redis.Client
	ttl        time.Duration
	log        *logging.Logger
	errorCount int
}

func NewRedis(addr string, ttl time.Duration, log *logging.Logger) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr})
	if err := cli.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Redis{cli: cli, ttl: ttl, log: log}, nil
}

// Has checks key with EXISTS. Redis failures report the key as absent.
func (r *Redis) Has(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := r.cli.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		r.logError(err)
		return false
	}
	return n > 0
}

// Seen records key with SETNX. Redis failures are logged and reported as
// unseen, so a row may be appended twice but never dropped.
func (r *Redis) Seen(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := r.cli.SetNX(ctx, keyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		r.logError(err)
		return false
	}
	return !ok
}

func (r *Redis) logError(err error) {
	r.errorCount++
	if r.errorCount%100 == 1 {
		r.log.Warnw("redis dedup error", "count", r.errorCount, "err", err)
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.cli.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.cli.Close()
}
