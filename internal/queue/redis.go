// Package queue distributes (satellite, day) units through Redis so several
// workers can share one batch.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gustycube/conjunctions/internal/types"
)

// Unit is one satellite-day of work.
type Unit struct {
	Satellite string    `json:"satellite"`
	Day       time.Time `json:"day"`
}

func (u Unit) String() string {
	return fmt.Sprintf("%s/%s", u.Satellite, u.Day.Format("2006-01-02"))
}

type item struct {
	Unit
	TS      int64 `json:"ts"`
	Attempt int   `json:"attempt"`
}

type RedisQueue struct {
	cli      *redis.Client
	queueKey string
	procKey  string
	wait     time.Duration
}

func NewRedis(addr, key string, wait time.Duration) (*RedisQueue, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr})
	if err := cli.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisQueue{cli: cli, queueKey: key, procKey: key + ":processing", wait: wait}, nil
}

// Lease moves the next unit onto the processing list. ok is false when the
// queue stayed empty for the wait period. ack removes the leased unit.
func (q *RedisQueue) Lease(ctx context.Context) (u Unit, ack func() error, ok bool, err error) {
	res, err := q.cli.BRPopLPush(ctx, q.queueKey, q.procKey, q.wait).Result()
	if err == redis.Nil {
		return Unit{}, nil, false, nil
	}
	if err != nil {
		return Unit{}, nil, false, err
	}
	var it item
	if err := json.Unmarshal([]byte(res), &it); err != nil {
		q.cli.LRem(ctx, q.procKey, 1, res)
		return Unit{}, nil, false, fmt.Errorf("decode queue item: %w", err)
	}
	ack = func() error {
		return q.cli.LRem(context.Background(), q.procKey, 1, res).Err()
	}
	return it.Unit, ack, true, nil
}

// Seed pushes one unit.
func (q *RedisQueue) Seed(ctx context.Context, u Unit) error {
	u.Satellite = strings.ToLower(u.Satellite)
	u.Day = types.Day(u.Day)
	b, err := json.Marshal(item{Unit: u, TS: time.Now().UTC().Unix()})
	if err != nil {
		return err
	}
	return q.cli.LPush(ctx, q.queueKey, string(b)).Err()
}

// Requeue moves units left on the processing list by a crashed worker back
// onto the queue.
func (q *RedisQueue) Requeue(ctx context.Context) (int, error) {
	n := 0
	for {
		_, err := q.cli.RPopLPush(ctx, q.procKey, q.queueKey).Result()
		if err == redis.Nil {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.cli.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.cli.Close()
}

// Units expands satellites × [start, end] into daily units, satellite by
// satellite.
func Units(satellites []string, start, end time.Time) []Unit {
	var out []Unit
	for _, sat := range satellites {
		for d := types.Day(start); !d.After(types.Day(end)); d = d.AddDate(0, 0, 1) {
			out = append(out, Unit{Satellite: strings.ToLower(sat), Day: d})
		}
	}
	return out
}
