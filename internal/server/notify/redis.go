package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPopTimeout = time.Second

// RedisQueue keeps messages in two Redis lists. Pop atomically moves an item
// from the pending list to the processing list; Ack removes it from there.
// Items stranded in processing by a crash are moved back by Recover.
type RedisQueue struct {
	rdb        redis.UniversalClient
	pending    string
	processing string
	popTimeout time.Duration
}

// NewRedisQueue returns a queue whose lists are named after prefix.
func NewRedisQueue(rdb redis.UniversalClient, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "mindvault:notify"
	}
	return &RedisQueue{
		rdb:        rdb,
		pending:    prefix + ":pending",
		processing: prefix + ":processing",
		popTimeout: defaultPopTimeout,
	}
}

func (q *RedisQueue) Push(ctx context.Context, msg Message) error {
	raw, err := encode(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.pending, raw).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Pop waits in short BLMOVE rounds so that ctx cancellation is noticed.
func (q *RedisQueue) Pop(ctx context.Context) (*Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := q.rdb.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", q.popTimeout).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, redis.ErrClosed) {
				return nil, ErrQueueClosed
			}
			return nil, fmt.Errorf("redis blmove: %w", err)
		}
		msg, err := decode(raw)
		if err != nil {
			// Unreadable envelopes are dropped so they cannot wedge the queue.
			_ = q.rdb.LRem(ctx, q.processing, 1, raw).Err()
			return nil, fmt.Errorf("decode message: %w", err)
		}
		return &Delivery{Message: msg, raw: raw}, nil
	}
}

func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.rdb.LRem(ctx, q.processing, 1, d.raw).Err(); err != nil {
		return fmt.Errorf("redis lrem: %w", err)
	}
	return nil
}

func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.rdb.LMove(ctx, q.processing, q.pending, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("redis lmove: %w", err)
		}
		n++
	}
}

// Close is a no-op; the client is owned by the caller.
func (q *RedisQueue) Close() error { return nil }
