// README: Driver queue on a redis list. FIFO, head gets the next order.
package sim

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const queueKey = "hail:driver_queue"

type DriverQueue struct {
	rdb *redis.Client
}

func NewDriverQueue(rdb *redis.Client) *DriverQueue {
	return &DriverQueue{rdb: rdb}
}

// Join appends the driver and returns their 1-based position. Joining
// twice keeps the original slot.
func (q *DriverQueue) Join(ctx context.Context, driverID string) (int, error) {
	pos, err := q.rdb.LPos(ctx, queueKey, driverID, redis.LPosArgs{}).Result()
	if err == nil {
		return int(pos) + 1, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}
	n, err := q.rdb.RPush(ctx, queueKey, driverID).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (q *DriverQueue) Leave(ctx context.Context, driverID string) error {
	return q.rdb.LRem(ctx, queueKey, 0, driverID).Err()
}

// Head returns the next driver in line without removing them.
func (q *DriverQueue) Head(ctx context.Context) (string, error) {
	id, err := q.rdb.LIndex(ctx, queueKey, 0).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

// Rotate puts the driver at the back of the line, whether or not they
// currently hold a slot. Requeue paths use it so a freed driver never
// jumps ahead of drivers who kept waiting.
func (q *DriverQueue) Rotate(ctx context.Context, driverID string) error {
	if err := q.rdb.LRem(ctx, queueKey, 0, driverID).Err(); err != nil {
		return err
	}
	return q.rdb.RPush(ctx, queueKey, driverID).Err()
}

// Members lists queued drivers in order.
func (q *DriverQueue) Members(ctx context.Context) ([]string, error) {
	return q.rdb.LRange(ctx, queueKey, 0, -1).Result()
}
