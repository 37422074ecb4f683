package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisQueue is a Queue on a Redis list, shared by every service instance.
// Producers LPUSH and the worker BRPOPs, so events are delivered FIFO.
type RedisQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
}

// NewRedisQueue creates a queue on the list at key
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		client:      client,
		key:         key,
		pollTimeout: time.Second,
	}
}

// NewRedisClient opens a Redis client and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Enqueue pushes an event onto the list
func (q *RedisQueue) Enqueue(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

// Dequeue pops the oldest event, polling until ctx is done
func (q *RedisQueue) Dequeue(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		result, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Event{}, ctx.Err()
			}
			if errors.Is(err, redis.ErrClosed) {
				return Event{}, ErrQueueClosed
			}
			return Event{}, fmt.Errorf("failed to dequeue event: %w", err)
		}

		// BRPOP returns [key, value]
		var event Event
		if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
			return Event{}, fmt.Errorf("failed to decode event: %w", err)
		}
		return event, nil
	}
}

// Close closes the underlying client
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
