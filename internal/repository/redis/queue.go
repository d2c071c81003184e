package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
	"github.com/JojoWeyn/transcriber/pkg/utils"
	"github.com/redis/go-redis/v9"
)

const DefaultQueueKey = "transcription:queue"

// Queue is a FIFO list: LPUSH on one end, RPOP on the other. Pops are destructive.
type Queue struct {
	client *redis.Client
	key    string
}

func NewQueue(client *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &Queue{client: client, key: key}
}

func (q *Queue) Push(ctx context.Context, entry entity.QueueEntry) error {
	body, err := utils.ToRawMessage(entry)
	if err != nil {
		return fmt.Errorf("encode queue entry: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, []byte(body)).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

// Pop returns nil, nil when the queue is empty.
func (q *Queue) Pop(ctx context.Context) (*entity.QueueEntry, error) {
	raw, err := q.client.RPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rpop %s: %w", q.key, err)
	}
	return decodeEntry(raw)
}

// PopWait blocks up to timeout (at least one second, a Redis limit) for an entry.
func (q *Queue) PopWait(ctx context.Context, timeout time.Duration) (*entity.QueueEntry, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("brpop %s: %w", q.key, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("brpop %s: unexpected reply %v", q.key, res)
	}
	return decodeEntry(res[1])
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func decodeEntry(raw string) (*entity.QueueEntry, error) {
	var entry entity.QueueEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("decode queue entry: %w", err)
	}
	return &entry, nil
}
