// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for room action logs.
const DefaultQueueName = "trivia_actions"

// RoomActionRecord holds the minimal info needed by the historian.
type RoomActionRecord struct {
	SessionID     uuid.UUID       `json:"session_id"`
	RoomCode      string          `json:"room_code"`
	ActionIndex   uint64          `json:"action_index"`
	ActionType    string          `json:"action_type"`
	Phase         string          `json:"phase"`
	Instance      uint64          `json:"instance"`
	ActionPayload json.RawMessage `json:"action_payload,omitempty"`
	Timestamp     int64           `json:"timestamp"` // epoch millis
}

// Connect parses a redis:// URL and verifies the server answers a PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// ActionLog is a Redis list used as a FIFO queue of room actions.
type ActionLog struct {
	rdb   *redis.Client
	queue string
}

// NewActionLog returns a queue on the given list name, or DefaultQueueName when empty.
func NewActionLog(rdb *redis.Client, queue string) *ActionLog {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ActionLog{rdb: rdb, queue: queue}
}

// Queue returns the list name.
func (l *ActionLog) Queue() string {
	return l.queue
}

// Append serializes the record to JSON and pushes it to the tail of the queue.
func (l *ActionLog) Append(ctx context.Context, record RoomActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomActionRecord: %w", err)
	}
	if err := l.rdb.RPush(ctx, l.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.queue, err)
	}
	return nil
}

// Pop blocks up to timeout for the next record. It returns (nil, nil) when the
// queue stayed empty.
func (l *ActionLog) Pop(ctx context.Context, timeout time.Duration) (*RoomActionRecord, error) {
	res, err := l.rdb.BLPop(ctx, timeout, l.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BLPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply of length %d", len(res))
	}
	var rec RoomActionRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal RoomActionRecord: %w", err)
	}
	return &rec, nil
}

// Len reports the number of queued records.
func (l *ActionLog) Len(ctx context.Context) (int64, error) {
	return l.rdb.LLen(ctx, l.queue).Result()
}
