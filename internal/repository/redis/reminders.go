package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
)

const defaultReminderPrefix = "reminders"

// ReminderQueue keeps delayed reminders in a sorted set scored by due time in
// milliseconds, with the JSON payload in a hash keyed by task id.
type ReminderQueue struct {
	client     *redis.Client
	queueKey   string
	payloadKey string
}

// NewReminderQueue constructs a queue under the given key prefix.
func NewReminderQueue(client *redis.Client, keyPrefix string) *ReminderQueue {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultReminderPrefix
	}
	return &ReminderQueue{
		client:     client,
		queueKey:   prefix + ":queue",
		payloadKey: prefix + ":payload",
	}
}

// Schedule stores the reminder, replacing any pending one for the same task.
func (q *ReminderQueue) Schedule(ctx context.Context, reminder domain.Reminder) error {
	if reminder.TaskID <= 0 {
		return errors.New("task id is required")
	}

	payload, err := json.Marshal(reminder)
	if err != nil {
		return fmt.Errorf("encode reminder: %w", err)
	}

	member := taskMember(reminder.TaskID)
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.payloadKey, member, payload)
	pipe.ZAdd(ctx, q.queueKey, redis.Z{Score: float64(reminder.DueAt.UnixMilli()), Member: member})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis schedule reminder: %w", err)
	}

	return nil
}

// Cancel drops the pending reminder for taskID, if any.
func (q *ReminderQueue) Cancel(ctx context.Context, taskID int64) error {
	member := taskMember(taskID)
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.queueKey, member)
	pipe.HDel(ctx, q.payloadKey, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis cancel reminder: %w", err)
	}
	return nil
}

// Due lists up to limit task ids whose reminders are due at `at`.
func (q *ReminderQueue) Due(ctx context.Context, at time.Time, limit int64) ([]int64, error) {
	members, err := q.client.ZRangeByScore(ctx, q.queueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(at.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore reminders: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse reminder member %q: %w", member, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Claim takes ownership of the reminder. Only the caller whose ZREM removes the
// member gets ok=true, so concurrent pollers never deliver twice.
func (q *ReminderQueue) Claim(ctx context.Context, taskID int64) (*domain.Reminder, bool, error) {
	member := taskMember(taskID)

	removed, err := q.client.ZRem(ctx, q.queueKey, member).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis zrem reminder: %w", err)
	}
	if removed == 0 {
		return nil, false, nil
	}

	raw, err := q.client.HGet(ctx, q.payloadKey, member).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis hget reminder: %w", err)
	}
	if err := q.client.HDel(ctx, q.payloadKey, member).Err(); err != nil {
		return nil, false, fmt.Errorf("redis hdel reminder: %w", err)
	}

	var reminder domain.Reminder
	if err := json.Unmarshal(raw, &reminder); err != nil {
		return nil, false, fmt.Errorf("decode reminder: %w", err)
	}

	return &reminder, true, nil
}

func taskMember(taskID int64) string {
	return strconv.FormatInt(taskID, 10)
}

var _ port.ReminderQueue = (*ReminderQueue)(nil)
