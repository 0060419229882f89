package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suPer8Hu/support-desk/internal/chat"
)

// TranscriptArchive mirrors conversation messages into a Redis list per
// customer. The key's TTL is refreshed on every append.
type TranscriptArchive struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewTranscriptArchive(rdb redis.Cmdable, ttl time.Duration) *TranscriptArchive {
	return &TranscriptArchive{rdb: rdb, ttl: ttl}
}

func TranscriptKey(customerID string) string {
	return fmt.Sprintf("support:conversation:%s:messages", customerID)
}

func (a *TranscriptArchive) Archive(ctx context.Context, msg chat.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := TranscriptKey(msg.UserID)

	pipe := a.rdb.TxPipeline()
	pipe.RPush(ctx, key, b)
	if a.ttl > 0 {
		pipe.Expire(ctx, key, a.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("archive message %s: %w", msg.ID, err)
	}
	return nil
}

// Load returns the archived transcript oldest first.
func (a *TranscriptArchive) Load(ctx context.Context, customerID string) ([]chat.Message, error) {
	rows, err := a.rdb.LRange(ctx, TranscriptKey(customerID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		var m chat.Message
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			return nil, fmt.Errorf("decode archived message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (a *TranscriptArchive) Clear(ctx context.Context, customerID string) error {
	return a.rdb.Del(ctx, TranscriptKey(customerID)).Err()
}

func (a *TranscriptArchive) Count(ctx context.Context, customerID string) (int64, error) {
	return a.rdb.LLen(ctx, TranscriptKey(customerID)).Result()
}
