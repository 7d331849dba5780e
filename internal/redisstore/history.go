package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const historySuffix = ":history"

// HistoryStore implements history.Store on a Redis list of JSON-encoded
// turns. Trimming is a store-side LTRIM to the newest max entries, so a
// concurrent reader never observes a briefly-empty history.
type HistoryStore struct {
	client *redis.Client
}

func NewHistoryStore(client *redis.Client) *HistoryStore {
	return &HistoryStore{client: client}
}

func (s *HistoryStore) key(sessionKey string) string {
	return sessionKey + historySuffix
}

func (s *HistoryStore) Push(ctx context.Context, key string, raw []byte, max int, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key(key), raw)
	if max > 0 {
		pipe.LTrim(ctx, s.key(key), int64(-max), -1)
	}
	pipe.Expire(ctx, s.key(key), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *HistoryStore) Range(ctx context.Context, key string, limit int) ([][]byte, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	values, err := s.client.LRange(ctx, s.key(key), start, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		out = append(out, []byte(v))
	}
	return out, nil
}

func (s *HistoryStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *HistoryStore) Count(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, s.key(key)).Result()
	if err != nil {
		return 0, err
	}
	return n, nil
}
