package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const claimSuffix = ":claim"

// BufferStore implements buffer.Store on a Redis list per conversation.
// Fragment order is arrival order (RPUSH); the settlement claim is a
// plain SET NX key with its own TTL so a crashed winner cannot wedge a
// conversation.
type BufferStore struct {
	client *redis.Client
	suffix string
}

func NewBufferStore(client *redis.Client, keySuffix string) *BufferStore {
	return &BufferStore{client: client, suffix: keySuffix}
}

func (s *BufferStore) key(conversationKey string) string {
	return conversationKey + s.suffix
}

func (s *BufferStore) Append(ctx context.Context, key, fragment string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key(key), fragment)
	pipe.Expire(ctx, s.key(key), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *BufferStore) Fragments(ctx context.Context, key string) ([]string, error) {
	return s.client.LRange(ctx, s.key(key), 0, -1).Result()
}

func (s *BufferStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, err
	}
	if d < 0 {
		// -1 no expiry, -2 missing key; both report as zero remaining.
		return 0, nil
	}
	return d, nil
}

func (s *BufferStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *BufferStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.key(key)+claimSuffix, 1, ttl).Result()
}

func (s *BufferStore) ReleaseClaim(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)+claimSuffix).Err()
}
