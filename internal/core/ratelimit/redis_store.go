package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCounterStore Redis 後端的配額計數器
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore 創建 Redis 配額計數器
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

// IncrementAndCheck 原子遞增計數，首次命中時設定視窗過期
func (s *RedisCounterStore) IncrementAndCheck(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	// 鍵存在但沒有過期時間（例如 EXPIRE 在崩潰間隙丟失），重建視窗
	if ttl < 0 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}

	return count, ttl, nil
}

// Decrement 回退一次計數
func (s *RedisCounterStore) Decrement(ctx context.Context, key string) error {
	return s.client.Decr(ctx, key).Err()
}
