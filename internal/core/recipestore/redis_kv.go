package recipestore

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// RedisKV Redis 後端的 find-or-create 儲存
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV 創建 Redis 食譜儲存後端
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// FindOrCreate SETNX：鍵不存在時寫入（不設過期，食譜庫永久保存）
func (s *RedisKV) FindOrCreate(ctx context.Context, key string, value []byte) (bool, error) {
	return s.client.SetNX(ctx, key, value, 0).Result()
}
