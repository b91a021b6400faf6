package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ecommerce_recommend/models"
)

// RedisCache 是Redis实现的推荐缓存，生产环境使用。
// 值为JSON数组，SET本身保证条目的原子替换。
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration // 0表示不过期
}

func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("rec:user:%d", userID)
}

func (c *RedisCache) Get(ctx context.Context, userID int64) ([]models.Recommendation, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var recs []models.Recommendation
	if err := json.Unmarshal(data, &recs); err != nil {
		// 损坏的条目当作未命中处理，下一次Put会覆盖
		return nil, false, err
	}
	return recs, true, nil
}

func (c *RedisCache) Put(ctx context.Context, userID int64, recs []models.Recommendation) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(userID), data, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, cacheKey(userID)).Err()
}
