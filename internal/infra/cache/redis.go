package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"news-portal/internal/domain"
)

// RedisCache реализует domain.Cache через Redis. Once используется
// планировщиком как замок одного запуска на деплоймент.
type RedisCache struct {
	client *redis.Client
}

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

var _ domain.Cache = (*RedisCache)(nil)

// Once выполняет функцию, если ключ ещё не задан. При ошибке функции
// ключ снимается, чтобы следующий вызов мог повторить попытку.
func (c *RedisCache) Once(key string, ttl time.Duration, fn func() error) error {
	ctx := context.Background()
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return err
	}
	return nil
}
