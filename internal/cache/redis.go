package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions параметры подключения к Redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// Redis клиент кэша поверх go-redis.
type Redis struct {
	rdb redis.UniversalClient
}

// NewRedis создаёт клиент. Подключение устанавливается лениво.
func NewRedis(opts RedisOptions) *Redis {
	return NewRedisFromClient(redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     20,
		MinIdleConns: 2,
	}))
}

// NewRedisFromClient оборачивает готовый клиент go-redis.
func NewRedisFromClient(rdb redis.UniversalClient) *Redis {
	return &Redis{rdb: rdb}
}

// Get возвращает значение ключа или ErrMiss.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return value, err
}

// Set записывает значение с TTL.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// Del удаляет ключ.
func (r *Redis) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Ping проверяет соединение.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close закрывает соединения.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
