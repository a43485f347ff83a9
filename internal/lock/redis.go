package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Удаляем ключ, только если в нём всё ещё наш токен: истёкший и
// перехваченный другим процессом замок трогать нельзя.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis — Locker, общий для всех экземпляров с одним Redis.
// TTL должен быть больше самой долгой транзакции резервирования.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// NewRedisClient подключается и проверяет соединение через PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) Acquire(ctx context.Context, keys []string, wait time.Duration) (Release, error) {
	keys = normalize(keys)
	token := uuid.NewString()
	deadline := time.Now().Add(waitOrDefault(wait))

	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := r.enter(ctx, key, token, deadline); err != nil {
			r.leave(held, token)
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.leave(held, token) })
	}, nil
}

func (r *Redis) enter(ctx context.Context, key, token string, deadline time.Time) error {
	backoff := 5 * time.Millisecond
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return contextErr(ctx)
			}
			return fmt.Errorf("redis setnx %s: %w", key, err)
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}
		sleep := backoff
		if sleep > remaining {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return contextErr(ctx)
		case <-time.After(sleep):
		}
		if backoff < 100*time.Millisecond {
			backoff *= 2
		}
	}
}

func (r *Redis) leave(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, r.client, []string{keys[i]}, token).Err(); err != nil && err != redis.Nil {
			r.logger.Warn("lock release failed", zap.String("key", keys[i]), zap.Error(err))
		}
	}
}
