// Package cache хранит короткоживущие флаги «уже сделано»:
// например, что напоминание об окончании подписки уже отправлено.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Flags — набор флагов с TTL.
type Flags interface {
	// SetOnce ставит флаг и возвращает true, если его ещё не было.
	SetOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// LocalFlags — флаги в памяти процесса.
type LocalFlags struct {
	mu    sync.Mutex
	now   func() time.Time
	flags map[string]time.Time // ключ -> момент истечения
}

// NewLocalFlags создаёт флаги в памяти. now == nil — системные часы.
func NewLocalFlags(now func() time.Time) *LocalFlags {
	if now == nil {
		now = time.Now
	}
	return &LocalFlags{now: now, flags: make(map[string]time.Time)}
}

func (f *LocalFlags) SetOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if exp, ok := f.flags[key]; ok && now.Before(exp) {
		return false, nil
	}
	f.flags[key] = now.Add(ttl)

	// Чистим просроченные, чтобы карта не росла бесконечно
	for k, exp := range f.flags {
		if !now.Before(exp) {
			delete(f.flags, k)
		}
	}
	return true, nil
}

// RedisFlags — флаги в Redis (SET NX с TTL).
type RedisFlags struct {
	client *redis.Client
	prefix string
}

// NewRedisFlags создаёт флаги поверх клиента Redis.
func NewRedisFlags(client *redis.Client) *RedisFlags {
	return &RedisFlags{client: client, prefix: "bear-tycoon:flag:"}
}

func (f *RedisFlags) SetOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := f.client.SetNX(ctx, f.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка записи флага %s: %w", key, err)
	}
	return ok, nil
}

// Connect подключается к Redis и проверяет соединение.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis недоступен: %w", err)
	}
	log.WithField("addr", addr).Info("Подключение к Redis установлено")
	return rdb, nil
}
