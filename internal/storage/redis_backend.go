package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/blockdisguise/internal/logging"
)

// RedisOptions параметры подключения к Redis
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Timeout  time.Duration
}

// RedisBackend хранит записи в Redis под ключами <prefix><key>
type RedisBackend struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisBackend подключается к Redis и проверяет соединение
func NewRedisBackend(opts RedisOptions) (*RedisBackend, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis %s: %w", opts.Addr, err)
	}

	logging.Info("Redis хранилище оверлеев подключено: %s (префикс %q)", opts.Addr, opts.Prefix)
	return NewRedisBackendWithClient(rdb, opts.Prefix, opts.Timeout), nil
}

// NewRedisBackendWithClient использует готовый клиент
func NewRedisBackendWithClient(client *redis.Client, prefix string, timeout time.Duration) *RedisBackend {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RedisBackend{client: client, prefix: prefix, timeout: timeout}
}

func (r *RedisBackend) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *RedisBackend) Load(key string) ([]byte, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s из Redis: %w", key, err)
	}
	return val, nil
}

func (r *RedisBackend) Store(key string, data []byte) error {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("ошибка записи %s в Redis: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) Delete(key string) error {
	ctx, cancel := r.ctx()
	defer cancel()

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("ошибка удаления %s из Redis: %w", key, err)
	}
	return nil
}

// List перечисляет ключи через SCAN
func (r *RedisBackend) List(prefix string) ([]string, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	pattern := escapeGlob(r.prefix+prefix) + "*"
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("ошибка перечисления ключей Redis: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
