package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/blockverse/internal/config"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisDirectory хранит каталог в одном Redis hash: поле - id комнаты,
// значение - JSON записи.
type RedisDirectory struct {
	client *redis.Client
	key    string

	// Счётчики для /api/stats и отладки
	operations int64
	failures   int64
}

var _ RoomDirectory = (*RedisDirectory)(nil)

// DirectoryStats - счётчики обращений к Redis
type DirectoryStats struct {
	Operations int64 `json:"operations"`
	Failures   int64 `json:"failures"`
}

// NewRedisDirectory подключается к Redis и проверяет соединение
func NewRedisDirectory(cfg config.DirectoryConfig) (*RedisDirectory, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("не задан адрес Redis для каталога комнат")
	}
	key := cfg.Key
	if key == "" {
		key = config.Default().Directory.Key
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis %s: %w", cfg.RedisAddr, err)
	}

	logging.Info("🗂️ Каталог комнат в Redis: %s (ключ %s)", cfg.RedisAddr, key)
	return &RedisDirectory{client: rdb, key: key}, nil
}

func (r *RedisDirectory) track(err error) error {
	atomic.AddInt64(&r.operations, 1)
	if err != nil {
		atomic.AddInt64(&r.failures, 1)
	}
	return err
}

func (r *RedisDirectory) Put(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи %s: %w", e.ID, err)
	}
	if err := r.track(r.client.HSet(ctx, r.key, e.ID, data).Err()); err != nil {
		return fmt.Errorf("redis hset %s: %w", e.ID, err)
	}
	return nil
}

func (r *RedisDirectory) Remove(ctx context.Context, roomID string) error {
	if err := r.track(r.client.HDel(ctx, r.key, roomID).Err()); err != nil {
		return fmt.Errorf("redis hdel %s: %w", roomID, err)
	}
	return nil
}

func (r *RedisDirectory) List(ctx context.Context) ([]Entry, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err := r.track(err); err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", r.key, err)
	}

	out := make([]Entry, 0, len(raw))
	for id, v := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			logging.Warn("Повреждённая запись каталога %s: %v", id, err)
			continue
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func (r *RedisDirectory) Purge(ctx context.Context, source string) (int, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, e := range entries {
		if e.Source == source {
			stale = append(stale, e.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := r.track(r.client.HDel(ctx, r.key, stale...).Err()); err != nil {
		return 0, fmt.Errorf("redis hdel: %w", err)
	}
	return len(stale), nil
}

// Stats возвращает счётчики обращений
func (r *RedisDirectory) Stats() DirectoryStats {
	return DirectoryStats{
		Operations: atomic.LoadInt64(&r.operations),
		Failures:   atomic.LoadInt64(&r.failures),
	}
}

func (r *RedisDirectory) Close() error {
	return r.client.Close()
}
