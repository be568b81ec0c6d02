package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCommands is the part of *redis.Client the store uses.
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisStore struct {
	client redisCommands
	opts   Options
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, opts Options) *RedisStore {
	return newRedisStore(client, opts)
}

func newRedisStore(client redisCommands, opts Options) *RedisStore {
	opts.applyDefaults()

	return &RedisStore{client: client, opts: opts, now: time.Now}
}

func progressKey(chatID int64) string {
	return "progress:" + strconv.FormatInt(chatID, 10)
}

func lastUpdateKey(chatID int64) string {
	return "last_update:" + strconv.FormatInt(chatID, 10)
}

func (s *RedisStore) Update(ctx context.Context, chatID int64, current, total int, force bool) (bool, error) {
	now := s.now()

	if !force {
		last, err := s.client.Get(ctx, lastUpdateKey(chatID)).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return false, fmt.Errorf("can't get last update time: %w", err)
		default:
			lastTime, err := time.Parse(time.RFC3339Nano, last)
			if err == nil && now.Sub(lastTime) < s.opts.MinInterval {
				return false, nil
			}
		}
	}

	data, err := json.Marshal(newProgress(current, total, now))
	if err != nil {
		return false, fmt.Errorf("can't marshal progress: %w", err)
	}

	if err := s.client.Set(ctx, progressKey(chatID), data, s.opts.TTL).Err(); err != nil {
		return false, fmt.Errorf("can't save progress: %w", err)
	}
	if err := s.client.Set(ctx, lastUpdateKey(chatID), now.Format(time.RFC3339Nano), s.opts.TTL).Err(); err != nil {
		return false, fmt.Errorf("can't save last update time: %w", err)
	}

	return true, nil
}

func (s *RedisStore) Get(ctx context.Context, chatID int64) (*Progress, error) {
	data, err := s.client.Get(ctx, progressKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("can't get progress: %w", err)
	}

	var progress Progress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("can't unmarshal progress: %w", err)
	}
	return &progress, nil
}

func (s *RedisStore) Clear(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, progressKey(chatID), lastUpdateKey(chatID)).Err(); err != nil {
		return fmt.Errorf("can't clear progress: %w", err)
	}
	return nil
}
