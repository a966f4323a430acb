package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "taskfuse:seen:"

// RedisSuppressor shares the seen set between several clients of the same
// account. Each key lives for one window via SET NX with a TTL.
type RedisSuppressor struct {
	client *redis.Client
	prefix string
	window time.Duration
}

func NewRedisSuppressor(client *redis.Client, prefix string, window time.Duration) *RedisSuppressor {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisSuppressor{client: client, prefix: prefix, window: window}
}

// OpenRedis parses a redis:// URL and verifies the server answers.
func OpenRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisSuppressor) Admit(ctx context.Context, key string, now time.Time) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, now.UTC().Format(time.RFC3339Nano), s.window).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *RedisSuppressor) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}
