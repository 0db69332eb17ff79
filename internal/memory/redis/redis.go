// Package redis stores session logs in Redis lists.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Store implements memory.SessionStore on top of Redis.
// PushTrim runs RPUSH and LTRIM (and EXPIRE when a TTL is set) inside
// MULTI/EXEC, so concurrent writers never observe or leave an untrimmed list.
type Store struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// Config configures the Redis session store.
type Config struct {
	URL string
	// TTL expires idle sessions; zero keeps them until cleared.
	TTL time.Duration
}

// New connects to Redis using a redis:// URL.
func New(cfg Config) (*Store, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewWithClient(goredis.NewClient(opts), cfg.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client goredis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) PushTrim(ctx context.Context, key string, items []string, max int64) error {
	if len(items) == 0 {
		return nil
	}
	args := make([]interface{}, len(items))
	for i, it := range items {
		args[i] = it
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, args...)
		if max > 0 {
			pipe.LTrim(ctx, key, -max, -1)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis push/trim %s: %w", key, err)
	}
	return nil
}

func (s *Store) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", key, err)
	}
	return vals, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	return s.client.Close()
}
