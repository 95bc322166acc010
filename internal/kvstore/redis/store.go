// Package redis provides a Redis-backed kvstore implementation for
// deployments where sessions move between hosts.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/go-redis/redis/v8"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/kvstore"
)

// Config selects the Redis server and key prefix.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key, e.g. "sacred-wallpaper:".
	Prefix string
}

// Store keeps entries as plain Redis strings without expiry.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client goredis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Close closes the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	fullKey, err := s.key(key)
	if err != nil {
		return "", err
	}
	value, err := s.client.Get(ctx, fullKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", kvstore.ErrNotFound
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set replaces the value stored under key.
func (s *Store) Set(ctx context.Context, key string, value string) error {
	fullKey, err := s.key(key)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, fullKey, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	fullKey, err := s.key(key)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, fullKey).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) key(key string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	return s.prefix + key, nil
}
