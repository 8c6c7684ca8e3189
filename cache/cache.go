// Package cache provides a small key/value cache with a memory and a Redis
// backend. Values are stored as JSON so both backends behave the same.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrMiss is returned by Backend.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Backend stores raw values. A ttl of zero means the backend default.
type Backend interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Config selects and sizes a backend.
type Config struct {
	Backend  string        `mapstructure:"backend"`
	Size     int           `mapstructure:"size"`
	TTL      time.Duration `mapstructure:"ttl"`
	RedisURL string        `mapstructure:"redis_url"`
	RedisDB  int           `mapstructure:"redis_db"`
}

// Client wraps a Backend with JSON encoding of values.
type Client struct {
	backend Backend
	logger  *zap.Logger
}

// New builds a client for the configured backend.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "", BackendMemory:
		backend = NewMemoryBackend(cfg.Size, cfg.TTL)
	case BackendRedis:
		backend, err = NewRedisBackend(cfg.RedisURL, cfg.RedisDB, cfg.TTL)
	default:
		err = fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewClient(backend, logger), nil
}

// NewClient wraps an existing backend.
func NewClient(backend Backend, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{backend: backend, logger: logger}
}

// Backend returns the wrapped backend.
func (c *Client) Backend() Backend {
	return c.backend
}

func (c *Client) Has(ctx context.Context, key string) bool {
	ok, err := c.backend.Has(ctx, key)
	if err != nil {
		c.logger.Warn("Cache lookup failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

// Get decodes the value under key into out. It reports false on a miss or
// when the stored value does not decode.
func (c *Client) Get(ctx context.Context, key string, out any) bool {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("Cache value does not decode", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return c.backend.Set(ctx, key, data, ttl)
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, key)
}

func (c *Client) Clear(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

func (c *Client) Close() error {
	return c.backend.Close()
}
