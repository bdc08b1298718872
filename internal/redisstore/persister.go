// Package redisstore persists ledger documents as Redis string keys.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dvloznov/moliya/internal/config"
	"github.com/dvloznov/moliya/internal/ledger"
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
}

// Persister stores each ledger key under <prefix>:<key> with no expiry.
type Persister struct {
	store  cmdable
	raw    *redis.Client
	prefix string
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig) (*Persister, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Persister{store: raw, raw: raw, prefix: cfg.Prefix}, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}

// Key builds the namespaced Redis key for a ledger document.
func (p *Persister) Key(key string) string {
	if p.prefix == "" {
		return key
	}
	return strings.Join([]string{p.prefix, key}, ":")
}

func (p *Persister) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := p.store.Get(ctx, p.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore.Load: %s: %w", key, err)
	}
	return data, nil
}

func (p *Persister) Save(ctx context.Context, key string, data []byte) error {
	if err := p.store.Set(ctx, p.Key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redisstore.Save: %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection.
func (p *Persister) Ping(ctx context.Context) error {
	return p.store.Ping(ctx).Err()
}

// Close releases the connection pool.
func (p *Persister) Close() error {
	if p.raw == nil {
		return nil
	}
	return p.raw.Close()
}

var _ ledger.Persister = (*Persister)(nil)
