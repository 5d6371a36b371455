// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

// Package cache implements the session snapshot cache on Redis.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/photostream/photostream/internal/auth"
)

// keyPrefix namespaces session entries in a shared Redis instance.
const keyPrefix = "user:"

// RedisCache implements auth.SessionCache on a Redis instance.
type RedisCache struct {
	client *redis.Client
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New creates a RedisCache and verifies the connection with a ping.
func New(ctx context.Context, opts Options) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("CACHE_CONNECT_FAILED").
			With("addr", opts.Addr).
			Wrap(err)
	}
	return &RedisCache{client: client}, nil
}

// NewWithClient wraps an existing client. Tests use this with miniature
// or mocked servers.
func NewWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the entry stored for email, or (nil, nil) on a miss.
func (c *RedisCache) Get(ctx context.Context, email string) ([]byte, error) {
	data, err := c.client.Get(ctx, keyPrefix+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("CACHE_GET_FAILED").
			With("email", email).
			Wrap(err)
	}
	return data, nil
}

// Set stores entry under email with the given TTL, replacing any
// previous value.
func (c *RedisCache) Set(ctx context.Context, email string, entry []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, keyPrefix+email, entry, ttl).Err(); err != nil {
		return oops.Code("CACHE_SET_FAILED").
			With("email", email).
			Wrap(err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *RedisCache) Close() error {
	if err := c.client.Close(); err != nil {
		return oops.Code("CACHE_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.SessionCache = (*RedisCache)(nil)
