// Package redis provides a thin wrapper around go-redis/v9 with connection
// pooling, set operations for the persisted hash index, and pattern-based
// key deletion.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/config"
)

// Client wraps a go-redis client.
type Client struct {
	rdb redis.UniversalClient
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// SetMembers is one SADD: members added to the set at Key.
type SetMembers struct {
	Key     string
	Members []string
}

// SAddMany issues every SADD in a single MULTI/EXEC transaction so either
// all members are written or none are.
func (c *Client) SAddMany(ctx context.Context, sets []SetMembers) error {
	if len(sets) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, s := range sets {
			if len(s.Members) == 0 {
				continue
			}
			members := make([]any, len(s.Members))
			for i, m := range s.Members {
				members[i] = m
			}
			pipe.SAdd(ctx, s.Key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sadd pipeline (%d sets): %w", len(sets), err)
	}
	return nil
}

// SMembers returns the members of the set at key. A missing key yields an
// empty slice.
func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.rdb.SMembers(ctx, key).Result()
}

// SCard returns the cardinality of the set at key.
func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	return c.rdb.SCard(ctx, key).Result()
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// DeleteByPattern scans for keys matching the glob pattern and deletes them,
// returning the number of keys removed.
func (c *Client) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("deleting key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	return deleted, nil
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
