// Package cache implements the CacheInvalidator abstraction: an interface
// over cache-key purging whose wildcard semantics ("paidrequest/relation/*")
// are preserved by the backend implementation, adapted from
// stock/cache.go's Redis cache-aside client.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Invalidator purges cache keys after a persistence-gateway write. A key
// ending in "*" is a wildcard family (e.g. "userrequest/relation/*") and must
// expand to every matching key at the backend, not just the literal string.
type Invalidator interface {
	Purge(ctx context.Context, keys []string) error
}

// RedisInvalidator implements Invalidator against Redis: literal keys are
// DEL'd directly, wildcard keys are SCAN'd first.
type RedisInvalidator struct {
	client *redis.Client
}

// NewRedisInvalidator connects to addr and verifies the connection.
func NewRedisInvalidator(addr string) (*RedisInvalidator, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisInvalidator{client: client}, nil
}

// NewRedisInvalidatorFromClient wraps an already-constructed client, used by
// tests against miniredis.
func NewRedisInvalidatorFromClient(client *redis.Client) *RedisInvalidator {
	return &RedisInvalidator{client: client}
}

func (r *RedisInvalidator) Close() error {
	return r.client.Close()
}

// Purge deletes every literal key and expands every wildcard key via SCAN
// before deleting the matches.
func (r *RedisInvalidator) Purge(ctx context.Context, keys []string) error {
	var toDelete []string

	for _, key := range keys {
		if !strings.HasSuffix(key, "*") {
			toDelete = append(toDelete, key)
			continue
		}

		matches, err := r.expandWildcard(ctx, key)
		if err != nil {
			return fmt.Errorf("expand wildcard key %s: %w", key, err)
		}
		toDelete = append(toDelete, matches...)
	}

	if len(toDelete) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, toDelete...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

func (r *RedisInvalidator) expandWildcard(ctx context.Context, pattern string) ([]string, error) {
	var matches []string
	var cursor uint64

	for {
		keys, nextCursor, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}

		matches = append(matches, keys...)
		cursor = nextCursor

		if cursor == 0 {
			break
		}
	}

	return matches, nil
}
