// Package rediscounter keeps identifier sequences in Redis.
package rediscounter

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "counter:"

type Store struct {
	client redis.Cmdable
}

func New(client redis.Cmdable) *Store {
	return &Store{client: client}
}

// IncrementAndGet uses INCR, which creates the key at zero on first use.
func (s *Store) IncrementAndGet(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("counter name is required")
	}
	return s.client.Incr(ctx, keyPrefix+name).Result()
}
