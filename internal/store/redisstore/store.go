package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store caches upstream lookups (resolved live streams, channel stats)
// so the control surface does not burn API quota on every request.
type Store struct {
	c *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		c: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Close() error {
	return s.c.Close()
}

// GetJSON loads a cached value into out. The bool reports whether the
// key existed.
func (s *Store) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.c.Set(ctx, key, b, ttl).Err()
}
