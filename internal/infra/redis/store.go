// Package redis backs the ledger Store with Redis, so scores and history
// survive process restarts and can be shared by multiple replicas.
package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Store maps the ledger's key-value contract onto plain Redis strings.
// Keys are stored as-is; the ledger already namespaces them.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
