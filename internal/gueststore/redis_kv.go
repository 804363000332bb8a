package gueststore

import (
	"context"
	"fmt"

	"github.com/mealkart/cartsync-backend/pkg/redis"
)

// RedisKV holds guest cart blobs in Redis under namespaced keys.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps the shared redis client as a KV backend.
func NewRedisKV(client *redis.Client) (*RedisKV, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisKV{client: client}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.client.GuestCartKey(key))
	if err != nil {
		if redis.IsNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	// Guest carts survive until synced or cleared; no TTL.
	return r.client.Set(ctx, r.client.GuestCartKey(key), value, 0)
}

func (r *RedisKV) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.client.GuestCartKey(key))
}
