// Package rediskv implements store.KV on top of Redis, for deployments that
// run more than one replica of the authorization server and need state
// shared across them. The key prefix and TTL semantics mirror internal/store
// exactly; Redis just supplies atomic GETDEL/SETNX primitives in place of the
// in-process mutex memkv uses.
package rediskv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/atrawog/mcp-oauth-gateway/internal/store"
)

// KV is a Redis-backed implementation of store.KV.
type KV struct {
	client *redis.Client
	prefix string
}

// Config configures the Redis connection. Addr is required; the rest default
// to the go-redis client defaults.
type Config struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces all keys written by this KV, so one Redis
	// instance can be shared by more than one deployment if needed.
	KeyPrefix string
}

// New dials addr and verifies connectivity with a PING before returning.
func New(ctx context.Context, cfg Config) (*KV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "connect to redis")
	}
	return &KV{client: client, prefix: cfg.KeyPrefix}, nil
}

// NewWithClient wraps an already-constructed redis client, letting tests
// substitute a miniredis-backed client without dialing a real server.
func NewWithClient(client *redis.Client, keyPrefix string) *KV {
	return &KV{client: client, prefix: keyPrefix}
}

func (kv *KV) key(k string) string {
	return kv.prefix + k
}

// Get implements store.KV.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := kv.client.Get(ctx, kv.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "redis get")
	}
	return b, nil
}

// Put implements store.KV.
func (kv *KV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0
	}
	if err := kv.client.Set(ctx, kv.key(key), value, ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// PutIfAbsent implements store.KV using SETNX.
func (kv *KV) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0
	}
	ok, err := kv.client.SetNX(ctx, kv.key(key), value, ttl).Result()
	if err != nil {
		return errors.Wrap(err, "redis setnx")
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

// Delete implements store.KV.
func (kv *KV) Delete(ctx context.Context, key string) error {
	if err := kv.client.Del(ctx, kv.key(key)).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

// TakeOnce implements store.KV using GETDEL, which Redis executes as a
// single atomic command, giving every concurrent caller on the same key a
// consistent winner.
func (kv *KV) TakeOnce(ctx context.Context, key string) ([]byte, error) {
	b, err := kv.client.GetDel(ctx, kv.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "redis getdel")
	}
	return b, nil
}

// Close implements store.KV.
func (kv *KV) Close() error {
	return kv.client.Close()
}
