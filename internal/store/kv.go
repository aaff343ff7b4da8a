// Package store provides a typed, namespaced wrapper over an opaque
// key-value backend with per-key TTL, plus the concrete entities persisted
// there (see storage.go in the teacher for the shape this generalizes).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by KV and Store lookups for a missing or expired key.
var ErrNotFound = errors.New("store: key not found")

// ErrAlreadyExists is returned by PutIfAbsent when the key is already set.
var ErrAlreadyExists = errors.New("store: key already exists")

// ErrStorageUnavailable wraps backend errors (network, serialization) that
// the caller should surface as a 5xx "server_error" rather than a protocol
// failure.
var ErrStorageUnavailable = errors.New("store: storage unavailable")

// KV is the external collaborator: an opaque string->bytes map with
// per-key TTL. Implementations must support atomic read-and-delete via
// TakeOnce, since it is the only serialization point the protocol state
// machine relies on.
type KV interface {
	// Get returns the raw value for key, or ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key with the given TTL. ttl <= 0 means no
	// expiration.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// PutIfAbsent stores value under key only if key does not already hold
	// a live value, returning ErrAlreadyExists otherwise.
	PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. It does not error if the key is already absent.
	Delete(ctx context.Context, key string) error

	// TakeOnce atomically reads and deletes key in a single step. Concurrent
	// callers racing on the same key MUST see exactly one succeed with the
	// value and the rest receive ErrNotFound.
	TakeOnce(ctx context.Context, key string) ([]byte, error)

	// Close releases any resources held by the backend.
	Close() error
}
