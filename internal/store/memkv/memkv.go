// Package memkv provides an in-memory implementation of store.KV, adapted
// from the teacher's mutex+map storage backend. It is meant for local
// development and tests, not for a multi-replica deployment: state does not
// survive a restart and is not shared across processes.
package memkv

import (
	"context"
	"sync"
	"time"

	"github.com/atrawog/mcp-oauth-gateway/internal/store"
)

type entry struct {
	value    []byte
	expireAt time.Time // zero means no expiration
}

func (e entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// KV is an in-memory, mutex-guarded implementation of store.KV.
type KV struct {
	mu   sync.Mutex
	data map[string]entry

	stop chan struct{}
	done chan struct{}
}

// New returns a ready KV backend and starts its background expiry sweep,
// mirroring the teacher's GarbageCollect loop. Call Close to stop the sweep.
func New() *KV {
	kv := &KV{
		data: make(map[string]entry),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go kv.sweepLoop()
	return kv
}

func (kv *KV) sweepLoop() {
	defer close(kv.done)
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-kv.stop:
			return
		case now := <-ticker.C:
			kv.sweep(now)
		}
	}
}

func (kv *KV) sweep(now time.Time) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for key, e := range kv.data {
		if e.expired(now) {
			delete(kv.data, key)
		}
	}
}

// Get implements store.KV.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	e, ok := kv.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Put implements store.KV.
func (kv *KV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = newEntry(value, ttl)
	return nil
}

// PutIfAbsent implements store.KV.
func (kv *KV) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if e, ok := kv.data[key]; ok && !e.expired(time.Now()) {
		return store.ErrAlreadyExists
	}
	kv.data[key] = newEntry(value, ttl)
	return nil
}

// Delete implements store.KV.
func (kv *KV) Delete(ctx context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
	return nil
}

// TakeOnce implements store.KV. The lock held across the read-and-delete is
// what makes this atomic: no other Get/Put/Delete/TakeOnce call can
// interleave.
func (kv *KV) TakeOnce(ctx context.Context, key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	e, ok := kv.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, store.ErrNotFound
	}
	delete(kv.data, key)
	return e.value, nil
}

// Close stops the background sweep. It does not error.
func (kv *KV) Close() error {
	close(kv.stop)
	<-kv.done
	return nil
}

func newEntry(value []byte, ttl time.Duration) entry {
	e := entry{value: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	}
	return e
}
