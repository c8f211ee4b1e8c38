// Package lock provides per-key locking. The lottery uses it to serialize
// plays on the same date and repeated submissions from the same identity.
package lock

import (
	"context"
	"sync"
)

// keyMutex wraps a mutex with reference counting for cleanup.
type keyMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyLock provides one mutex per key. Mutexes are created on demand and
// dropped once no goroutine holds or waits for them.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
	pool  sync.Pool
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{
		locks: make(map[string]*keyMutex),
		pool: sync.Pool{
			New: func() any {
				return &keyMutex{}
			},
		},
	}
}

// acquire returns the mutex for key and registers the caller as a user of it.
func (kl *KeyLock) acquire(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m, ok := kl.locks[key]
	if !ok {
		m = kl.pool.Get().(*keyMutex)
		m.refs = 0
		kl.locks[key] = m
	}
	m.refs++
	return m
}

// release drops the caller's reference and forgets the mutex when unused.
func (kl *KeyLock) release(key string, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(kl.locks, key)
		kl.pool.Put(m)
	}
}

// Lock acquires the lock for key.
func (kl *KeyLock) Lock(key string) {
	m := kl.acquire(key)
	m.mu.Lock()
}

// Unlock releases the lock for key. Unlocking a key that is not held is a no-op.
func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}

	m.mu.Unlock()
	kl.release(key, m)
}

// LockContext acquires the lock for key, giving up with ctx.Err() once ctx is done.
func (kl *KeyLock) LockContext(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := kl.acquire(key)
	if m.mu.TryLock() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The waiting goroutine still gets the mutex eventually; hand it back.
		go func() {
			<-done
			m.mu.Unlock()
			kl.release(key, m)
		}()
		return ctx.Err()
	}
}
