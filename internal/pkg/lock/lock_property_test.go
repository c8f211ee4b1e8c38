package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestConcurrentCounterSafetyProperty: for any number of concurrent increments
// under the same key, every caller observes a distinct value and none is lost.
func TestConcurrentCounterSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(2, 50).Draw(t, "numOps")
		key := rapid.StringMatching(`2026-0[1-9]-[0-2][1-9]`).Draw(t, "date")

		kl := NewKeyLock()
		counter := 0
		seen := make([]int, numOps)

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func(i int) {
				defer wg.Done()
				kl.Lock(key)
				defer kl.Unlock(key)
				// read-modify-write
				next := counter + 1
				counter = next
				seen[i] = next
			}(i)
		}
		wg.Wait()

		if counter != numOps {
			t.Fatalf("counter=%d, want %d", counter, numOps)
		}
		unique := make(map[int]bool, numOps)
		for _, v := range seen {
			if unique[v] {
				t.Fatalf("value %d handed out twice", v)
			}
			unique[v] = true
		}
	})
}

// TestIndependentKeysProperty tests that different keys keep independent state.
func TestIndependentKeysProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numKeys := rapid.IntRange(2, 10).Draw(t, "numKeys")
		opsPerKey := rapid.IntRange(5, 20).Draw(t, "opsPerKey")

		kl := NewKeyLock()
		counters := make(map[string]*int, numKeys)
		for i := 0; i < numKeys; i++ {
			v := 0
			counters[fmt.Sprintf("key-%d", i)] = &v
		}

		var wg sync.WaitGroup
		wg.Add(numKeys * opsPerKey)
		for key := range counters {
			for j := 0; j < opsPerKey; j++ {
				go func(k string) {
					defer wg.Done()
					kl.Lock(k)
					defer kl.Unlock(k)
					*counters[k]++
				}(key)
			}
		}
		wg.Wait()

		for key, v := range counters {
			if *v != opsPerKey {
				t.Fatalf("%s: counter=%d, want %d", key, *v, opsPerKey)
			}
		}
	})
}

// TestLockUnlockReleasesKeysProperty: balanced lock/unlock cycles leave no live mutexes behind.
func TestLockUnlockReleasesKeysProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numCycles := rapid.IntRange(1, 50).Draw(t, "numCycles")
		withContext := rapid.Bool().Draw(t, "withContext")
		kl := NewKeyLock()

		for i := 0; i < numCycles; i++ {
			key := fmt.Sprintf("k%d", i%3)
			if withContext {
				if err := kl.LockContext(context.Background(), key); err != nil {
					t.Fatalf("LockContext: %v", err)
				}
			} else {
				kl.Lock(key)
			}
			kl.Unlock(key)
		}

		if n := liveKeys(kl); n != 0 {
			t.Fatalf("expected no live keys, got %d", n)
		}
	})
}

// TestLockContextSerializesProperty: concurrent LockContext holders on one key
// never overlap and none is lost.
func TestLockContextSerializesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(2, 40).Draw(t, "numOps")

		kl := NewKeyLock()
		var inside, overlaps atomic.Int32
		total := 0

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				if err := kl.LockContext(context.Background(), "2026-03-01"); err != nil {
					return
				}
				defer kl.Unlock("2026-03-01")
				if inside.Add(1) > 1 {
					overlaps.Add(1)
				}
				total++
				inside.Add(-1)
			}()
		}
		wg.Wait()

		if overlaps.Load() != 0 {
			t.Fatalf("%d overlapping holders", overlaps.Load())
		}
		if total != numOps {
			t.Fatalf("total=%d, want %d", total, numOps)
		}
	})
}

func TestLockContext_GivesUpWhenContextEnds(t *testing.T) {
	kl := NewKeyLock()

	kl.Lock("2026-03-01")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := kl.LockContext(ctx, "2026-03-01")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	assert.ErrorIs(t, kl.LockContext(cancelled, "2026-03-01"), context.Canceled)

	kl.Unlock("2026-03-01")

	// the abandoned waiter hands the mutex back, so the key is free again
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, kl.LockContext(ctx2, "2026-03-01"))
	kl.Unlock("2026-03-01")

	require.Eventually(t, func() bool { return liveKeys(kl) == 0 }, time.Second, 5*time.Millisecond)
}

func TestLockContext_WaitsForHolder(t *testing.T) {
	kl := NewKeyLock()
	kl.Lock("5512345678")

	acquired := make(chan error, 1)
	go func() {
		acquired <- kl.LockContext(context.Background(), "5512345678")
	}()

	select {
	case <-acquired:
		t.Fatal("LockContext returned while the key was held")
	case <-time.After(20 * time.Millisecond):
	}

	kl.Unlock("5512345678")
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("LockContext did not acquire the released key")
	}
	kl.Unlock("5512345678")
	assert.Zero(t, liveKeys(kl))
}

func TestUnlockUnknownKeyIsNoop(t *testing.T) {
	kl := NewKeyLock()
	assert.NotPanics(t, func() { kl.Unlock("missing") })
	assert.Zero(t, liveKeys(kl))
}

func liveKeys(kl *KeyLock) int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
