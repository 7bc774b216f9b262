package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, AccountKey(1))
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxInside)
	}
	if n := l.size(); n != 0 {
		t.Fatalf("lock table size = %d, want 0", n)
	}
}

func TestLocalDifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	unlockA, _ := l.Lock(ctx, AccountKey(1))
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, AccountKey(2))
	if err != nil {
		t.Fatalf("Lock other key: %v", err)
	}
	unlockB()
}

func TestLocalRespectsContext(t *testing.T) {
	l := NewLocal()
	unlock, _ := l.Lock(context.Background(), "k")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	l := NewLocal()
	unlock, _ := l.Lock(context.Background(), "k")
	unlock()
	unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	again, err := l.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

func TestLockAccountsDedupesAndReleases(t *testing.T) {
	l := NewLocal()
	release, err := LockAccounts(context.Background(), l, 5, 2, 5)
	if err != nil {
		t.Fatalf("LockAccounts: %v", err)
	}
	if n := l.size(); n != 2 {
		t.Fatalf("held keys = %d, want 2", n)
	}
	release()
	if n := l.size(); n != 0 {
		t.Fatalf("held keys after release = %d, want 0", n)
	}
}
