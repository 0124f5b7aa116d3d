package filelock_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/antopolskiy/chatmode-kit/internal/filelock"
)

func TestLockUnlock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), ".chatmode-kit.lock")

	unlock, err := filelock.Lock(context.Background(), lockPath)
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}
	if err := unlock(); err != nil {
		t.Fatalf("unlock() error: %v", err)
	}
}

func TestInstallsSerialize(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), ".chatmode-kit.lock")

	const installers = 10
	var inside, maxInside int64
	var wg sync.WaitGroup

	wg.Add(installers)
	for range installers {
		go func() {
			defer wg.Done()

			unlock, err := filelock.Lock(context.Background(), lockPath)
			if err != nil {
				t.Errorf("Lock() error: %v", err)
				return
			}

			cur := atomic.AddInt64(&inside, 1)
			for {
				old := atomic.LoadInt64(&maxInside)
				if cur <= old || atomic.CompareAndSwapInt64(&maxInside, old, cur) {
					break
				}
			}
			atomic.AddInt64(&inside, -1)

			if err := unlock(); err != nil {
				t.Errorf("unlock() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&maxInside); got != 1 {
		t.Errorf("max concurrent holders = %d, want 1", got)
	}
}

func TestTryLockWhileHeld(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), ".chatmode-kit.lock")

	unlock, err := filelock.Lock(context.Background(), lockPath)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := filelock.TryLock(lockPath); !errors.Is(err, filelock.ErrLocked) {
		t.Errorf("TryLock() error = %v, want ErrLocked", err)
	}
	held, err := filelock.Held(lockPath)
	if err != nil || !held {
		t.Errorf("Held() = %v, %v; want true, nil", held, err)
	}

	if err := unlock(); err != nil {
		t.Fatal(err)
	}

	held, err = filelock.Held(lockPath)
	if err != nil || held {
		t.Errorf("Held() after unlock = %v, %v; want false, nil", held, err)
	}
}

func TestHeldMissingFile(t *testing.T) {
	held, err := filelock.Held(filepath.Join(t.TempDir(), "absent.lock"))
	if err != nil || held {
		t.Errorf("Held() = %v, %v; want false, nil", held, err)
	}
}

func TestLockWaitsForRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), ".chatmode-kit.lock")

	unlock, err := filelock.TryLock(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	time.AfterFunc(100*time.Millisecond, func() { _ = unlock() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	second, err := filelock.Lock(ctx, lockPath)
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}
	if err := second(); err != nil {
		t.Fatal(err)
	}
}

func TestLockCanceledWhileHeld(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), ".chatmode-kit.lock")

	unlock, err := filelock.TryLock(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = unlock() }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = filelock.Lock(ctx, lockPath)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Lock() error = %v, want context.DeadlineExceeded", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("Lock() returned %v after the deadline", waited)
	}
}
