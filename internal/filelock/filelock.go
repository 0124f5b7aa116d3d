// Package filelock serializes installer runs against one install directory
// with an advisory lock on a file inside it.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrLocked is returned by TryLock when another process holds the lock.
var ErrLocked = errors.New("lock is held by another process")

const lockFileMode = 0o600

// pollInterval is how often Lock retries a held lock while ctx can still be
// canceled.
const pollInterval = 50 * time.Millisecond

// Unlock releases a held lock.
type Unlock func() error

// Lock waits until it holds an exclusive lock on path, creating the file
// if needed. When ctx can be canceled the wait polls, and Lock returns
// ctx.Err() once ctx is done.
func Lock(ctx context.Context, path string) (Unlock, error) {
	if ctx.Done() == nil {
		return acquire(path, true)
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unlock, err := acquire(path, false)
		if !errors.Is(err, ErrLocked) {
			return unlock, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// TryLock takes the lock without waiting. It returns ErrLocked when the
// lock is held elsewhere.
func TryLock(path string) (Unlock, error) {
	return acquire(path, false)
}

// Held reports whether another process currently holds the lock on path.
// A missing lock file means nobody holds it.
func Held(path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	unlock, err := TryLock(path)
	if errors.Is(err, ErrLocked) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, unlock()
}

func acquire(path string, wait bool) (Unlock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFileMode) //nolint:gosec // lock path built by caller
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := lockFile(f, wait); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, err
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return func() error {
		if err := unlockFile(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("unlocking %s: %w", path, err)
		}
		return f.Close()
	}, nil
}
