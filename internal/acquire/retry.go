package acquire

import (
	"context"
	"time"

	"github.com/antopolskiy/chatmode-kit/internal/fetch"
)

// Policy bounds the attempts made for a single file.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Delay is the pause between consecutive attempts.
	Delay time.Duration
}

// Do calls fn until it succeeds, the attempts are exhausted, the error is
// permanent (see fetch.IsPermanent) or ctx is done. It returns the number of
// attempts made and the last error.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) (int, error) {
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return attempt, nil
		}
		if fetch.IsPermanent(err) || ctx.Err() != nil || attempt == attempts {
			return attempt, err
		}
		if waitErr := sleep(ctx, p.Delay); waitErr != nil {
			return attempt, err
		}
	}
	return attempts, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
