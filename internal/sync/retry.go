package sync

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/noterosync/notero/internal/zotero"
)

// linearBackOff waits interval × attempt between tries (1×, 2×, 3×, ...).
type linearBackOff struct {
	interval time.Duration
	attempt  int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.interval
}

func (l *linearBackOff) Reset() {
	l.attempt = 0
}

// retryConflicts runs op up to maxAttempts times, backing off linearly
// between attempts. Only Zotero version conflicts are retried; every other
// error aborts immediately. The last conflict error is returned when all
// attempts are exhausted.
func retryConflicts(ctx context.Context, maxAttempts int, interval time.Duration, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{interval: interval}, uint64(maxAttempts-1)),
		ctx,
	)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if _, ok := zotero.IsConflict(err); ok {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}
