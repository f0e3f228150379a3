package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"jewelry-backend/internal/apperror"
)

const (
	// DefaultLockAttempts bounds how many times a contended lock is retried
	// before the operation fails with a contention error.
	DefaultLockAttempts = 10
	// DefaultLockBackoff is the base delay between lock attempts; the delay
	// grows linearly with the attempt number.
	DefaultLockBackoff = 50 * time.Millisecond
)

// FileLocker implements Locker with advisory flock(2) locks. Each resource
// gets a sidecar "<resource>.lock" file in the lock directory, so the lock
// also coordinates with other processes sharing the same data directory on
// this host.
type FileLocker struct {
	dir      string
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

// NewFileLocker creates a FileLocker keeping its lock files in dir.
func NewFileLocker(dir string, logger *zap.Logger) *FileLocker {
	return &FileLocker{
		dir:      dir,
		attempts: DefaultLockAttempts,
		backoff:  DefaultLockBackoff,
		logger:   logger,
	}
}

// WithExclusive acquires the advisory lock for resource, retrying a bounded
// number of times with linear backoff, then runs fn. The lock is released on
// every exit path.
func (l *FileLocker) WithExclusive(ctx context.Context, resource string, fn func() error) error {
	lock := flock.New(filepath.Join(l.dir, resource+".lock"))

	locked := false
	for attempt := 1; attempt <= l.attempts; attempt++ {
		ok, err := lock.TryLock()
		if err != nil {
			return apperror.Wrap(apperror.KindContention,
				fmt.Sprintf("failed to acquire lock for %s", resource), err)
		}
		if ok {
			locked = true
			break
		}
		if attempt == l.attempts {
			// No point backing off when there is no attempt left.
			break
		}

		l.logger.Debug("Lock contended, backing off",
			zap.String("resource", resource),
			zap.Int("attempt", attempt),
		)

		select {
		case <-ctx.Done():
			return apperror.Wrap(apperror.KindContention,
				fmt.Sprintf("canceled while waiting for lock on %s", resource), ctx.Err())
		case <-time.After(time.Duration(attempt) * l.backoff):
		}
	}
	if !locked {
		return apperror.Newf(apperror.KindContention,
			"could not acquire lock for %s after %d attempts", resource, l.attempts)
	}

	defer func() {
		if err := lock.Unlock(); err != nil {
			l.logger.Error("Failed to release lock",
				zap.String("resource", resource),
				zap.Error(err),
			)
		}
	}()

	return fn()
}
