// Package lock provides advisory, cross-process locks keyed by name. Each
// key maps to a file under the locks directory; lock files are never deleted
// so they survive renames of the state they guard.
package lock

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/logging"
)

// Well-known lock keys
const (
	// StoreKey guards garbage collection of the content store
	StoreKey = "store"
)

// DefaultTimeout bounds Acquire when the context carries no deadline
const DefaultTimeout = 30 * time.Second

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Locker hands out locks stored in a directory
type Locker struct {
	dir     string
	poll    time.Duration
	timeout time.Duration
	logger  zerolog.Logger
}

// New creates a Locker whose lock files live in dir
func New(dir string) *Locker {
	return &Locker{
		dir:     dir,
		poll:    50 * time.Millisecond,
		timeout: DefaultTimeout,
		logger:  logging.GetLogger("lock"),
	}
}

// WithTimeout returns a copy of the locker using timeout for contexts
// without a deadline. Zero waits until the context is cancelled.
func (l *Locker) WithTimeout(timeout time.Duration) *Locker {
	c := *l
	c.timeout = timeout
	return &c
}

// Lock is a held lock
type Lock struct {
	key    string
	handle lockHandle
}

// Key returns the lock key
func (l *Lock) Key() string { return l.key }

// Release gives the lock up. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.handle == nil {
		return nil
	}
	err := l.handle.release()
	l.handle = nil
	return err
}

// Acquire blocks until the lock for key is held, the context is done, or
// the locker's timeout passes. Failure to get the lock in time is
// LOCK_TIMEOUT.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lock, error) {
	if !validKey.MatchString(key) {
		return nil, errors.Newf(errors.ErrInvalidInput, "invalid lock key %q", key)
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "failed to create lock directory %s", l.dir)
	}

	if _, ok := ctx.Deadline(); !ok && l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	path := filepath.Join(l.dir, key+".lock")
	start := time.Now()
	logged := false
	for {
		h, err := tryLock(path)
		if err != nil {
			return nil, err
		}
		if h != nil {
			l.logger.Trace().Str("key", key).Dur("waited", time.Since(start)).Msg("Lock acquired")
			return &Lock{key: key, handle: h}, nil
		}
		if !logged {
			l.logger.Info().Str("key", key).Msg("Waiting for lock held by another process")
			logged = true
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), errors.ErrLockTimeout, "timed out waiting for lock %s", key).
				WithDetail("key", key)
		case <-time.After(l.poll):
		}
	}
}

// With runs fn while holding the lock for key
func (l *Locker) With(ctx context.Context, key string, fn func() error) error {
	lk, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lk.Release(); rerr != nil {
			l.logger.Warn().Err(rerr).Str("key", key).Msg("Failed to release lock")
		}
	}()
	return fn()
}

// lockHandle is the platform-specific part of a held lock
type lockHandle interface {
	release() error
}
