//go:build unix

package lock

import (
	"os"

	"github.com/ynishi/dot-agent/pkg/errors"
	"golang.org/x/sys/unix"
)

type flockHandle struct {
	f *os.File
}

func (h *flockHandle) release() error {
	defer h.f.Close()
	return unix.Flock(int(h.f.Fd()), unix.LOCK_UN)
}

// tryLock takes a non-blocking exclusive flock. It returns a nil handle when
// another holder has the lock.
func tryLock(path string) (lockHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to open lock file %s", path)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to lock %s", path)
	}
	return &flockHandle{f: f}, nil
}
