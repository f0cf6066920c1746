//go:build windows

package lock

import (
	"os"

	"github.com/ynishi/dot-agent/pkg/errors"
	"golang.org/x/sys/windows"
)

// fileLockHandle holds a LockFileEx range lock. Windows drops it when the
// process exits, so a crashed holder never blocks later runs.
type fileLockHandle struct {
	f *os.File
}

func (h *fileLockHandle) release() error {
	defer h.f.Close()
	return windows.UnlockFileEx(windows.Handle(h.f.Fd()), 0, 1, 0, new(windows.Overlapped))
}

func tryLock(path string) (lockHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to open lock file %s", path)
	}
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	if err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, new(windows.Overlapped)); err != nil {
		_ = f.Close()
		if err == windows.ERROR_LOCK_VIOLATION {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to lock %s", path)
	}
	return &fileLockHandle{f: f}, nil
}
