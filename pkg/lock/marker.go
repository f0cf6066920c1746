package lock

import (
	"fmt"
	"os"
	"time"

	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/logging"
)

// markerStaleAfter is how old a marker may get before it is taken to belong
// to a holder that crashed
const markerStaleAfter = 10 * time.Minute

// markerHandle is a lock held by the existence of a marker file, for
// platforms without an OS file lock
type markerHandle struct {
	path string
}

func (h *markerHandle) release() error {
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// tryMarker creates path exclusively and writes "<pid> <unix start>" into
// it. A marker older than staleAfter is removed and creation retried once.
// Two processes breaking the same stale marker at the same instant can both
// succeed.
func tryMarker(path string, staleAfter time.Duration, now time.Time) (lockHandle, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d %d\n", os.Getpid(), now.Unix())
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				_ = os.Remove(path)
				return nil, errors.Wrapf(werr, errors.ErrFileWrite, "failed to write lock file %s", path)
			}
			return &markerHandle{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to create lock file %s", path)
		}
		if attempt > 0 || !markerStale(path, staleAfter, now) {
			return nil, nil
		}
		logger := logging.GetLogger("lock")
		logger.Warn().Str("path", path).Msg("Breaking stale lock")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.ErrFileWrite, "failed to remove stale lock file %s", path)
		}
	}
	return nil, nil
}

// markerStale reads the start time a holder wrote. A marker that cannot be
// parsed, e.g. one still being written, is judged by its modification time.
func markerStale(path string, staleAfter time.Duration, now time.Time) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var pid int
	var started int64
	if _, err := fmt.Sscanf(string(data), "%d %d", &pid, &started); err == nil {
		return now.Sub(time.Unix(started, 0)) > staleAfter
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) > staleAfter
}
