// Package store is the content-addressed blob store. Blobs are keyed by
// their sha256 digest and laid out as objects/ab/cdef… under the store
// root. A blob is immutable once written; Get re-hashes on every read.
package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/ynishi/dot-agent/pkg/checksum"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/filesystem"
	"github.com/ynishi/dot-agent/pkg/logging"
)

// blobMode is applied to every stored object
const blobMode os.FileMode = 0444

// staleScratch is how old an abandoned temp file must be before GC removes it
const staleScratch = time.Hour

// Store is a content-addressed blob store rooted at a directory
type Store struct {
	fs     afero.Fs
	root   string
	logger zerolog.Logger
}

// New creates a store whose objects live under root
func New(fs afero.Fs, root string) *Store {
	return &Store{
		fs:     fs,
		root:   root,
		logger: logging.GetLogger("store"),
	}
}

// Root returns the objects directory
func (s *Store) Root() string {
	return s.root
}

func (s *Store) objectPath(hash string) (string, error) {
	if !checksum.Valid(hash) {
		return "", errors.Newf(errors.ErrInvalidInput, "invalid content hash %q", hash)
	}
	hex := checksum.Hex(hash)
	return filepath.Join(s.root, hex[:2], hex[2:]), nil
}

// Put stores data and returns its digest. Storing the same bytes twice is a
// no-op.
func (s *Store) Put(data []byte) (string, error) {
	hash := checksum.Sum(data)
	if err := s.write(hash, data); err != nil {
		return "", err
	}
	return hash, nil
}

// Sink stores data already hashed by the caller. The hash is checked before
// anything is written. It matches the capture sink signature.
func (s *Store) Sink(hash string, data []byte) error {
	if got := checksum.Sum(data); got != hash {
		return errors.Newf(errors.ErrHashMismatch, "content does not match %s", hash).
			WithDetail("expected", hash).
			WithDetail("actual", got)
	}
	return s.write(hash, data)
}

func (s *Store) write(hash string, data []byte) error {
	path, err := s.objectPath(hash)
	if err != nil {
		return err
	}
	exists, err := filesystem.Exists(s.fs, path)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := filesystem.WriteFileAtomic(s.fs, path, data, blobMode); err != nil {
		return err
	}
	s.logger.Trace().Str("hash", hash).Int("size", len(data)).Msg("Stored blob")
	return nil
}

// Get returns the bytes for hash, verifying them against the digest
func (s *Store) Get(hash string) ([]byte, error) {
	path, err := s.objectPath(hash)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrBlobNotFound, "blob %s not found", hash).
				WithDetail("hash", hash)
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read blob %s", hash)
	}
	if got := checksum.Sum(data); got != hash {
		return nil, errors.Newf(errors.ErrHashMismatch, "blob %s is corrupt", hash).
			WithDetail("expected", hash).
			WithDetail("actual", got)
	}
	return data, nil
}

// Contains reports whether a blob for hash is present
func (s *Store) Contains(hash string) bool {
	path, err := s.objectPath(hash)
	if err != nil {
		return false
	}
	ok, err := filesystem.Exists(s.fs, path)
	return err == nil && ok
}

// List returns the digests of every stored blob in sorted order
func (s *Store) List(ctx context.Context) ([]string, error) {
	var hashes []string
	err := s.walk(ctx, func(hash, path string, info os.FileInfo) error {
		if hash != "" {
			hashes = append(hashes, hash)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(hashes)
	return hashes, nil
}

// walk visits every file below the objects root. hash is empty for files
// that are not well-formed blobs.
func (s *Store) walk(ctx context.Context, fn func(hash, path string, info os.FileInfo) error) error {
	exists, err := filesystem.Exists(s.fs, s.root)
	if err != nil || !exists {
		return err
	}
	return afero.Walk(s.fs, s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to walk %s", path)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(s.root, path)
		parts := strings.Split(filepath.ToSlash(rel), "/")
		hash := ""
		if len(parts) == 2 && len(parts[0]) == 2 {
			if h := checksum.Prefix + parts[0] + parts[1]; checksum.Valid(h) {
				hash = h
			}
		}
		return fn(hash, path, info)
	})
}

// GCResult reports what a collection removed
type GCResult struct {
	Scanned    int   `json:"scanned" yaml:"scanned"`
	Removed    int   `json:"removed" yaml:"removed"`
	FreedBytes int64 `json:"freedBytes" yaml:"freedBytes"`
}

// GC removes every blob whose digest is not in live, plus stale scratch
// files. The caller must hold the store lock and must have computed live
// from every referrer.
func (s *Store) GC(ctx context.Context, live map[string]struct{}) (GCResult, error) {
	var res GCResult
	now := time.Now()

	var doomed []string
	err := s.walk(ctx, func(hash, path string, info os.FileInfo) error {
		if hash == "" {
			if filesystem.IsScratch(info.Name()) && now.Sub(info.ModTime()) > staleScratch {
				doomed = append(doomed, path)
			}
			return nil
		}
		res.Scanned++
		if _, ok := live[hash]; ok {
			return nil
		}
		doomed = append(doomed, path)
		res.FreedBytes += info.Size()
		return nil
	})
	if err != nil {
		return res, err
	}

	for _, path := range doomed {
		if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return res, errors.Wrapf(err, errors.ErrFileWrite, "failed to remove %s", path)
		}
		if !filesystem.IsScratch(filepath.Base(path)) {
			res.Removed++
		}
		filesystem.RemoveEmptyParents(s.fs, path, s.root)
	}

	s.logger.Info().
		Int("scanned", res.Scanned).
		Int("removed", res.Removed).
		Int64("freedBytes", res.FreedBytes).
		Msg("Content store collected")
	return res, nil
}
