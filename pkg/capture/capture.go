// Package capture records a directory as a types.Tree: every regular file
// with its relative path, content digest, size and executable bit.
// Symbolic links and special files are refused rather than followed.
package capture

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
	"github.com/ynishi/dot-agent/pkg/checksum"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/filesystem"
	"github.com/ynishi/dot-agent/pkg/logging"
	"github.com/ynishi/dot-agent/pkg/rules"
	"github.com/ynishi/dot-agent/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Sink receives the bytes of each captured file. The content store's Sink
// method fits here.
type Sink func(hash string, data []byte) error

// Options tune a capture
type Options struct {
	// Exclude decides which paths are skipped; nil skips only scratch files
	Exclude rules.Excluder

	// Sink, when set, is handed every file's content
	Sink Sink

	// Concurrency bounds parallel hashing; zero uses GOMAXPROCS
	Concurrency int
}

func (o Options) excluder() rules.Excluder {
	if o.Exclude == nil {
		return &rules.Set{}
	}
	return o.Exclude
}

func (o Options) limit() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

type job struct {
	rel  string
	abs  string
	exec bool
}

// Capture walks root and returns its tree. A missing root is an empty tree.
// Any unreadable file, symlink or special file aborts the capture.
func Capture(ctx context.Context, fsys afero.Fs, root string, opts Options) (*types.Tree, error) {
	logger := logging.GetLogger("capture")
	exclude := opts.excluder()

	exists, err := filesystem.Exists(fsys, root)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.Debug().Str("root", root).Msg("Capture root does not exist")
		return types.EmptyTree(), nil
	}

	var jobs []job
	err = afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", path)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == root {
			if !info.IsDir() {
				return errors.Newf(errors.ErrInvalidInput, "capture root is not a directory: %s", root)
			}
			return nil
		}

		rel, err := relPath(root, path)
		if err != nil {
			return err
		}
		if exclude.Excluded(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if err := checkRegular(rel, info); err != nil {
			return err
		}
		jobs = append(jobs, job{rel: rel, abs: path, exec: info.Mode().Perm()&0111 != 0})
		return nil
	})
	if err != nil {
		return nil, err
	}

	tree, err := hashAll(ctx, fsys, jobs, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("root", root).Int("files", tree.Len()).Msg("Captured tree")
	return tree, nil
}

// Files captures only the given root-relative paths. Paths that are missing
// or excluded are left out of the result. It lets callers check tracked files
// without walking a whole directory.
func Files(ctx context.Context, fsys afero.Fs, root string, paths []string, opts Options) (*types.Tree, error) {
	exclude := opts.excluder()

	var jobs []job
	for _, rel := range paths {
		if rules.ExcludedPath(exclude, rel) {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		info, err := filesystem.Lstat(fsys, abs)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", abs)
		}
		if info.IsDir() {
			return nil, errors.Newf(errors.ErrFileAccess, "expected a file but found a directory: %s", rel).
				WithDetail("path", rel)
		}
		if err := checkRegular(rel, info); err != nil {
			return nil, err
		}
		jobs = append(jobs, job{rel: rel, abs: abs, exec: info.Mode().Perm()&0111 != 0})
	}
	return hashAll(ctx, fsys, jobs, opts)
}

// hashAll reads and digests every job on a bounded errgroup
func hashAll(ctx context.Context, fsys afero.Fs, jobs []job, opts Options) (*types.Tree, error) {
	entries := make([]types.Entry, len(jobs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.limit())
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			data, err := afero.ReadFile(fsys, j.abs)
			if err != nil {
				return errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", j.abs).
					WithDetail("path", j.rel)
			}
			hash := checksum.Sum(data)
			if opts.Sink != nil {
				if err := opts.Sink(hash, data); err != nil {
					return err
				}
			}
			entries[i] = types.Entry{Path: j.rel, Hash: hash, Executable: j.exec, Size: int64(len(data))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return types.NewTree(entries), nil
}

func checkRegular(rel string, info os.FileInfo) error {
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.Newf(errors.ErrSymlinkRejected, "symbolic links are not supported: %s", rel).
			WithDetail("path", rel)
	}
	if !info.Mode().IsRegular() {
		return errors.Newf(errors.ErrSymlinkRejected, "not a regular file: %s", rel).
			WithDetail("path", rel)
	}
	return nil
}

func relPath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrInternal, "path %s escapes capture root %s", path, root)
	}
	return filepath.ToSlash(rel), nil
}
