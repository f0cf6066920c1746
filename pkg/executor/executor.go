package executor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/filesystem"
	"github.com/ynishi/dot-agent/pkg/logging"
)

// OpType is the kind of a file operation
type OpType string

const (
	OpWrite  OpType = "write"
	OpDelete OpType = "delete"
)

// Operation is one planned change under the transaction root
type Operation struct {
	Type OpType
	// Path is relative to the root, '/'-separated
	Path string
	Data []byte
	Mode os.FileMode
}

// Write returns an operation that creates or replaces path
func Write(path string, data []byte, mode os.FileMode) Operation {
	return Operation{Type: OpWrite, Path: path, Data: data, Mode: mode}
}

// Delete returns an operation that removes path
func Delete(path string) Operation {
	return Operation{Type: OpDelete, Path: path}
}

// Options contains configuration for the executor
type Options struct {
	FS     afero.Fs
	DryRun bool
	Logger *zerolog.Logger
}

// Executor creates transactions over a filesystem
type Executor struct {
	fs     afero.Fs
	dryRun bool
	logger zerolog.Logger
}

// New creates a new executor instance
func New(opts Options) *Executor {
	logger := logging.GetLogger("executor")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	fs := opts.FS
	if fs == nil {
		fs = filesystem.New()
	}

	return &Executor{
		fs:     fs,
		dryRun: opts.DryRun,
		logger: logger,
	}
}

// Apply stages ops under root, commits them, then runs commit. When commit
// fails every file change is rolled back and commit's error returned. A nil
// commit is allowed.
func (e *Executor) Apply(root string, ops []Operation, commit func() error) error {
	tx := e.Begin(root)
	if err := tx.Stage(ops...); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if commit != nil {
		if err := commit(); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				e.logger.Error().Err(rbErr).Str("root", root).Msg("Rollback incomplete")
			}
			return err
		}
	}
	tx.Finish()
	return nil
}

// Begin starts a transaction rooted at root
func (e *Executor) Begin(root string) *Txn {
	return &Txn{
		fs:     e.fs,
		root:   filepath.Clean(root),
		dryRun: e.dryRun,
		logger: e.logger.With().Str("root", root).Logger(),
	}
}

type stepKind int

const (
	stepCreate stepKind = iota
	stepReplace
	stepDelete
)

// staged is an operation with its scratch file
type staged struct {
	op   Operation
	dest string
	temp string
}

// step is an applied change that can be undone
type step struct {
	kind   stepKind
	dest   string
	backup string
}

// Txn is a single staged transaction. It is not safe for concurrent use.
type Txn struct {
	fs     afero.Fs
	root   string
	dryRun bool
	logger zerolog.Logger

	staged  []staged
	applied []step
}

func (t *Txn) dest(rel string) (string, error) {
	if rel == "" || strings.HasPrefix(rel, "/") {
		return "", errors.Newf(errors.ErrInvalidInput, "invalid path %q", rel)
	}
	dest := filepath.Join(t.root, filepath.FromSlash(rel))
	r, err := filepath.Rel(t.root, dest)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrInvalidInput, "path %q escapes %s", rel, t.root)
	}
	return dest, nil
}

// Stage writes the content of every write operation to a temp file beside
// its destination. Nothing visible changes yet.
func (t *Txn) Stage(ops ...Operation) error {
	for _, op := range ops {
		dest, err := t.dest(op.Path)
		if err != nil {
			return err
		}
		s := staged{op: op, dest: dest}
		if op.Type == OpWrite && !t.dryRun {
			mode := op.Mode
			if mode == 0 {
				mode = 0644
			}
			s.temp, err = filesystem.WriteTemp(t.fs, dest, op.Data, mode)
			if err != nil {
				return err
			}
		}
		t.staged = append(t.staged, s)
	}
	return nil
}

// Commit moves every staged operation into place in order. On failure the
// steps already taken are undone before the error is returned.
func (t *Txn) Commit() error {
	for i, s := range t.staged {
		if t.dryRun {
			t.logger.Info().Str("op", string(s.op.Type)).Str("path", s.op.Path).Msg("Dry run: would apply")
			continue
		}
		var err error
		switch s.op.Type {
		case OpWrite:
			err = t.commitWrite(s)
		case OpDelete:
			err = t.commitDelete(s)
		default:
			err = errors.Newf(errors.ErrInternal, "unknown operation %q", s.op.Type)
		}
		if err != nil {
			t.logger.Error().Err(err).Str("path", s.op.Path).Msg("Commit failed, rolling back")
			// temp files of operations not yet reached
			for _, rest := range t.staged[i:] {
				t.removeScratch(rest.temp)
			}
			t.staged = nil
			if rbErr := t.Rollback(); rbErr != nil {
				t.logger.Error().Err(rbErr).Msg("Rollback incomplete")
			}
			return err
		}
		t.logger.Debug().Str("op", string(s.op.Type)).Str("path", s.op.Path).Msg("Applied")
	}
	t.staged = nil
	return nil
}

func (t *Txn) commitWrite(s staged) error {
	info, err := filesystem.Lstat(t.fs, s.dest)
	switch {
	case err == nil && info.IsDir():
		return errors.Newf(errors.ErrFileWrite, "cannot replace directory %s with a file", s.dest)
	case err == nil:
		backup, berr := t.backup(s.dest, info.Mode().Perm())
		if berr != nil {
			return berr
		}
		if err := t.fs.Rename(s.temp, s.dest); err != nil {
			t.removeScratch(backup)
			t.removeScratch(s.temp)
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to replace %s", s.dest)
		}
		t.applied = append(t.applied, step{kind: stepReplace, dest: s.dest, backup: backup})
	case os.IsNotExist(err):
		if err := t.fs.Rename(s.temp, s.dest); err != nil {
			t.removeScratch(s.temp)
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to create %s", s.dest)
		}
		t.applied = append(t.applied, step{kind: stepCreate, dest: s.dest})
	default:
		t.removeScratch(s.temp)
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", s.dest)
	}
	return nil
}

func (t *Txn) commitDelete(s staged) error {
	info, err := filesystem.Lstat(t.fs, s.dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", s.dest)
	}
	if info.IsDir() {
		return errors.Newf(errors.ErrFileWrite, "refusing to delete directory %s", s.dest)
	}

	f, err := filesystem.TempFile(t.fs, s.dest, filesystem.BackupMarker)
	if err != nil {
		return err
	}
	backup := f.Name()
	_ = f.Close()

	if err := t.fs.Rename(s.dest, backup); err != nil {
		t.removeScratch(backup)
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to remove %s", s.dest)
	}
	t.applied = append(t.applied, step{kind: stepDelete, dest: s.dest, backup: backup})
	return nil
}

// backup copies dest aside so the rename over it can be undone while dest
// stays in place the whole time.
func (t *Txn) backup(dest string, mode os.FileMode) (string, error) {
	data, err := afero.ReadFile(t.fs, dest)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", dest)
	}
	f, err := filesystem.TempFile(t.fs, dest, filesystem.BackupMarker)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		t.removeScratch(name)
		return "", errors.Wrapf(err, errors.ErrFileWrite, "failed to back up %s", dest)
	}
	if err := f.Close(); err != nil {
		t.removeScratch(name)
		return "", errors.Wrapf(err, errors.ErrFileWrite, "failed to back up %s", dest)
	}
	if err := t.fs.Chmod(name, mode); err != nil {
		t.removeScratch(name)
		return "", errors.Wrapf(err, errors.ErrFileWrite, "failed to back up %s", dest)
	}
	return name, nil
}

// Rollback undoes every committed step in reverse order and discards any
// staged temp files. It keeps going past individual failures and returns the
// first one.
func (t *Txn) Rollback() error {
	t.Discard()

	var first error
	for i := len(t.applied) - 1; i >= 0; i-- {
		s := t.applied[i]
		var err error
		switch s.kind {
		case stepCreate:
			err = t.fs.Remove(s.dest)
			if err == nil || os.IsNotExist(err) {
				err = nil
				filesystem.RemoveEmptyParents(t.fs, s.dest, t.root)
			}
		case stepReplace, stepDelete:
			err = t.fs.Rename(s.backup, s.dest)
		}
		if err != nil && first == nil {
			first = errors.Wrapf(err, errors.ErrFileWrite, "failed to roll back %s", s.dest)
		}
	}
	t.applied = nil
	if first == nil {
		t.logger.Info().Msg("Rolled back")
	}
	return first
}

// Discard removes staged temp files that were never committed
func (t *Txn) Discard() {
	for _, s := range t.staged {
		t.removeScratch(s.temp)
		if s.temp != "" {
			filesystem.RemoveEmptyParents(t.fs, s.temp, t.root)
		}
	}
	t.staged = nil
}

// Finish makes the transaction permanent: backups are removed and
// directories emptied by deletions are pruned up to the root.
func (t *Txn) Finish() {
	for _, s := range t.applied {
		if s.backup != "" {
			t.removeScratch(s.backup)
		}
		if s.kind == stepDelete {
			filesystem.RemoveEmptyParents(t.fs, s.dest, t.root)
		}
	}
	t.logger.Debug().Int("changes", len(t.applied)).Msg("Transaction finished")
	t.applied = nil
}

// Changes returns how many steps have been applied and not yet finished
func (t *Txn) Changes() int {
	return len(t.applied)
}

func (t *Txn) removeScratch(name string) {
	if name == "" {
		return
	}
	if err := t.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		t.logger.Warn().Err(err).Str("path", name).Msg("Failed to remove scratch file")
	}
}
