package filesystem

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/ynishi/dot-agent/pkg/errors"
)

// Markers embedded in the names of engine-owned scratch files. Captures skip
// them so a crashed operation never leaks them into a snapshot.
const (
	TempMarker   = ".dot-agent-tmp-"
	BackupMarker = ".dot-agent-bak-"
)

// New returns the OS filesystem
func New() afero.Fs {
	return afero.NewOsFs()
}

// IsScratch reports whether a file name belongs to a temp or backup file
// created by the engine.
func IsScratch(name string) bool {
	return strings.Contains(name, TempMarker) || strings.Contains(name, BackupMarker)
}

// TempFile creates a scratch file next to path so that a later rename stays
// on the same filesystem. The parent directory is created if needed.
func TempFile(fsys afero.Fs, path, marker string) (afero.File, error) {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "failed to create directory %s", dir)
	}
	f, err := afero.TempFile(fsys, dir, "."+filepath.Base(path)+marker+"*")
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileWrite, "failed to create temp file for %s", path)
	}
	return f, nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, so readers observe either the old or the new content.
func WriteFileAtomic(fsys afero.Fs, path string, data []byte, perm os.FileMode) error {
	tmpName, err := WriteTemp(fsys, path, data, perm)
	if err != nil {
		return err
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		_ = fsys.Remove(tmpName)
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to rename into %s", path)
	}
	return nil
}

// WriteTemp stages data in a temp file next to path and returns its name.
// The caller renames or removes it.
func WriteTemp(fsys afero.Fs, path string, data []byte, perm os.FileMode) (string, error) {
	f, err := TempFile(fsys, path, TempMarker)
	if err != nil {
		return "", err
	}
	name := f.Name()

	fail := func(err error, msg string) (string, error) {
		_ = f.Close()
		_ = fsys.Remove(name)
		return "", errors.Wrapf(err, errors.ErrFileWrite, "%s %s", msg, path)
	}

	if _, err := f.Write(data); err != nil {
		return fail(err, "failed to write")
	}
	if err := f.Sync(); err != nil {
		return fail(err, "failed to sync")
	}
	if err := f.Close(); err != nil {
		_ = fsys.Remove(name)
		return "", errors.Wrapf(err, errors.ErrFileWrite, "failed to close temp file for %s", path)
	}
	if err := fsys.Chmod(name, perm); err != nil {
		_ = fsys.Remove(name)
		return "", errors.Wrapf(err, errors.ErrFileWrite, "failed to set mode on %s", path)
	}
	return name, nil
}

// Exists reports whether path exists. Errors other than not-exist are
// returned.
func Exists(fsys afero.Fs, path string) (bool, error) {
	_, err := Lstat(fsys, path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", path)
}

// Lstat stats path without following a final symlink when the filesystem
// supports it.
func Lstat(fsys afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fsys.Stat(path)
}

// RemoveEmptyParents removes the now-empty directories between path's parent
// and stop (exclusive). It stops at the first non-empty directory.
func RemoveEmptyParents(fsys afero.Fs, path, stop string) {
	stop = filepath.Clean(stop)
	for dir := filepath.Dir(path); dir != stop && strings.HasPrefix(dir, stop+string(filepath.Separator)); dir = filepath.Dir(dir) {
		empty, err := afero.IsEmpty(fsys, dir)
		if err != nil || !empty {
			return
		}
		if err := fsys.Remove(dir); err != nil {
			return
		}
	}
}

// Copy duplicates src into dst byte for byte, preserving the mode.
func Copy(fsys afero.Fs, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to stat %s", src)
	}
	data, err := afero.ReadFile(fsys, src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", src)
	}
	return WriteFileAtomic(fsys, dst, data, info.Mode().Perm())
}
