package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateFile writes content to dir/name with mode 0644, creating parent
// directories. It fails the test on error.
func CreateFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	return WriteFile(t, filepath.Join(dir, name), content, 0644)
}

// CreateExecutable is CreateFile with mode 0755
func CreateExecutable(t *testing.T, dir, name, content string) string {
	t.Helper()
	return WriteFile(t, filepath.Join(dir, name), content, 0755)
}

// WriteFile writes content to path with exactly mode, regardless of umask
func WriteFile(t *testing.T, path, content string, mode os.FileMode) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	require.NoError(t, os.Chmod(path, mode))
	return path
}

// CreateDir creates parent/name and returns its path
func CreateDir(t *testing.T, parent, name string) string {
	t.Helper()
	path := filepath.Join(parent, name)
	require.NoError(t, os.MkdirAll(path, 0755))
	return path
}

// ReadFile returns the content of path as a string
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

// IsExecutable reports whether any execute bit is set on path
func IsExecutable(t *testing.T, path string) bool {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Mode().Perm()&0111 != 0
}
