package testutil

import (
	"path/filepath"
	"testing"
)

// TestProfile is a profile source directory built up by a test
type TestProfile struct {
	Name string // Profile name
	Dir  string // Full path to the profile directory
}

// SetupTestProfile creates an empty profile directory under profilesDir
func SetupTestProfile(t *testing.T, profilesDir, name string) *TestProfile {
	t.Helper()
	return &TestProfile{
		Name: name,
		Dir:  CreateDir(t, profilesDir, name),
	}
}

// AddFile adds a file to the profile
func (tp *TestProfile) AddFile(t *testing.T, rel, content string) *TestProfile {
	t.Helper()
	CreateFile(t, tp.Dir, filepath.FromSlash(rel), content)
	return tp
}

// AddExecutable adds an executable file to the profile
func (tp *TestProfile) AddExecutable(t *testing.T, rel, content string) *TestProfile {
	t.Helper()
	CreateExecutable(t, tp.Dir, filepath.FromSlash(rel), content)
	return tp
}

// Path returns the absolute path of a profile file
func (tp *TestProfile) Path(rel string) string {
	return filepath.Join(tp.Dir, filepath.FromSlash(rel))
}
