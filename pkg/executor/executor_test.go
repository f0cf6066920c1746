// TEST TYPE: Integration Tests
// DEPENDENCIES: Real filesystem (t.TempDir), afero OsFs
// PURPOSE: Test staged transactions: commit, rollback, finish and failure paths

package executor

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ynishi/dot-agent/pkg/errors"
)

func setup(t *testing.T) (string, *Executor) {
	t.Helper()
	root := t.TempDir()
	write(t, root, "keep.md", "keep")
	write(t, root, "update.md", "old")
	write(t, root, "sub/delete.md", "bye")
	return root, New(Options{FS: afero.NewOsFs()})
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func read(t *testing.T, root, rel string) (string, bool) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	if os.IsNotExist(err) {
		return "", false
	}
	require.NoError(t, err)
	return string(data), true
}

// listing returns every file under root, relative and sorted
func listing(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	require.NoError(t, filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		if !info.IsDir() {
			rel, _ := filepath.Rel(root, p)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	}))
	sort.Strings(out)
	return out
}

func ops() []Operation {
	return []Operation{
		Write("new/dir/create.sh", []byte("#!/bin/sh"), 0755),
		Write("update.md", []byte("new"), 0644),
		Delete("sub/delete.md"),
	}
}

func TestApply_Commit(t *testing.T) {
	root, e := setup(t)

	committed := false
	require.NoError(t, e.Apply(root, ops(), func() error {
		committed = true
		// mid-transaction state is already visible
		got, _ := read(t, root, "update.md")
		assert.Equal(t, "new", got)
		return nil
	}))
	assert.True(t, committed)

	got, ok := read(t, root, "new/dir/create.sh")
	require.True(t, ok)
	assert.Equal(t, "#!/bin/sh", got)
	info, err := os.Stat(filepath.Join(root, "new/dir/create.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	got, _ = read(t, root, "update.md")
	assert.Equal(t, "new", got)

	_, ok = read(t, root, "sub/delete.md")
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(root, "sub"))
	assert.True(t, os.IsNotExist(err), "emptied directory is pruned")

	assert.Equal(t, []string{"keep.md", "new/dir/create.sh", "update.md"}, listing(t, root), "no scratch files remain")
}

func TestApply_CommitHookFailureRollsBack(t *testing.T) {
	root, e := setup(t)
	before := listing(t, root)

	err := e.Apply(root, ops(), func() error {
		return errors.New(errors.ErrFileWrite, "manifest write failed")
	})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFileWrite))

	assert.Equal(t, before, listing(t, root))
	got, _ := read(t, root, "update.md")
	assert.Equal(t, "old", got)
	got, _ = read(t, root, "sub/delete.md")
	assert.Equal(t, "bye", got)
	_, err = os.Stat(filepath.Join(root, "new"))
	assert.True(t, os.IsNotExist(err), "created directories are pruned on rollback")
}

func TestApply_MidCommitFailureRollsBack(t *testing.T) {
	root, e := setup(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "blocker"), 0755))
	before := listing(t, root)

	err := e.Apply(root, []Operation{
		Write("update.md", []byte("new"), 0644),
		Delete("sub/delete.md"),
		Write("blocker", []byte("cannot replace a directory"), 0644),
	}, nil)
	require.Error(t, err)

	assert.Equal(t, before, listing(t, root))
	got, _ := read(t, root, "update.md")
	assert.Equal(t, "old", got)
}

func TestStage_RejectsEscapingPaths(t *testing.T) {
	root, e := setup(t)
	for _, bad := range []string{"../outside.md", "/abs.md", ""} {
		err := e.Apply(root, []Operation{Write(bad, []byte("x"), 0644)}, nil)
		require.Error(t, err, bad)
		assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput), bad)
	}
	_, err := os.Stat(filepath.Join(filepath.Dir(root), "outside.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteMissingIsNoop(t *testing.T) {
	root, e := setup(t)
	before := listing(t, root)
	require.NoError(t, e.Apply(root, []Operation{Delete("not/there.md")}, nil))
	assert.Equal(t, before, listing(t, root))
	_, err := os.Stat(filepath.Join(root, "not"))
	assert.True(t, os.IsNotExist(err))
}

func TestDryRun(t *testing.T) {
	root, _ := setup(t)
	e := New(Options{FS: afero.NewOsFs(), DryRun: true})
	before := listing(t, root)
	require.NoError(t, e.Apply(root, ops(), nil))
	assert.Equal(t, before, listing(t, root))
}

func TestTxn_ManualRollback(t *testing.T) {
	root, e := setup(t)
	tx := e.Begin(root)
	require.NoError(t, tx.Stage(Write("update.md", []byte("staged"), 0644)))

	got, _ := read(t, root, "update.md")
	assert.Equal(t, "old", got, "staging changes nothing visible")

	require.NoError(t, tx.Commit())
	assert.Equal(t, 1, tx.Changes())
	require.NoError(t, tx.Rollback())

	got, _ = read(t, root, "update.md")
	assert.Equal(t, "old", got)
	assert.Equal(t, []string{"keep.md", "sub/delete.md", "update.md"}, listing(t, root))
}

func TestApply_MemFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/t/a.md", []byte("a"), 0644))
	e := New(Options{FS: fs})

	require.NoError(t, e.Apply("/t", []Operation{Write("a.md", []byte("b"), 0644), Write("c/d.md", []byte("d"), 0644)}, nil))
	data, err := afero.ReadFile(fs, "/t/a.md")
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
	data, err = afero.ReadFile(fs, "/t/c/d.md")
	require.NoError(t, err)
	assert.Equal(t, "d", string(data))
}
