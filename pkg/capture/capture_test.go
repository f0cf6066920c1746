// TEST TYPE: Integration Tests
// DEPENDENCIES: Real filesystem (t.TempDir), afero OsFs
// PURPOSE: Test tree capture ordering, exclusion, modes and rejection of links

package capture

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ynishi/dot-agent/pkg/checksum"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/rules"
)

func writeFile(t *testing.T, root, rel, content string, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	require.NoError(t, os.Chmod(path, mode))
}

func TestCapture(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "CLAUDE.md", "# Memory", 0644)
	writeFile(t, root, "agents/reviewer.md", "review", 0644)
	writeFile(t, root, "hooks/pre.sh", "#!/bin/sh\n", 0755)
	writeFile(t, root, "empty.txt", "", 0644)
	writeFile(t, root, "rules/日本語.md", "ルール", 0644)

	tree, err := Capture(context.Background(), afero.NewOsFs(), root, Options{Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"CLAUDE.md", "agents/reviewer.md", "empty.txt", "hooks/pre.sh", "rules/日本語.md"}, tree.Paths())

	e, ok := tree.Lookup("hooks/pre.sh")
	require.True(t, ok)
	assert.True(t, e.Executable)
	assert.Equal(t, checksum.Sum([]byte("#!/bin/sh\n")), e.Hash)

	e, ok = tree.Lookup("empty.txt")
	require.True(t, ok)
	assert.Equal(t, int64(0), e.Size)
	assert.False(t, e.Executable)
}

func TestCapture_DotDotNames(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "..notes.md", "notes", 0644)
	writeFile(t, root, "..cache/a.md", "a", 0644)
	writeFile(t, root, "agents/..draft.md", "draft", 0644)

	tree, err := Capture(context.Background(), afero.NewOsFs(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"..cache/a.md", "..notes.md", "agents/..draft.md"}, tree.Paths())
}

func TestCapture_Deterministic(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"z.md", "a.md", "m/n.md", "m/a.md"} {
		writeFile(t, root, name, name, 0644)
	}

	first, err := Capture(context.Background(), afero.NewOsFs(), root, Options{})
	require.NoError(t, err)
	second, err := Capture(context.Background(), afero.NewOsFs(), root, Options{Concurrency: 1})
	require.NoError(t, err)
	assert.Equal(t, first.Hash(), second.Hash())
	assert.Equal(t, first.Entries(), second.Entries())
}

func TestCapture_Exclusions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "agents/a.md", "a", 0644)
	writeFile(t, root, ".git/HEAD", "ref", 0644)
	writeFile(t, root, "skills/x/node_modules/pkg.js", "js", 0644)
	writeFile(t, root, ".DS_Store", "junk", 0644)
	writeFile(t, root, "agents/.a.md.dot-agent-tmp-1", "partial", 0644)

	tree, err := Capture(context.Background(), afero.NewOsFs(), root, Options{
		Exclude: rules.New(".git/", "node_modules/", ".DS_Store"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"agents/a.md"}, tree.Paths())
}

func TestCapture_RejectsSymlink(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "real.md", "x", 0644)
	require.NoError(t, os.Symlink(filepath.Join(root, "real.md"), filepath.Join(root, "link.md")))

	_, err := Capture(context.Background(), afero.NewOsFs(), root, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSymlinkRejected))

	// excluded links are skipped before the check
	tree, err := Capture(context.Background(), afero.NewOsFs(), root, Options{Exclude: rules.New("link.md")})
	require.NoError(t, err)
	assert.Equal(t, []string{"real.md"}, tree.Paths())
}

func TestCapture_MissingRoot(t *testing.T) {
	tree, err := Capture(context.Background(), afero.NewOsFs(), filepath.Join(t.TempDir(), "absent"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
}

func TestCapture_Sink(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "alpha", 0644)
	writeFile(t, root, "b.md", "beta", 0644)

	var mu sync.Mutex
	got := map[string]string{}
	_, err := Capture(context.Background(), afero.NewOsFs(), root, Options{
		Sink: func(hash string, data []byte) error {
			mu.Lock()
			defer mu.Unlock()
			got[hash] = string(data)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		checksum.Sum([]byte("alpha")): "alpha",
		checksum.Sum([]byte("beta")):  "beta",
	}, got)
}

func TestCapture_SinkError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "alpha", 0644)

	_, err := Capture(context.Background(), afero.NewOsFs(), root, Options{
		Sink: func(string, []byte) error { return errors.New(errors.ErrFileWrite, "disk full") },
	})
	assert.True(t, errors.IsErrorCode(err, errors.ErrFileWrite))
}

func TestCapture_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "alpha", 0644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Capture(ctx, afero.NewOsFs(), root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "agents/a.md", "a", 0644)
	writeFile(t, root, "cache/c.md", "c", 0644)
	writeFile(t, root, "unrelated.md", "u", 0644)

	tree, err := Files(context.Background(), afero.NewOsFs(), root,
		[]string{"agents/a.md", "agents/missing.md", "cache/c.md"},
		Options{Exclude: rules.New("/cache/")})
	require.NoError(t, err)
	assert.Equal(t, []string{"agents/a.md"}, tree.Paths())
}

func TestFiles_MemFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/t/x.md", []byte("x"), 0644))

	tree, err := Files(context.Background(), fs, "/t", []string{"x.md"}, Options{})
	require.NoError(t, err)
	e, ok := tree.Lookup("x.md")
	require.True(t, ok)
	assert.Equal(t, checksum.Sum([]byte("x")), e.Hash)
}
