// TEST TYPE: Integration Tests
// DEPENDENCIES: real filesystem (t.TempDir), SQLite index, flock
// PURPOSE: Test snapshot save, restore round trips, pruning and garbage collection

package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ynishi/dot-agent/pkg/capture"
	"github.com/ynishi/dot-agent/pkg/checksum"
	"github.com/ynishi/dot-agent/pkg/config"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/index"
	"github.com/ynishi/dot-agent/pkg/lock"
	"github.com/ynishi/dot-agent/pkg/manifest"
	"github.com/ynishi/dot-agent/pkg/rules"
	"github.com/ynishi/dot-agent/pkg/store"
	"github.com/ynishi/dot-agent/pkg/testutil"
	"github.com/ynishi/dot-agent/pkg/types"
)

type fixture struct {
	mgr   *Manager
	store *store.Store
	index *index.Index
	base  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	fs := afero.NewOsFs()

	x, err := index.Open(filepath.Join(base, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.Close() })

	st := store.New(fs, filepath.Join(base, "store", "objects"))
	cfg := config.Default()
	mgr := New(Config{
		FS:             fs,
		Store:          st,
		Index:          x,
		Locker:         lock.New(filepath.Join(base, "locks")),
		ProfileExclude: rules.ForProfile(cfg.Profile),
		TargetExclude:  rules.ForTarget(cfg.Snapshot, manifest.FileName),
	})
	return &fixture{mgr: mgr, store: st, index: x, base: base}
}

func liveTree(t *testing.T, f *fixture, subject types.Subject) *types.Tree {
	t.Helper()
	tree, err := capture.Capture(context.Background(), afero.NewOsFs(), subject.Root, capture.Options{Exclude: f.mgr.excluder(subject)})
	require.NoError(t, err)
	return tree
}

func TestSaveRestore_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "work")
	subject := types.ProfileSubject(types.Profile{Name: "work", Path: root})

	testutil.WriteFile(t, filepath.Join(root, "CLAUDE.md"), "# Work\n", 0644)
	testutil.WriteFile(t, filepath.Join(root, "empty.md"), "", 0644)
	testutil.WriteFile(t, filepath.Join(root, "rules", "日本語.md"), "コードは簡潔に ✓\n", 0644)
	testutil.WriteFile(t, filepath.Join(root, "hooks", "check.sh"), "#!/bin/sh\nexit 0\n", 0755)

	snap, err := f.mgr.Save(ctx, subject, "baseline", types.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.FileCount)
	assert.NotEmpty(t, snap.ID)
	assert.Empty(t, snap.ManifestHash)
	want := liveTree(t, f, subject)
	assert.Equal(t, want.Hash(), snap.TreeHash)

	// edit, delete, add, chmod
	testutil.WriteFile(t, filepath.Join(root, "CLAUDE.md"), "# Changed\n", 0644)
	require.NoError(t, os.Remove(filepath.Join(root, "empty.md")))
	require.NoError(t, os.RemoveAll(filepath.Join(root, "rules")))
	testutil.WriteFile(t, filepath.Join(root, "agents", "new.md"), "new\n", 0644)
	require.NoError(t, os.Chmod(filepath.Join(root, "hooks", "check.sh"), 0644))

	d, err := f.mgr.Diff(ctx, subject, snap.ID)
	require.NoError(t, err)
	s := d.Summary()
	assert.Equal(t, 1, s.Added)
	assert.Equal(t, 2, s.Removed)
	assert.Equal(t, 2, s.Modified)

	res, err := f.mgr.Restore(ctx, subject, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, res.Snapshot.ID)

	got := liveTree(t, f, subject)
	assert.Equal(t, want.Hash(), got.Hash())
	assert.Equal(t, want.Entries(), got.Entries())

	_, err = os.Stat(filepath.Join(root, "agents"))
	assert.True(t, os.IsNotExist(err), "directories emptied by restore are pruned")

	d, err = f.mgr.Diff(ctx, subject, snap.ID)
	require.NoError(t, err)
	assert.True(t, d.Empty())
}

func TestRestore_TargetManifest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), ".claude")
	subject := types.TargetSubject(root)

	testutil.WriteFile(t, filepath.Join(root, "agents", "web-a.md"), "a\n", 0644)
	m := manifest.New(root)
	m.SetProfile(manifest.ProfileRecord{Name: "web"})
	m.Record(manifest.Record{Path: "agents/web-a.md", Profile: "web", Source: "agents/a.md", Hash: checksum.Sum([]byte("a\n"))})
	require.NoError(t, m.Save(afero.NewOsFs(), root))
	testutil.WriteFile(t, filepath.Join(root, "projects", "history.md"), "user data\n", 0644)
	original, err := os.ReadFile(manifest.PathFor(root))
	require.NoError(t, err)

	with, err := f.mgr.Save(ctx, subject, "", types.TriggerManual)
	require.NoError(t, err)
	assert.NotEmpty(t, with.ManifestHash)
	assert.Equal(t, 1, with.FileCount, "manifest and excluded directories are not captured")

	require.NoError(t, os.Remove(manifest.PathFor(root)))
	require.NoError(t, os.Remove(filepath.Join(root, "agents", "web-a.md")))
	without, err := f.mgr.Save(ctx, subject, "", types.TriggerManual)
	require.NoError(t, err)
	assert.Empty(t, without.ManifestHash)

	_, err = f.mgr.Restore(ctx, subject, with.ID)
	require.NoError(t, err)
	restored, err := os.ReadFile(manifest.PathFor(root))
	require.NoError(t, err)
	assert.Equal(t, original, restored)
	targets, err := f.index.Targets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{root}, targets)

	_, err = f.mgr.Restore(ctx, subject, without.ID)
	require.NoError(t, err)
	_, err = os.Stat(manifest.PathFor(root))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "projects", "history.md"))
	assert.NoError(t, err, "excluded paths are left alone")
}

func TestGetListLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := t.TempDir()
	subject := types.ProfileSubject(types.Profile{Name: "a", Path: root})
	other := types.ProfileSubject(types.Profile{Name: "b", Path: root})

	_, err := f.mgr.Latest(ctx, subject)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSnapshotNotFound))

	first, err := f.mgr.Save(ctx, subject, "one", types.TriggerManual)
	require.NoError(t, err)
	second, err := f.mgr.Save(ctx, subject, "two", types.TriggerPreUpgrade)
	require.NoError(t, err)

	list, err := f.mgr.List(ctx, subject)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	latest, err := f.mgr.Latest(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, types.TriggerPreUpgrade, latest.Trigger)

	_, err = f.mgr.Get(ctx, other, first.ID)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSnapshotNotFound))
	_, err = f.mgr.Restore(ctx, subject, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.True(t, errors.IsErrorCode(err, errors.ErrSnapshotNotFound))

	_, err = f.mgr.Save(ctx, subject, "", types.Trigger("bogus"))
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestPrune_RemovesUnreachableBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := t.TempDir()
	subject := types.ProfileSubject(types.Profile{Name: "p", Path: root})

	var ids []string
	for _, content := range []string{"v1\n", "v2\n", "v3\n"} {
		testutil.WriteFile(t, filepath.Join(root, "rules", "r.md"), content, 0644)
		snap, err := f.mgr.Save(ctx, subject, "", types.TriggerManual)
		require.NoError(t, err)
		ids = append(ids, snap.ID)
	}
	for _, content := range []string{"v1\n", "v2\n", "v3\n"} {
		assert.True(t, f.store.Contains(checksum.Sum([]byte(content))))
	}

	res, err := f.mgr.Prune(ctx, subject, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids[:2], res.Deleted)
	assert.Equal(t, 2, res.GC.Removed)

	assert.False(t, f.store.Contains(checksum.Sum([]byte("v1\n"))))
	assert.False(t, f.store.Contains(checksum.Sum([]byte("v2\n"))))
	assert.True(t, f.store.Contains(checksum.Sum([]byte("v3\n"))))

	list, err := f.mgr.List(ctx, subject)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ids[2], list[0].ID)

	_, err = f.mgr.Restore(ctx, subject, ids[2])
	require.NoError(t, err)

	_, err = f.mgr.Prune(ctx, subject, -1)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := t.TempDir()
	subject := types.ProfileSubject(types.Profile{Name: "p", Path: root})
	testutil.WriteFile(t, filepath.Join(root, "only.md"), "only\n", 0644)

	snap, err := f.mgr.Save(ctx, subject, "", types.TriggerManual)
	require.NoError(t, err)

	res, err := f.mgr.Delete(ctx, subject, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{snap.ID}, res.Deleted)
	assert.False(t, f.store.Contains(checksum.Sum([]byte("only\n"))))

	_, err = f.mgr.Delete(ctx, subject, snap.ID)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSnapshotNotFound))
}

func TestGC_RegisteredTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	kept, err := f.store.Put([]byte("installed\n"))
	require.NoError(t, err)
	orphan, err := f.store.Put([]byte("orphan\n"))
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), ".claude")
	m := manifest.New(target)
	m.SetProfile(manifest.ProfileRecord{Name: "web"})
	m.Record(manifest.Record{Path: "CLAUDE.md", Profile: "web", Hash: kept})
	require.NoError(t, m.Save(afero.NewOsFs(), target))
	require.NoError(t, f.index.RegisterTarget(ctx, target))

	gone := filepath.Join(t.TempDir(), "gone")
	require.NoError(t, f.index.RegisterTarget(ctx, gone))

	res, err := f.mgr.GC(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.True(t, f.store.Contains(kept))
	assert.False(t, f.store.Contains(orphan))

	targets, err := f.index.Targets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{target}, targets, "targets without a manifest are forgotten")

	require.NoError(t, os.WriteFile(manifest.PathFor(target), []byte("not = [valid"), 0644))
	_, err = f.mgr.GC(ctx)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCorruptManifest))
	assert.True(t, f.store.Contains(kept), "nothing is collected when a manifest is unreadable")
}
