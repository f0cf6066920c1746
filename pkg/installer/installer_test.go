// TEST TYPE: Integration Tests
// DEPENDENCIES: real filesystem (t.TempDir), SQLite index, flock
// PURPOSE: Test install, upgrade, remove, switch, diff and status against real targets

package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ynishi/dot-agent/pkg/checksum"
	"github.com/ynishi/dot-agent/pkg/config"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/index"
	"github.com/ynishi/dot-agent/pkg/lock"
	"github.com/ynishi/dot-agent/pkg/manifest"
	"github.com/ynishi/dot-agent/pkg/profiles"
	"github.com/ynishi/dot-agent/pkg/rules"
	"github.com/ynishi/dot-agent/pkg/snapshot"
	"github.com/ynishi/dot-agent/pkg/store"
	"github.com/ynishi/dot-agent/pkg/testutil"
	"github.com/ynishi/dot-agent/pkg/types"
)

type fixture struct {
	in        *Installer
	profiles  string
	target    string
	store     *store.Store
	index     *index.Index
	snapshots *snapshot.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	fs := afero.NewOsFs()
	cfg := config.Default()

	x, err := index.Open(filepath.Join(base, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.Close() })

	st := store.New(fs, filepath.Join(base, "store", "objects"))
	locker := lock.New(filepath.Join(base, "locks"))
	profileRules := rules.ForProfile(cfg.Profile)
	snaps := snapshot.New(snapshot.Config{
		FS:             fs,
		Store:          st,
		Index:          x,
		Locker:         locker,
		ProfileExclude: profileRules,
		TargetExclude:  rules.ForTarget(cfg.Snapshot, manifest.FileName),
	})
	mgr := profiles.NewManager(fs, filepath.Join(base, "profiles"), profileRules)

	in := New(Config{
		FS:        fs,
		Profiles:  mgr,
		Store:     st,
		Locker:    locker,
		Registry:  x,
		Snapshots: snaps,
		Protected: cfg.Install.Protected,
	})
	return &fixture{
		in:        in,
		profiles:  filepath.Join(base, "profiles"),
		target:    filepath.Join(t.TempDir(), ".claude"),
		store:     st,
		index:     x,
		snapshots: snaps,
	}
}

// profile writes a profile source; a nil value deletes the file
func (f *fixture) profile(t *testing.T, name string, files map[string]*string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(f.profiles, name, filepath.FromSlash(rel))
		if content == nil {
			require.NoError(t, os.Remove(p))
			continue
		}
		testutil.WriteFile(t, p, *content, 0644)
	}
}

func (f *fixture) path(rel string) string {
	return filepath.Join(f.target, filepath.FromSlash(rel))
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(f.path(rel))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) manifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Load(afero.NewOsFs(), f.target)
	require.NoError(t, err)
	return m
}

func (f *fixture) assertMissing(t *testing.T, rel string) {
	t.Helper()
	_, err := os.Stat(f.path(rel))
	assert.True(t, os.IsNotExist(err), "%s should not exist", rel)
}

func s(v string) *string { return &v }

func actions(res *Result) map[string]Action {
	out := make(map[string]Action, len(res.Changes))
	for _, c := range res.Changes {
		out[c.Path] = c.Action
	}
	return out
}

func webProfile(t *testing.T, f *fixture) {
	f.profile(t, "web", map[string]*string{
		"CLAUDE.md":            s("# Web\n"),
		"agents/reviewer.md":   s("review v1\n"),
		"commands/deploy.md":   s("deploy v1\n"),
		"skills/lint/SKILL.md": s("lint v1\n"),
	})
	testutil.WriteFile(t, filepath.Join(f.profiles, "web", "hooks", "pre.sh"), "#!/bin/sh\n", 0755)
}

func TestInstall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)

	res, err := f.in.Install(ctx, "web", f.target, Options{Snapshot: true})
	require.NoError(t, err)
	assert.Equal(t, OpInstall, res.Operation)
	assert.Equal(t, 5, res.Count(ActionCreate))
	assert.NotEmpty(t, res.SnapshotID)

	assert.Equal(t, "review v1\n", f.read(t, "agents/web-reviewer.md"))
	assert.Equal(t, "deploy v1\n", f.read(t, "commands/web-deploy.md"))
	assert.Equal(t, "lint v1\n", f.read(t, "skills/web-lint/SKILL.md"))
	assert.Equal(t, "# Web\n", f.read(t, "CLAUDE.md"))
	info, err := os.Stat(f.path("hooks/pre.sh"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100, "executable bit carried over")

	m := f.manifest(t)
	assert.Equal(t, []string{"web"}, m.ProfileNames())
	rec, ok := m.Lookup("agents/web-reviewer.md")
	require.True(t, ok)
	assert.Equal(t, "agents/reviewer.md", rec.Source)
	assert.Equal(t, checksum.Sum([]byte("review v1\n")), rec.Hash)
	assert.True(t, f.store.Contains(rec.Hash), "installed content is kept in the store")

	targets, err := f.index.Targets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{f.target}, targets)

	// the pre-install snapshot restores the empty target
	_, err = f.snapshots.Restore(ctx, types.TargetSubject(f.target), res.SnapshotID)
	require.NoError(t, err)
	f.assertMissing(t, "agents/web-reviewer.md")
	f.assertMissing(t, manifest.FileName)
}

func TestInstall_Idempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)

	_, err := f.in.Install(ctx, "web", f.target, Options{})
	require.NoError(t, err)
	before, err := os.ReadFile(manifest.PathFor(f.target))
	require.NoError(t, err)

	_, err = f.in.Install(ctx, "web", f.target, Options{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrAlreadyInstalled))

	after, err := os.ReadFile(manifest.PathFor(f.target))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestInstall_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)
	testutil.WriteFile(t, f.path("agents/web-reviewer.md"), "my own reviewer\n", 0644)

	res, err := f.in.Install(ctx, "web", f.target, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConflict))
	assert.Equal(t, []string{"agents/web-reviewer.md"}, errors.GetErrorDetails(err)["paths"])
	require.NotNil(t, res)
	assert.Len(t, res.Conflicts(), 1)

	assert.Equal(t, "my own reviewer\n", f.read(t, "agents/web-reviewer.md"))
	f.assertMissing(t, "commands/web-deploy.md")
	f.assertMissing(t, manifest.FileName)

	res, err = f.in.Install(ctx, "web", f.target, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, actions(res)["agents/web-reviewer.md"])
	assert.Equal(t, "review v1\n", f.read(t, "agents/web-reviewer.md"))
	assert.Equal(t, "web", f.manifest(t).Owner("agents/web-reviewer.md"))
}

func TestInstall_SkipConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)
	testutil.WriteFile(t, f.path("agents/web-reviewer.md"), "my own reviewer\n", 0644)

	res, err := f.in.Install(ctx, "web", f.target, Options{SkipConflicts: true})
	require.NoError(t, err)
	assert.Equal(t, ActionConflict, actions(res)["agents/web-reviewer.md"])
	assert.Equal(t, "my own reviewer\n", f.read(t, "agents/web-reviewer.md"))
	assert.Equal(t, "deploy v1\n", f.read(t, "commands/web-deploy.md"))

	m := f.manifest(t)
	_, tracked := m.Lookup("agents/web-reviewer.md")
	assert.False(t, tracked)
}

func TestInstall_AdoptsIdenticalFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)

	// a crashed install left files behind but no manifest
	testutil.WriteFile(t, f.path("agents/web-reviewer.md"), "review v1\n", 0644)
	testutil.WriteFile(t, f.path("commands/web-deploy.md"), "deploy v1\n", 0644)

	res, err := f.in.Install(ctx, "web", f.target, Options{})
	require.NoError(t, err)
	got := actions(res)
	assert.Equal(t, ActionAdopt, got["agents/web-reviewer.md"])
	assert.Equal(t, ActionAdopt, got["commands/web-deploy.md"])
	assert.Equal(t, ActionCreate, got["skills/web-lint/SKILL.md"])

	_, tracked := f.manifest(t).Lookup("agents/web-reviewer.md")
	assert.True(t, tracked)
}

func TestInstall_ProtectedAndOwnedPaths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)
	f.profile(t, "ops", map[string]*string{
		"CLAUDE.md":    s("# Ops\n"),
		"hooks/pre.sh": s("#!/bin/sh\necho ops\n"),
	})

	_, err := f.in.Install(ctx, "web", f.target, Options{})
	require.NoError(t, err)

	// hooks are not prefixed, so ops collides with web's hook
	res, err := f.in.Install(ctx, "ops", f.target, Options{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrConflict))
	got := actions(res)
	assert.Equal(t, ActionProtected, got["CLAUDE.md"])
	assert.Equal(t, ActionConflict, got["hooks/pre.sh"])

	res, err = f.in.Install(ctx, "ops", f.target, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, ActionProtected, actions(res)["CLAUDE.md"])
	assert.Equal(t, "# Web\n", f.read(t, "CLAUDE.md"), "protected paths are never overwritten")

	m := f.manifest(t)
	assert.Equal(t, "ops", m.Owner("hooks/pre.sh"), "forced install takes ownership")
	assert.Equal(t, "web", m.Owner("CLAUDE.md"))
}

func TestInstall_DryRunWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)

	res, err := f.in.Install(ctx, "web", f.target, Options{DryRun: true, Snapshot: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 5, res.Count(ActionCreate))
	assert.Empty(t, res.SnapshotID)

	_, err = os.Stat(f.target)
	assert.True(t, os.IsNotExist(err))
	blobs, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestInstall_NoPrefix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)

	_, err := f.in.Install(ctx, "web", f.target, Options{NoPrefix: true})
	require.NoError(t, err)
	assert.Equal(t, "review v1\n", f.read(t, "agents/reviewer.md"))

	rec, ok := f.manifest(t).Profile("web")
	require.True(t, ok)
	assert.True(t, rec.NoPrefix)

	f.profile(t, "web", map[string]*string{"agents/reviewer.md": s("review v2\n")})
	_, err = f.in.Upgrade(ctx, "web", f.target, Options{})
	require.NoError(t, err)
	assert.Equal(t, "review v2\n", f.read(t, "agents/reviewer.md"), "upgrade keeps the recorded naming")
	f.assertMissing(t, "agents/web-reviewer.md")
}

func TestUpgrade_DivergenceAware(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)
	f.profile(t, "web", map[string]*string{
		"rules/style.md": s("style v1\n"),
		"rules/old.md":   s("old v1\n"),
	})

	_, err := f.in.Upgrade(ctx, "web", f.target, Options{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotInstalled))

	_, err = f.in.Install(ctx, "web", f.target, Options{})
	require.NoError(t, err)

	// local edits: one to a file the profile changes, one to a file it
	// keeps, one to a file it drops
	testutil.WriteFile(t, f.path("agents/web-reviewer.md"), "my review\n", 0644)
	testutil.WriteFile(t, f.path("rules/web-style.md"), "my style\n", 0644)
	testutil.WriteFile(t, f.path("rules/web-old.md"), "my old\n", 0644)

	f.profile(t, "web", map[string]*string{
		"agents/reviewer.md": s("review v2\n"),
		"commands/deploy.md": s("deploy v2\n"),
		"rules/new.md":       s("new v1\n"),
		"rules/old.md":       nil,
		"hooks/pre.sh":       nil,
	})

	res, err := f.in.Upgrade(ctx, "web", f.target, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConflict))
	assert.Equal(t, []string{"agents/web-reviewer.md"}, errors.GetErrorDetails(err)["paths"])
	assert.Equal(t, "deploy v1\n", f.read(t, "commands/web-deploy.md"), "nothing applied on conflict")
	f.assertMissing(t, "rules/web-new.md")

	res, err = f.in.Upgrade(ctx, "web", f.target, Options{SkipConflicts: true})
	require.NoError(t, err)
	got := actions(res)
	assert.Equal(t, ActionConflict, got["agents/web-reviewer.md"])
	assert.Equal(t, ActionUpdate, got["commands/web-deploy.md"])
	assert.Equal(t, ActionCreate, got["rules/web-new.md"])
	assert.Equal(t, ActionUnchanged, got["rules/web-style.md"])
	assert.Equal(t, ActionRetain, got["rules/web-old.md"])
	assert.Equal(t, ActionDelete, got["hooks/pre.sh"])
	assert.Equal(t, ActionProtected, got["CLAUDE.md"])

	assert.Equal(t, "my review\n", f.read(t, "agents/web-reviewer.md"))
	assert.Equal(t, "deploy v2\n", f.read(t, "commands/web-deploy.md"))
	assert.Equal(t, "new v1\n", f.read(t, "rules/web-new.md"))
	assert.Equal(t, "my style\n", f.read(t, "rules/web-style.md"))
	assert.Equal(t, "my old\n", f.read(t, "rules/web-old.md"))
	f.assertMissing(t, "hooks/pre.sh")
	f.assertMissing(t, "hooks")

	m := f.manifest(t)
	style, ok := m.Lookup("rules/web-style.md")
	require.True(t, ok)
	assert.True(t, style.Diverged, "divergence flag is kept")
	assert.Equal(t, checksum.Sum([]byte("style v1\n")), style.Hash)
	old, ok := m.Lookup("rules/web-old.md")
	require.True(t, ok)
	assert.True(t, old.Diverged)
	prof, ok := m.Profile("web")
	require.True(t, ok)
	assert.False(t, prof.UpgradedAt.IsZero())

	res, err = f.in.Upgrade(ctx, "web", f.target, Options{Force: true})
	require.NoError(t, err)
	got = actions(res)
	assert.Equal(t, ActionUpdate, got["agents/web-reviewer.md"])
	assert.Equal(t, ActionDelete, got["rules/web-old.md"])
	assert.Equal(t, "review v2\n", f.read(t, "agents/web-reviewer.md"))
	assert.Equal(t, "my style\n", f.read(t, "rules/web-style.md"), "unchanged divergent files survive force")
	f.assertMissing(t, "rules/web-old.md")
}

func TestUpgrade_LocalEditRevertedIsClean(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)

	_, err := f.in.Install(ctx, "web", f.target, Options{})
	require.NoError(t, err)

	testutil.WriteFile(t, f.path("agents/web-reviewer.md"), "temporary edit\n", 0644)
	_, err = f.in.Upgrade(ctx, "web", f.target, Options{})
	require.NoError(t, err)
	rec, _ := f.manifest(t).Lookup("agents/web-reviewer.md")
	assert.True(t, rec.Diverged)

	testutil.WriteFile(t, f.path("agents/web-reviewer.md"), "review v1\n", 0644)
	f.profile(t, "web", map[string]*string{"agents/reviewer.md": s("review v2\n")})
	res, err := f.in.Upgrade(ctx, "web", f.target, Options{})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, actions(res)["agents/web-reviewer.md"])
	assert.Equal(t, "review v2\n", f.read(t, "agents/web-reviewer.md"))
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)

	_, err := f.in.Remove(ctx, "web", f.target, Options{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotInstalled))

	_, err = f.in.Install(ctx, "web", f.target, Options{})
	require.NoError(t, err)
	testutil.WriteFile(t, f.path("commands/web-deploy.md"), "edited\n", 0644)

	res, err := f.in.Remove(ctx, "web", f.target, Options{})
	require.NoError(t, err)
	got := actions(res)
	assert.Equal(t, ActionRetain, got["commands/web-deploy.md"])
	assert.Equal(t, ActionDelete, got["agents/web-reviewer.md"])
	assert.Equal(t, ActionProtected, got["CLAUDE.md"])

	f.assertMissing(t, "agents")
	assert.Equal(t, "edited\n", f.read(t, "commands/web-deploy.md"))
	assert.Equal(t, "# Web\n", f.read(t, "CLAUDE.md"), "protected files are left to the user")

	m := f.manifest(t)
	assert.Equal(t, []string{"web"}, m.ProfileNames(), "profile stays while files are tracked")
	assert.Equal(t, []string{"commands/web-deploy.md"}, m.Paths())

	_, err = f.in.Remove(ctx, "web", f.target, Options{Force: true})
	require.NoError(t, err)
	f.assertMissing(t, "commands")
	f.assertMissing(t, manifest.FileName)
}

func TestSwitch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)
	f.profile(t, "ops", map[string]*string{
		"CLAUDE.md":        s("# Ops\n"),
		"agents/oncall.md": s("page me\n"),
		"hooks/pre.sh":     s("#!/bin/sh\necho ops\n"),
	})

	_, err := f.in.Install(ctx, "web", f.target, Options{})
	require.NoError(t, err)

	res, err := f.in.Switch(ctx, "web", "ops", f.target, Options{Snapshot: true})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SnapshotID)

	snap, err := f.snapshots.Get(ctx, types.TargetSubject(f.target), res.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, "pre-switch", snap.Label)
	assert.Equal(t, types.TriggerPreSwitch, snap.Trigger)

	f.assertMissing(t, "agents/web-reviewer.md")
	f.assertMissing(t, "skills")
	assert.Equal(t, "page me\n", f.read(t, "agents/ops-oncall.md"))
	assert.Equal(t, "#!/bin/sh\necho ops\n", f.read(t, "hooks/pre.sh"))
	assert.Equal(t, "# Web\n", f.read(t, "CLAUDE.md"))

	m := f.manifest(t)
	assert.Equal(t, []string{"ops"}, m.ProfileNames())
	assert.Equal(t, "ops", m.Owner("hooks/pre.sh"))
	for _, r := range m.Files {
		assert.Equal(t, "ops", r.Profile, r.Path)
	}
}

func TestSwitch_AtomicOnConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)
	f.profile(t, "ops", map[string]*string{"agents/oncall.md": s("page me\n")})

	_, err := f.in.Install(ctx, "web", f.target, Options{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func(t *testing.T)
		path  string
	}{
		{
			name:  "divergent file of the old profile",
			setup: func(t *testing.T) { testutil.WriteFile(t, f.path("commands/web-deploy.md"), "edited\n", 0644) },
			path:  "commands/web-deploy.md",
		},
		{
			name:  "untracked file in the way of the new profile",
			setup: func(t *testing.T) { testutil.WriteFile(t, f.path("agents/ops-oncall.md"), "mine\n", 0644) },
			path:  "agents/ops-oncall.md",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)
			before, err := os.ReadFile(manifest.PathFor(f.target))
			require.NoError(t, err)

			_, err = f.in.Switch(ctx, "web", "ops", f.target, Options{SkipConflicts: true})
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrConflict))
			assert.Contains(t, errors.GetErrorDetails(err)["paths"], tt.path)

			after, err := os.ReadFile(manifest.PathFor(f.target))
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Equal(t, "review v1\n", f.read(t, "agents/web-reviewer.md"), "old profile untouched")
		})
	}

	_, err = f.in.Switch(ctx, "web", "web", f.target, Options{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	_, err = f.in.Switch(ctx, "nope", "ops", f.target, Options{})
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotInstalled))
}

func TestDiff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)

	res, err := f.in.Diff(ctx, "web", f.target, Options{})
	require.NoError(t, err)
	assert.Equal(t, OpDiff, res.Operation)
	assert.Equal(t, 5, res.Count(ActionCreate))
	blobs, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, blobs, "diff never writes blobs")

	_, err = f.in.Install(ctx, "web", f.target, Options{})
	require.NoError(t, err)
	testutil.WriteFile(t, f.path("agents/web-reviewer.md"), "edited\n", 0644)
	f.profile(t, "web", map[string]*string{
		"agents/reviewer.md": s("review v2\n"),
		"commands/deploy.md": s("deploy v2\n"),
	})
	before, err := os.ReadFile(manifest.PathFor(f.target))
	require.NoError(t, err)

	res, err = f.in.Diff(ctx, "web", f.target, Options{})
	require.NoError(t, err, "conflicts are reported, not raised")
	got := actions(res)
	assert.Equal(t, ActionConflict, got["agents/web-reviewer.md"])
	assert.Equal(t, ActionUpdate, got["commands/web-deploy.md"])

	after, err := os.ReadFile(manifest.PathFor(f.target))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, "deploy v1\n", f.read(t, "commands/web-deploy.md"))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	webProfile(t, f)

	_, err := f.in.Install(ctx, "web", f.target, Options{})
	require.NoError(t, err)

	st, err := f.in.Status(ctx, f.target)
	require.NoError(t, err)
	require.Len(t, st.Profiles, 1)
	assert.False(t, st.Profiles[0].Outdated)
	assert.Equal(t, 5, st.Profiles[0].Files)
	assert.Empty(t, st.Divergences)

	testutil.WriteFile(t, f.path("agents/web-reviewer.md"), "edited\n", 0644)
	require.NoError(t, os.Remove(f.path("commands/web-deploy.md")))
	require.NoError(t, os.Chmod(f.path("hooks/pre.sh"), 0644))
	f.profile(t, "web", map[string]*string{"rules/new.md": s("new\n")})

	st, err = f.in.Status(ctx, f.target)
	require.NoError(t, err)
	assert.True(t, st.Profiles[0].Outdated)
	kinds := map[string]manifest.DivergenceKind{}
	for _, d := range st.Divergences {
		kinds[d.Path] = d.Kind
	}
	assert.Equal(t, map[string]manifest.DivergenceKind{
		"agents/web-reviewer.md": manifest.DivergedContent,
		"commands/web-deploy.md": manifest.DivergedMissing,
		"hooks/pre.sh":           manifest.DivergedMode,
	}, kinds)

	require.NoError(t, os.RemoveAll(filepath.Join(f.profiles, "web")))
	st, err = f.in.Status(ctx, f.target)
	require.NoError(t, err)
	assert.True(t, st.Profiles[0].Missing)
}
