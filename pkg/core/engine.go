package core

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/ynishi/dot-agent/pkg/config"
	"github.com/ynishi/dot-agent/pkg/filesystem"
	"github.com/ynishi/dot-agent/pkg/index"
	"github.com/ynishi/dot-agent/pkg/installer"
	"github.com/ynishi/dot-agent/pkg/lock"
	"github.com/ynishi/dot-agent/pkg/logging"
	"github.com/ynishi/dot-agent/pkg/manifest"
	"github.com/ynishi/dot-agent/pkg/paths"
	"github.com/ynishi/dot-agent/pkg/profiles"
	"github.com/ynishi/dot-agent/pkg/rules"
	"github.com/ynishi/dot-agent/pkg/snapshot"
	"github.com/ynishi/dot-agent/pkg/store"
	"github.com/ynishi/dot-agent/pkg/types"
)

// Options configure Open
type Options struct {
	// BaseDir overrides DOT_AGENT_HOME and ~/.dot-agent
	BaseDir string

	// Overrides are applied on top of the loaded configuration, keyed by
	// dotted names such as "snapshot.auto"
	Overrides map[string]interface{}

	// FS defaults to the OS filesystem
	FS afero.Fs
}

// Engine holds every component, wired from one configuration
type Engine struct {
	Config    *config.Config
	Paths     paths.Paths
	FS        afero.Fs
	Profiles  *profiles.Manager
	Store     *store.Store
	Index     *index.Index
	Locker    *lock.Locker
	Snapshots *snapshot.Manager
	Installer *installer.Installer

	logger zerolog.Logger
}

// Open resolves paths, loads configuration and opens the index
func Open(opts Options) (*Engine, error) {
	logger := logging.GetLogger("core")

	p, err := paths.New(opts.BaseDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithOverrides(p.ConfigPath(), opts.Overrides)
	if err != nil {
		return nil, err
	}

	fs := opts.FS
	if fs == nil {
		fs = filesystem.New()
	}

	idx, err := index.Open(p.IndexPath())
	if err != nil {
		return nil, err
	}

	profileRules := rules.ForProfile(cfg.Profile)
	st := store.New(fs, p.ObjectsDir())
	locker := lock.New(p.LocksDir())
	mgr := profiles.NewManager(fs, p.ProfilesDir(), profileRules)
	snaps := snapshot.New(snapshot.Config{
		FS:             fs,
		Store:          st,
		Index:          idx,
		Locker:         locker,
		ProfileExclude: profileRules,
		TargetExclude:  rules.ForTarget(cfg.Snapshot, manifest.FileName),
	})
	inst := installer.New(installer.Config{
		FS:        fs,
		Profiles:  mgr,
		Store:     st,
		Locker:    locker,
		Registry:  idx,
		Snapshots: snaps,
		Protected: cfg.Install.Protected,
	})

	logger.Debug().Str("baseDir", p.BaseDir()).Msg("Engine opened")
	return &Engine{
		Config:    cfg,
		Paths:     p,
		FS:        fs,
		Profiles:  mgr,
		Store:     st,
		Index:     idx,
		Locker:    locker,
		Snapshots: snaps,
		Installer: inst,
		logger:    logger,
	}, nil
}

// Close releases the index
func (e *Engine) Close() error {
	return e.Index.Close()
}

// InstallOptions returns installer options seeded from configuration
func (e *Engine) InstallOptions() installer.Options {
	return installer.Options{
		NoPrefix: e.Config.Install.NoPrefix,
		Snapshot: e.Config.Snapshot.Auto,
	}
}

// ProfileSubject addresses a profile's source for snapshots
func (e *Engine) ProfileSubject(name string) (types.Subject, error) {
	p, err := e.Profiles.Get(name)
	if err != nil {
		return types.Subject{}, err
	}
	return types.ProfileSubject(p), nil
}

// TargetSubject addresses an install target for snapshots
func (e *Engine) TargetSubject(target string) (types.Subject, error) {
	root, err := paths.NormalizeTarget(target)
	if err != nil {
		return types.Subject{}, err
	}
	return types.TargetSubject(root), nil
}

// Install runs installer.Install, records it and prunes automatic snapshots
func (e *Engine) Install(ctx context.Context, profile, target string, opts installer.Options) (*installer.Result, error) {
	res, err := e.Installer.Install(ctx, profile, target, opts)
	return e.afterMutation(ctx, res, err)
}

// Upgrade runs installer.Upgrade and prunes automatic snapshots
func (e *Engine) Upgrade(ctx context.Context, profile, target string, opts installer.Options) (*installer.Result, error) {
	res, err := e.Installer.Upgrade(ctx, profile, target, opts)
	return e.afterMutation(ctx, res, err)
}

// Remove runs installer.Remove and prunes automatic snapshots
func (e *Engine) Remove(ctx context.Context, profile, target string, opts installer.Options) (*installer.Result, error) {
	res, err := e.Installer.Remove(ctx, profile, target, opts)
	return e.afterMutation(ctx, res, err)
}

// Switch runs installer.Switch and prunes automatic snapshots
func (e *Engine) Switch(ctx context.Context, from, to, target string, opts installer.Options) (*installer.Result, error) {
	res, err := e.Installer.Switch(ctx, from, to, target, opts)
	return e.afterMutation(ctx, res, err)
}

// afterMutation records an applied operation in the history and keeps the
// target's automatic snapshots within snapshot.keep. Problems here are
// logged, never returned: the operation itself succeeded.
func (e *Engine) afterMutation(ctx context.Context, res *installer.Result, err error) (*installer.Result, error) {
	if err != nil || res == nil || res.DryRun {
		return res, err
	}
	e.record(ctx, res)
	e.pruneAutomatic(ctx, res.Target, res.SnapshotID)
	return res, nil
}

func (e *Engine) pruneAutomatic(ctx context.Context, target, snapshotID string) {
	if snapshotID == "" || e.Config.Snapshot.Keep == 0 {
		return
	}
	if _, err := e.Snapshots.PruneAutomatic(ctx, types.TargetSubject(target), e.Config.Snapshot.Keep); err != nil {
		e.logger.Warn().Err(err).Str("target", target).Msg("Failed to prune automatic snapshots")
	}
}
