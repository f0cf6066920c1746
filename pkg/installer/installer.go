// Package installer reconciles profiles against install targets. Every
// mutating operation plans first, refuses on conflicts, then applies the
// plan through a staged transaction and commits the manifest last.
package installer

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/filesystem"
	"github.com/ynishi/dot-agent/pkg/lock"
	"github.com/ynishi/dot-agent/pkg/logging"
	"github.com/ynishi/dot-agent/pkg/manifest"
	"github.com/ynishi/dot-agent/pkg/paths"
	"github.com/ynishi/dot-agent/pkg/profiles"
	"github.com/ynishi/dot-agent/pkg/store"
	"github.com/ynishi/dot-agent/pkg/types"
)

// Snapshotter saves a target snapshot while the caller holds the target and
// store locks.
type Snapshotter interface {
	Take(ctx context.Context, subject types.Subject, label string, trigger types.Trigger) (types.Snapshot, error)
}

// Registry records which targets carry a manifest, so garbage collection can
// find every blob they reference.
type Registry interface {
	RegisterTarget(ctx context.Context, root string) error
}

// Config wires an Installer
type Config struct {
	FS        afero.Fs
	Profiles  *profiles.Manager
	Store     *store.Store
	Locker    *lock.Locker
	Registry  Registry
	Snapshots Snapshotter

	// Protected paths are never overwritten or deleted once they exist
	Protected []string
}

// Installer runs install, upgrade, diff, remove and switch against targets
type Installer struct {
	fs        afero.Fs
	profiles  *profiles.Manager
	store     *store.Store
	locker    *lock.Locker
	registry  Registry
	snapshots Snapshotter
	protected map[string]bool
	logger    zerolog.Logger
}

// New creates an installer
func New(cfg Config) *Installer {
	fs := cfg.FS
	if fs == nil {
		fs = filesystem.New()
	}
	protected := make(map[string]bool, len(cfg.Protected))
	for _, p := range cfg.Protected {
		protected[strings.Trim(p, "/")] = true
	}
	return &Installer{
		fs:        fs,
		profiles:  cfg.Profiles,
		store:     cfg.Store,
		locker:    cfg.Locker,
		registry:  cfg.Registry,
		snapshots: cfg.Snapshots,
		protected: protected,
		logger:    logging.GetLogger("installer"),
	}
}

// Install places a profile that is not yet installed in target
func (in *Installer) Install(ctx context.Context, profile, target string, opts Options) (*Result, error) {
	return in.run(ctx, OpInstall, profile, target, opts, types.TriggerPreInstall, func(p *planner) error {
		return p.install(profile, opts.NoPrefix)
	})
}

// Upgrade brings an installed profile up to date with its source without
// overwriting local edits
func (in *Installer) Upgrade(ctx context.Context, profile, target string, opts Options) (*Result, error) {
	return in.run(ctx, OpUpgrade, profile, target, opts, types.TriggerPreUpgrade, func(p *planner) error {
		return p.upgrade(profile)
	})
}

// Remove deletes the files of an installed profile. Locally modified files
// are retained unless forced.
func (in *Installer) Remove(ctx context.Context, profile, target string, opts Options) (*Result, error) {
	return in.run(ctx, OpRemove, profile, target, opts, types.TriggerPreRemove, func(p *planner) error {
		return p.remove(profile)
	})
}

// Switch replaces installed profile from with to in one transaction. Nothing
// is touched unless both halves apply cleanly.
func (in *Installer) Switch(ctx context.Context, from, to, target string, opts Options) (*Result, error) {
	if from == to {
		return nil, errors.Newf(errors.ErrInvalidInput, "cannot switch profile %s to itself", from)
	}
	opts.SkipConflicts = false
	return in.run(ctx, OpSwitch, from+" -> "+to, target, opts, types.TriggerPreSwitch, func(p *planner) error {
		return p.switchProfiles(from, to)
	})
}

// Diff reports what Upgrade would do for an installed profile, or Install
// otherwise. It never writes anything, blobs included.
func (in *Installer) Diff(ctx context.Context, profile, target string, opts Options) (*Result, error) {
	target, err := paths.NormalizeTarget(target)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(in.fs, target)
	if err != nil {
		return nil, err
	}

	opts.DryRun = true
	p, err := in.newPlanner(ctx, target, m, opts)
	if err != nil {
		return nil, err
	}
	if _, installed := m.Profile(profile); installed {
		err = p.upgrade(profile)
	} else {
		err = p.install(profile, opts.NoPrefix)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Operation: OpDiff, Profile: profile, Target: target, DryRun: true, Changes: p.changes}, nil
}

// run holds the locks, plans, checks for conflicts and applies
func (in *Installer) run(ctx context.Context, op, profile, target string, opts Options, trigger types.Trigger, plan func(*planner) error) (*Result, error) {
	target, err := paths.NormalizeTarget(target)
	if err != nil {
		return nil, err
	}
	logger := in.logger.With().Str("target", target).Str("profile", profile).Logger()
	defer logging.LogOperationStart(logger, op)()

	if !opts.DryRun {
		release, err := in.acquire(ctx, target)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	m, err := manifest.Load(in.fs, target)
	if err != nil {
		return nil, err
	}
	p, err := in.newPlanner(ctx, target, m, opts)
	if err != nil {
		return nil, err
	}
	if err := plan(p); err != nil {
		return nil, err
	}

	res := &Result{Operation: op, Profile: profile, Target: target, DryRun: opts.DryRun, Changes: p.changes}
	if conflicts := res.Conflicts(); len(conflicts) > 0 && !opts.SkipConflicts {
		return res, conflictError(conflicts)
	}
	if opts.DryRun {
		return res, nil
	}

	if in.registry != nil {
		if err := in.registry.RegisterTarget(ctx, target); err != nil {
			return nil, err
		}
	}
	if opts.Snapshot && in.snapshots != nil && p.mutates() {
		snap, err := in.snapshots.Take(ctx, types.TargetSubject(target), string(trigger), trigger)
		if err != nil {
			return nil, err
		}
		res.SnapshotID = snap.ID
	}
	if err := p.apply(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("operation", op).
		Int("created", res.Count(ActionCreate)).
		Int("updated", res.Count(ActionUpdate)).
		Int("deleted", res.Count(ActionDelete)).
		Int("conflicts", res.Count(ActionConflict)).
		Msg("Applied")
	return res, nil
}

// acquire takes the target lock, then the store lock, which keeps garbage
// collection from removing blobs between capture and manifest commit.
func (in *Installer) acquire(ctx context.Context, target string) (func(), error) {
	if in.locker == nil {
		return func() {}, nil
	}
	tl, err := in.locker.Acquire(ctx, types.TargetSubject(target).Key())
	if err != nil {
		return nil, err
	}
	sl, err := in.locker.Acquire(ctx, lock.StoreKey)
	if err != nil {
		_ = tl.Release()
		return nil, err
	}
	return func() {
		_ = sl.Release()
		_ = tl.Release()
	}, nil
}

func conflictError(conflicts []Change) error {
	list := make([]string, len(conflicts))
	for i, c := range conflicts {
		list[i] = c.Path
	}
	sort.Strings(list)
	return errors.Newf(errors.ErrConflict, "%d conflicting path(s): %s", len(list), strings.Join(list, ", ")).
		WithDetail("paths", list)
}
