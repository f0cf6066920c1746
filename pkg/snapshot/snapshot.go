// Package snapshot saves, lists, compares, restores and prunes point-in-time
// captures of profile sources and install targets. Listings live in the
// SQLite index; file content lives in the content store.
package snapshot

import (
	"context"
	"os"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/ynishi/dot-agent/pkg/capture"
	"github.com/ynishi/dot-agent/pkg/diff"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/filesystem"
	"github.com/ynishi/dot-agent/pkg/index"
	"github.com/ynishi/dot-agent/pkg/lock"
	"github.com/ynishi/dot-agent/pkg/logging"
	"github.com/ynishi/dot-agent/pkg/manifest"
	"github.com/ynishi/dot-agent/pkg/rules"
	"github.com/ynishi/dot-agent/pkg/store"
	"github.com/ynishi/dot-agent/pkg/types"
)

// Config wires a Manager
type Config struct {
	FS     afero.Fs
	Store  *store.Store
	Index  *index.Index
	Locker *lock.Locker

	// ProfileExclude and TargetExclude decide what a capture of each
	// subject kind skips
	ProfileExclude rules.Excluder
	TargetExclude  rules.Excluder
}

// Manager is the snapshot store
type Manager struct {
	fs             afero.Fs
	store          *store.Store
	index          *index.Index
	locker         *lock.Locker
	profileExclude rules.Excluder
	targetExclude  rules.Excluder
	logger         zerolog.Logger
}

// New creates a snapshot manager
func New(cfg Config) *Manager {
	fs := cfg.FS
	if fs == nil {
		fs = filesystem.New()
	}
	targetExclude := cfg.TargetExclude
	if targetExclude == nil {
		targetExclude = rules.New("/" + manifest.FileName)
	}
	return &Manager{
		fs:             fs,
		store:          cfg.Store,
		index:          cfg.Index,
		locker:         cfg.Locker,
		profileExclude: cfg.ProfileExclude,
		targetExclude:  targetExclude,
		logger:         logging.GetLogger("snapshot"),
	}
}

func (m *Manager) excluder(subject types.Subject) rules.Excluder {
	if subject.Kind == types.SubjectTarget {
		return m.targetExclude
	}
	return m.profileExclude
}

func (m *Manager) capture(ctx context.Context, subject types.Subject, sink capture.Sink) (*types.Tree, error) {
	return capture.Capture(ctx, m.fs, subject.Root, capture.Options{Exclude: m.excluder(subject), Sink: sink})
}

// Save captures subject into a new snapshot under the subject and store
// locks.
func (m *Manager) Save(ctx context.Context, subject types.Subject, label string, trigger types.Trigger) (types.Snapshot, error) {
	var snap types.Snapshot
	err := m.withLocks(ctx, subject, func() error {
		var err error
		snap, err = m.Take(ctx, subject, label, trigger)
		return err
	})
	return snap, err
}

// Take captures subject into a new snapshot. The caller holds the subject
// and store locks. For targets the raw manifest bytes are stored too.
func (m *Manager) Take(ctx context.Context, subject types.Subject, label string, trigger types.Trigger) (types.Snapshot, error) {
	if !trigger.Valid() {
		return types.Snapshot{}, errors.Newf(errors.ErrInvalidInput, "unknown snapshot trigger %q", trigger)
	}
	tree, err := m.capture(ctx, subject, m.store.Sink)
	if err != nil {
		return types.Snapshot{}, err
	}

	id := ulid.Make()
	snap := types.Snapshot{
		ID:        id.String(),
		Subject:   subject,
		Label:     label,
		Trigger:   trigger,
		CreatedAt: ulid.Time(id.Time()).UTC(),
		TreeHash:  tree.Hash(),
		FileCount: tree.Len(),
		TotalSize: tree.Size(),
	}

	if subject.Kind == types.SubjectTarget {
		data, err := afero.ReadFile(m.fs, manifest.PathFor(subject.Root))
		switch {
		case err == nil:
			if snap.ManifestHash, err = m.store.Put(data); err != nil {
				return types.Snapshot{}, err
			}
		case !os.IsNotExist(err):
			return types.Snapshot{}, errors.Wrapf(err, errors.ErrFileAccess, "failed to read manifest of %s", subject.Root)
		}
	}

	if err := m.index.InsertSnapshot(ctx, snap, tree); err != nil {
		return types.Snapshot{}, err
	}
	snap.Tree = tree

	m.logger.Info().
		Str("id", snap.ID).
		Str("subject", subject.String()).
		Str("trigger", string(trigger)).
		Int("files", snap.FileCount).
		Msg("Saved snapshot")
	return snap, nil
}

// List returns the subject's snapshots, newest first
func (m *Manager) List(ctx context.Context, subject types.Subject) ([]types.Snapshot, error) {
	return m.index.ListSnapshots(ctx, subject)
}

// Get loads a snapshot of subject with its listing
func (m *Manager) Get(ctx context.Context, subject types.Subject, id string) (types.Snapshot, error) {
	snap, err := m.index.GetSnapshot(ctx, id)
	if err != nil {
		return types.Snapshot{}, err
	}
	if snap.Subject.Key() != subject.Key() {
		return types.Snapshot{}, errors.Newf(errors.ErrSnapshotNotFound, "snapshot %s does not belong to %s", id, subject).
			WithDetail("id", id)
	}
	return snap, nil
}

// Latest returns the newest snapshot of subject
func (m *Manager) Latest(ctx context.Context, subject types.Subject) (types.Snapshot, error) {
	list, err := m.List(ctx, subject)
	if err != nil {
		return types.Snapshot{}, err
	}
	if len(list) == 0 {
		return types.Snapshot{}, errors.Newf(errors.ErrSnapshotNotFound, "no snapshots of %s", subject)
	}
	return m.Get(ctx, subject, list[0].ID)
}

// Diff compares a snapshot (base) with the subject as it is now (target)
func (m *Manager) Diff(ctx context.Context, subject types.Subject, id string) (diff.Result, error) {
	snap, err := m.Get(ctx, subject, id)
	if err != nil {
		return diff.Result{}, err
	}
	live, err := m.capture(ctx, subject, nil)
	if err != nil {
		return diff.Result{}, err
	}
	return diff.Trees(snap.Tree, live), nil
}

// withLocks runs fn holding the subject lock and then the store lock
func (m *Manager) withLocks(ctx context.Context, subject types.Subject, fn func() error) error {
	if m.locker == nil {
		return fn()
	}
	return m.locker.With(ctx, subject.Key(), func() error {
		return m.locker.With(ctx, lock.StoreKey, fn)
	})
}
