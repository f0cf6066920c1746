package snapshot

import (
	"context"
	"os"

	"github.com/ynishi/dot-agent/pkg/diff"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/executor"
	"github.com/ynishi/dot-agent/pkg/filesystem"
	"github.com/ynishi/dot-agent/pkg/manifest"
	"github.com/ynishi/dot-agent/pkg/types"
)

// RestoreResult reports what a restore changed
type RestoreResult struct {
	Snapshot types.Snapshot `json:"snapshot" yaml:"snapshot"`
	Changes  diff.Result    `json:"changes" yaml:"changes"`
}

// Restore puts subject back into the state of snapshot id under the subject
// lock. Differing files are rewritten, files absent from the snapshot are
// deleted, excluded paths are left alone. For targets the snapshot's manifest
// is written back, or removed when the snapshot had none.
func (m *Manager) Restore(ctx context.Context, subject types.Subject, id string) (*RestoreResult, error) {
	var res *RestoreResult
	restore := func() error {
		var err error
		res, err = m.restore(ctx, subject, id)
		return err
	}
	var err error
	if m.locker == nil {
		err = restore()
	} else {
		err = m.locker.With(ctx, subject.Key(), restore)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (m *Manager) restore(ctx context.Context, subject types.Subject, id string) (*RestoreResult, error) {
	snap, err := m.Get(ctx, subject, id)
	if err != nil {
		return nil, err
	}
	live, err := m.capture(ctx, subject, nil)
	if err != nil {
		return nil, err
	}
	changes := diff.Trees(live, snap.Tree)

	var ops []executor.Operation
	for _, c := range changes.Removed {
		ops = append(ops, executor.Delete(c.Path))
	}
	for _, c := range append(append([]diff.Change(nil), changes.Added...), changes.Modified...) {
		data, err := m.store.Get(c.Target.Hash)
		if err != nil {
			return nil, err
		}
		ops = append(ops, executor.Write(c.Path, data, c.Target.Mode()))
	}

	var commit func() error
	if subject.Kind == types.SubjectTarget {
		commit, err = m.manifestCommit(ctx, subject, snap)
		if err != nil {
			return nil, err
		}
	}

	exec := executor.New(executor.Options{FS: m.fs})
	if err := exec.Apply(subject.Root, ops, commit); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("id", snap.ID).
		Str("subject", subject.String()).
		Int("written", len(changes.Added)+len(changes.Modified)).
		Int("deleted", len(changes.Removed)).
		Msg("Restored snapshot")
	return &RestoreResult{Snapshot: snap, Changes: changes}, nil
}

// manifestCommit prepares the manifest step of a target restore. The
// snapshot's manifest is fetched before any file is touched.
func (m *Manager) manifestCommit(ctx context.Context, subject types.Subject, snap types.Snapshot) (func() error, error) {
	p := manifest.PathFor(subject.Root)
	if snap.ManifestHash == "" {
		return func() error {
			if err := m.fs.Remove(p); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, errors.ErrFileWrite, "failed to remove manifest %s", p)
			}
			return nil
		}, nil
	}

	data, err := m.store.Get(snap.ManifestHash)
	if err != nil {
		return nil, err
	}
	return func() error {
		if err := filesystem.WriteFileAtomic(m.fs, p, data, 0644); err != nil {
			return err
		}
		return m.index.RegisterTarget(ctx, subject.Root)
	}, nil
}
