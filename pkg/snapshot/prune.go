package snapshot

import (
	"context"

	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/lock"
	"github.com/ynishi/dot-agent/pkg/manifest"
	"github.com/ynishi/dot-agent/pkg/store"
	"github.com/ynishi/dot-agent/pkg/types"
)

// PruneResult reports a prune or delete
type PruneResult struct {
	Deleted []string       `json:"deleted" yaml:"deleted"`
	GC      store.GCResult `json:"gc" yaml:"gc"`
}

// Prune keeps the keep newest snapshots of subject, deletes the rest and
// collects the blobs nothing references any more.
func (m *Manager) Prune(ctx context.Context, subject types.Subject, keep int) (*PruneResult, error) {
	return m.prune(ctx, subject, keep, m.List)
}

// PruneAutomatic is Prune restricted to snapshots taken before an
// operation. Manual snapshots are neither counted nor deleted.
func (m *Manager) PruneAutomatic(ctx context.Context, subject types.Subject, keep int) (*PruneResult, error) {
	return m.prune(ctx, subject, keep, m.index.ListAutomatic)
}

func (m *Manager) prune(ctx context.Context, subject types.Subject, keep int,
	lister func(context.Context, types.Subject) ([]types.Snapshot, error)) (*PruneResult, error) {
	if keep < 0 {
		return nil, errors.Newf(errors.ErrInvalidInput, "keep must not be negative, got %d", keep)
	}
	res := &PruneResult{}
	err := m.withLocks(ctx, subject, func() error {
		list, err := lister(ctx, subject)
		if err != nil {
			return err
		}
		if len(list) <= keep {
			return nil
		}
		for _, s := range list[keep:] {
			res.Deleted = append(res.Deleted, s.ID)
		}
		if _, err := m.index.DeleteSnapshots(ctx, res.Deleted...); err != nil {
			return err
		}
		res.GC, err = m.collect(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info().Str("subject", subject.String()).Int("deleted", len(res.Deleted)).Int("kept", keep).Msg("Pruned snapshots")
	return res, nil
}

// Delete removes one snapshot of subject and collects its blobs
func (m *Manager) Delete(ctx context.Context, subject types.Subject, id string) (*PruneResult, error) {
	res := &PruneResult{}
	err := m.withLocks(ctx, subject, func() error {
		if _, err := m.Get(ctx, subject, id); err != nil {
			return err
		}
		if _, err := m.index.DeleteSnapshots(ctx, id); err != nil {
			return err
		}
		res.Deleted = []string{id}
		var err error
		res.GC, err = m.collect(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GC removes every blob that no snapshot and no registered target manifest
// references.
func (m *Manager) GC(ctx context.Context) (store.GCResult, error) {
	if m.locker == nil {
		return m.collect(ctx)
	}
	var res store.GCResult
	err := m.locker.With(ctx, lock.StoreKey, func() error {
		var err error
		res, err = m.collect(ctx)
		return err
	})
	return res, err
}

// collect runs a collection; the caller holds the store lock. A registered
// target whose manifest cannot be read stops the collection, since its
// references are unknown. Targets without a manifest are forgotten.
func (m *Manager) collect(ctx context.Context) (store.GCResult, error) {
	live, err := m.index.LiveHashes(ctx)
	if err != nil {
		return store.GCResult{}, err
	}

	targets, err := m.index.Targets(ctx)
	if err != nil {
		return store.GCResult{}, err
	}
	for _, root := range targets {
		exists, err := manifest.Exists(m.fs, root)
		if err != nil {
			return store.GCResult{}, err
		}
		if !exists {
			m.logger.Debug().Str("target", root).Msg("Forgetting target without manifest")
			if err := m.index.UnregisterTarget(ctx, root); err != nil {
				return store.GCResult{}, err
			}
			continue
		}
		mf, err := manifest.Load(m.fs, root)
		if err != nil {
			return store.GCResult{}, errors.Wrapf(err, errors.ErrCorruptManifest, "refusing to collect: manifest of %s is unreadable", root).
				WithDetail("target", root)
		}
		for h := range mf.Hashes() {
			live[h] = struct{}{}
		}
	}
	return m.store.GC(ctx, live)
}
