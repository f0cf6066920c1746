package core

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/installer"
	"github.com/ynishi/dot-agent/pkg/paths"
	"github.com/ynishi/dot-agent/pkg/snapshot"
	"github.com/ynishi/dot-agent/pkg/types"
)

// OpRollback names history entries written by Rollback
const OpRollback = "rollback"

// RollbackResult reports a rollback: the operation undone, what the restore
// changed and the history entry recording the rollback itself
type RollbackResult struct {
	Undone  types.HistoryEntry      `json:"undone" yaml:"undone"`
	Restore *snapshot.RestoreResult `json:"restore" yaml:"restore"`
	Entry   types.HistoryEntry      `json:"entry" yaml:"entry"`
}

func newEntry(op, profile, target, snapshotID string) types.HistoryEntry {
	id := ulid.Make()
	return types.HistoryEntry{
		ID:         id.String(),
		Operation:  op,
		Profile:    profile,
		Target:     target,
		SnapshotID: snapshotID,
		CreatedAt:  ulid.Time(id.Time()).UTC(),
	}
}

// record appends an applied installer result to the history. An upgrade
// that found nothing to do is not recorded.
func (e *Engine) record(ctx context.Context, res *installer.Result) {
	if res.Operation == installer.OpUpgrade && !res.Modified() && res.Count(installer.ActionAdopt) == 0 {
		return
	}
	h := newEntry(res.Operation, res.Profile, res.Target, res.SnapshotID)
	h.Created = res.Count(installer.ActionCreate)
	h.Updated = res.Count(installer.ActionUpdate)
	h.Deleted = res.Count(installer.ActionDelete)
	h.Conflicts = res.Count(installer.ActionConflict)
	if err := e.Index.RecordOperation(ctx, h); err != nil {
		e.logger.Warn().Err(err).Str("operation", res.Operation).Msg("Failed to record operation")
	}
}

// History lists recorded operations newest first. An empty target lists
// every target; limit 0 lists everything.
func (e *Engine) History(ctx context.Context, target string, limit int) ([]types.HistoryEntry, error) {
	if limit < 0 {
		return nil, errors.Newf(errors.ErrInvalidInput, "limit must not be negative, got %d", limit)
	}
	if target != "" {
		root, err := paths.NormalizeTarget(target)
		if err != nil {
			return nil, err
		}
		target = root
	}
	return e.Index.ListOperations(ctx, target, limit)
}

// Operation loads one history entry
func (e *Engine) Operation(ctx context.Context, id string) (types.HistoryEntry, error) {
	return e.Index.GetOperation(ctx, id)
}

// Rollback puts an operation's target back into the state captured just
// before the operation ran. The current state is saved first as a
// pre-rollback snapshot, and the rollback is itself recorded, so it can be
// rolled back in turn. Later operations on the same target are undone too.
func (e *Engine) Rollback(ctx context.Context, id string) (*RollbackResult, error) {
	undone, err := e.Index.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !undone.Undoable() {
		return nil, errors.Newf(errors.ErrNotUndoable, "operation %s has no snapshot to roll back to", id).
			WithDetail("id", id)
	}

	subject := types.TargetSubject(undone.Target)
	if err := e.FS.MkdirAll(undone.Target, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", undone.Target)
	}
	// The snapshot may have been pruned; fail before saving anything
	if _, err := e.Snapshots.Get(ctx, subject, undone.SnapshotID); err != nil {
		return nil, err
	}
	safety, err := e.Snapshots.Save(ctx, subject, string(types.TriggerPreRollback), types.TriggerPreRollback)
	if err != nil {
		return nil, err
	}
	restored, err := e.Snapshots.Restore(ctx, subject, undone.SnapshotID)
	if err != nil {
		return nil, err
	}

	entry := newEntry(OpRollback, undone.Profile, undone.Target, safety.ID)
	entry.Created = len(restored.Changes.Added)
	entry.Updated = len(restored.Changes.Modified)
	entry.Deleted = len(restored.Changes.Removed)
	if err := e.Index.RecordOperation(ctx, entry); err != nil {
		e.logger.Warn().Err(err).Str("operation", OpRollback).Msg("Failed to record operation")
	}
	e.logger.Info().Str("id", undone.ID).Str("target", undone.Target).Str("snapshot", undone.SnapshotID).Msg("Rolled back operation")

	e.pruneAutomatic(ctx, undone.Target, safety.ID)
	return &RollbackResult{Undone: undone, Restore: restored, Entry: entry}, nil
}
