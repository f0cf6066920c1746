package index

import (
	"context"
	"database/sql"
	"time"

	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/types"
)

const historyColumns = `id, operation, profile, target, snapshot_id, created_at,
	created, updated, deleted, conflicts`

// RecordOperation appends an entry to the operation history
func (x *Index) RecordOperation(ctx context.Context, h types.HistoryEntry) error {
	_, err := x.db.ExecContext(ctx, `
		INSERT INTO operations (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Operation, h.Profile, h.Target, h.SnapshotID, h.CreatedAt.UnixNano(),
		h.Created, h.Updated, h.Deleted, h.Conflicts)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIndex, "failed to record operation %s", h.ID)
	}
	return nil
}

// ListOperations returns history newest first. An empty target lists every
// target; limit 0 returns everything.
func (x *Index) ListOperations(ctx context.Context, target string, limit int) ([]types.HistoryEntry, error) {
	q := `SELECT ` + historyColumns + ` FROM operations`
	var args []any
	if target != "" {
		q += ` WHERE target = ?`
		args = append(args, target)
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIndex, "failed to list operations")
	}
	defer rows.Close()

	out := []types.HistoryEntry{}
	for rows.Next() {
		h, err := scanOperation(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrIndex, "failed to read operation row")
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrIndex, "failed to list operations")
	}
	return out, nil
}

// GetOperation loads one history entry
func (x *Index) GetOperation(ctx context.Context, id string) (types.HistoryEntry, error) {
	row := x.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM operations WHERE id = ?`, id)
	h, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return h, errors.Newf(errors.ErrOperationNotFound, "operation %s not found", id).WithDetail("id", id)
	}
	if err != nil {
		return h, errors.Wrapf(err, errors.ErrIndex, "failed to read operation %s", id)
	}
	return h, nil
}

func scanOperation(row interface{ Scan(...any) error }) (types.HistoryEntry, error) {
	var h types.HistoryEntry
	var created int64
	err := row.Scan(&h.ID, &h.Operation, &h.Profile, &h.Target, &h.SnapshotID, &created,
		&h.Created, &h.Updated, &h.Deleted, &h.Conflicts)
	if err != nil {
		return h, err
	}
	h.CreatedAt = time.Unix(0, created).UTC()
	return h, nil
}
