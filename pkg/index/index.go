// Package index is the SQLite-backed catalogue of snapshots and of the
// install targets the engine has written to. It answers "which blobs are
// still referenced" for garbage collection.
package index

import (
	"context"
	"database/sql"
	_ "embed"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/logging"
	"github.com/ynishi/dot-agent/pkg/types"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Index wraps the state database
type Index struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the database at path
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", filepath.Dir(path))
	}

	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"foreign_keys(1)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIndex, "failed to open index %s", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, errors.ErrIndex, "failed to initialise index %s", path)
	}
	return &Index{db: db, logger: logging.GetLogger("index")}, nil
}

// Close releases the database
func (x *Index) Close() error {
	return x.db.Close()
}

// InsertSnapshot records a snapshot and its listing in one transaction
func (x *Index) InsertSnapshot(ctx context.Context, snap types.Snapshot, tree *types.Tree) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrIndex, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, subject_key, subject_kind, subject_name, subject_root,
			label, trigger_name, created_at, tree_hash, manifest_hash, file_count, total_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Subject.Key(), string(snap.Subject.Kind), snap.Subject.Name, snap.Subject.Root,
		snap.Label, string(snap.Trigger), snap.CreatedAt.UnixNano(), snap.TreeHash, snap.ManifestHash,
		snap.FileCount, snap.TotalSize)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIndex, "failed to insert snapshot %s", snap.ID)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_entries (snapshot_id, path, hash, executable, size)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, errors.ErrIndex, "failed to prepare entry insert")
	}
	defer stmt.Close()

	for _, e := range tree.Entries() {
		if _, err := stmt.ExecContext(ctx, snap.ID, e.Path, e.Hash, boolInt(e.Executable), e.Size); err != nil {
			return errors.Wrapf(err, errors.ErrIndex, "failed to insert entry %s", e.Path)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrIndex, "failed to commit snapshot")
	}
	x.logger.Debug().Str("id", snap.ID).Str("subject", snap.Subject.Key()).Int("files", tree.Len()).Msg("Indexed snapshot")
	return nil
}

const snapshotColumns = `id, subject_kind, subject_name, subject_root, label, trigger_name,
	created_at, tree_hash, manifest_hash, file_count, total_size`

func scanSnapshot(row interface{ Scan(...any) error }) (types.Snapshot, error) {
	var s types.Snapshot
	var kind, trigger string
	var created int64
	err := row.Scan(&s.ID, &kind, &s.Subject.Name, &s.Subject.Root, &s.Label, &trigger,
		&created, &s.TreeHash, &s.ManifestHash, &s.FileCount, &s.TotalSize)
	if err != nil {
		return s, err
	}
	s.Subject.Kind = types.SubjectKind(kind)
	s.Trigger = types.Trigger(trigger)
	s.CreatedAt = time.Unix(0, created).UTC()
	return s, nil
}

// ListSnapshots returns a subject's snapshots, newest first
func (x *Index) ListSnapshots(ctx context.Context, subject types.Subject) ([]types.Snapshot, error) {
	return x.query(ctx, `SELECT `+snapshotColumns+` FROM snapshots
		WHERE subject_key = ? ORDER BY created_at DESC, id DESC`, subject.Key())
}

// ListAutomatic returns a subject's snapshots taken by an operation rather
// than saved by hand, newest first
func (x *Index) ListAutomatic(ctx context.Context, subject types.Subject) ([]types.Snapshot, error) {
	return x.query(ctx, `SELECT `+snapshotColumns+` FROM snapshots
		WHERE subject_key = ? AND trigger_name != ? ORDER BY created_at DESC, id DESC`,
		subject.Key(), string(types.TriggerManual))
}

// ListAll returns every snapshot, newest first
func (x *Index) ListAll(ctx context.Context) ([]types.Snapshot, error) {
	return x.query(ctx, `SELECT `+snapshotColumns+` FROM snapshots ORDER BY created_at DESC, id DESC`)
}

func (x *Index) query(ctx context.Context, q string, args ...any) ([]types.Snapshot, error) {
	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIndex, "failed to list snapshots")
	}
	defer rows.Close()

	var out []types.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrIndex, "failed to read snapshot row")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrIndex, "failed to list snapshots")
	}
	return out, nil
}

// GetSnapshot loads one snapshot with its listing
func (x *Index) GetSnapshot(ctx context.Context, id string) (types.Snapshot, error) {
	row := x.db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, id)
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return s, errors.Newf(errors.ErrSnapshotNotFound, "snapshot %s not found", id).WithDetail("id", id)
	}
	if err != nil {
		return s, errors.Wrapf(err, errors.ErrIndex, "failed to read snapshot %s", id)
	}

	rows, err := x.db.QueryContext(ctx, `SELECT path, hash, executable, size FROM snapshot_entries
		WHERE snapshot_id = ? ORDER BY path`, id)
	if err != nil {
		return s, errors.Wrapf(err, errors.ErrIndex, "failed to read entries of %s", id)
	}
	defer rows.Close()

	var entries []types.Entry
	for rows.Next() {
		var e types.Entry
		var exec int
		if err := rows.Scan(&e.Path, &e.Hash, &exec, &e.Size); err != nil {
			return s, errors.Wrap(err, errors.ErrIndex, "failed to read entry row")
		}
		e.Executable = exec != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return s, errors.Wrap(err, errors.ErrIndex, "failed to read entries")
	}
	s.Tree = types.NewTree(entries)
	return s, nil
}

// DeleteSnapshots removes snapshots and their listings. Unknown ids are
// ignored; the number removed is returned.
func (x *Index) DeleteSnapshots(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrIndex, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	removed := 0
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_entries WHERE snapshot_id = ?`, id); err != nil {
			return 0, errors.Wrapf(err, errors.ErrIndex, "failed to delete entries of %s", id)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
		if err != nil {
			return 0, errors.Wrapf(err, errors.ErrIndex, "failed to delete snapshot %s", id)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.ErrIndex, "failed to commit delete")
	}
	return removed, nil
}

// LiveHashes returns every blob digest referenced by any snapshot: entry
// contents and stored manifests.
func (x *Index) LiveHashes(ctx context.Context) (map[string]struct{}, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT DISTINCT hash FROM snapshot_entries
		UNION
		SELECT manifest_hash FROM snapshots WHERE manifest_hash != ''`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIndex, "failed to collect referenced hashes")
	}
	defer rows.Close()

	live := map[string]struct{}{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, errors.Wrap(err, errors.ErrIndex, "failed to read hash row")
		}
		live[h] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrIndex, "failed to collect referenced hashes")
	}
	return live, nil
}

// RegisterTarget remembers a target the installer wrote to, so its manifest
// is consulted during garbage collection.
func (x *Index) RegisterTarget(ctx context.Context, root string) error {
	now := time.Now().UnixNano()
	_, err := x.db.ExecContext(ctx, `
		INSERT INTO targets (root, registered_at, last_seen) VALUES (?, ?, ?)
		ON CONFLICT(root) DO UPDATE SET last_seen = excluded.last_seen`, root, now, now)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIndex, "failed to register target %s", root)
	}
	return nil
}

// UnregisterTarget forgets a target
func (x *Index) UnregisterTarget(ctx context.Context, root string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM targets WHERE root = ?`, root); err != nil {
		return errors.Wrapf(err, errors.ErrIndex, "failed to unregister target %s", root)
	}
	return nil
}

// Targets lists registered target roots in order
func (x *Index) Targets(ctx context.Context) ([]string, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT root FROM targets ORDER BY root`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIndex, "failed to list targets")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var root string
		if err := rows.Scan(&root); err != nil {
			return nil, errors.Wrap(err, errors.ErrIndex, "failed to read target row")
		}
		out = append(out, root)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrIndex, "failed to list targets")
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
