package types

import "time"

// HistoryEntry records one applied operation on a target. SnapshotID is the
// target snapshot taken just before it, empty when snapshots were off or
// nothing changed.
type HistoryEntry struct {
	ID         string    `json:"id" yaml:"id"`
	Operation  string    `json:"operation" yaml:"operation"`
	Profile    string    `json:"profile" yaml:"profile"`
	Target     string    `json:"target" yaml:"target"`
	SnapshotID string    `json:"snapshotId,omitempty" yaml:"snapshotId,omitempty"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`

	Created   int `json:"created" yaml:"created"`
	Updated   int `json:"updated" yaml:"updated"`
	Deleted   int `json:"deleted" yaml:"deleted"`
	Conflicts int `json:"conflicts" yaml:"conflicts"`
}

// Undoable reports whether the entry can be rolled back
func (h HistoryEntry) Undoable() bool {
	return h.SnapshotID != ""
}
