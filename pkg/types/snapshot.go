package types

import (
	"time"

	"github.com/ynishi/dot-agent/pkg/checksum"
)

// SubjectKind distinguishes what a snapshot was taken of
type SubjectKind string

const (
	SubjectProfile SubjectKind = "profile"
	SubjectTarget  SubjectKind = "target"
)

// Subject is the thing a snapshot belongs to: a profile source directory or
// an install target.
type Subject struct {
	Kind SubjectKind `json:"kind" yaml:"kind"`

	// Name is the profile name, or the target path for targets
	Name string `json:"name" yaml:"name"`

	// Root is the directory that is captured and restored
	Root string `json:"root" yaml:"root"`
}

// ProfileSubject addresses a profile source directory
func ProfileSubject(p Profile) Subject {
	return Subject{Kind: SubjectProfile, Name: p.Name, Root: p.Path}
}

// TargetSubject addresses an install target
func TargetSubject(root string) Subject {
	return Subject{Kind: SubjectTarget, Name: root, Root: root}
}

// Key identifies the subject in the snapshot index and lock directory.
// Targets are keyed by a digest of their path.
func (s Subject) Key() string {
	if s.Kind == SubjectTarget {
		return string(SubjectTarget) + "-" + checksum.Short(s.Root)
	}
	return string(s.Kind) + "-" + s.Name
}

// String renders the subject for messages
func (s Subject) String() string {
	return string(s.Kind) + " " + s.Name
}

// Trigger records why a snapshot was taken
type Trigger string

const (
	TriggerManual     Trigger = "manual"
	TriggerPreInstall Trigger = "pre-install"
	TriggerPreUpgrade Trigger = "pre-upgrade"
	TriggerPreRemove  Trigger = "pre-remove"
	TriggerPreSwitch  Trigger = "pre-switch"

	// TriggerPreRollback precedes restoring an operation's snapshot, so the
	// rollback itself can be undone
	TriggerPreRollback Trigger = "pre-rollback"
)

// Valid reports whether t is a known trigger
func (t Trigger) Valid() bool {
	switch t {
	case TriggerManual, TriggerPreInstall, TriggerPreUpgrade, TriggerPreRemove, TriggerPreSwitch, TriggerPreRollback:
		return true
	}
	return false
}

// Snapshot is an immutable point-in-time capture of a subject
type Snapshot struct {
	// ID is a ULID, so IDs sort by creation time
	ID        string    `json:"id" yaml:"id"`
	Subject   Subject   `json:"subject" yaml:"subject"`
	Label     string    `json:"label,omitempty" yaml:"label,omitempty"`
	Trigger   Trigger   `json:"trigger" yaml:"trigger"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`

	// TreeHash is the digest of the captured listing
	TreeHash string `json:"treeHash" yaml:"treeHash"`

	// ManifestHash points at the target's installation manifest bytes in
	// the content store. Empty for profiles and for targets without one.
	ManifestHash string `json:"manifestHash,omitempty" yaml:"manifestHash,omitempty"`

	FileCount int   `json:"fileCount" yaml:"fileCount"`
	TotalSize int64 `json:"totalSize" yaml:"totalSize"`

	// Tree is only populated when the snapshot is loaded with its entries
	Tree *Tree `json:"-" yaml:"-"`
}
