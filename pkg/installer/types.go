package installer

import (
	"github.com/ynishi/dot-agent/pkg/manifest"
)

// Action is what the installer does, or refuses to do, with one path
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionAdopt     Action = "adopt"
	ActionUnchanged Action = "unchanged"
	ActionDelete    Action = "delete"
	ActionConflict  Action = "conflict"
	ActionRetain    Action = "retain"
	ActionProtected Action = "protected"
)

// Operation names reported in results
const (
	OpInstall = "install"
	OpUpgrade = "upgrade"
	OpDiff    = "diff"
	OpRemove  = "remove"
	OpSwitch  = "switch"
)

// Options control a single installer operation
type Options struct {
	// Force overwrites conflicting and locally modified files
	Force bool

	// SkipConflicts applies everything except the conflicting paths
	SkipConflicts bool

	// DryRun plans and reports without touching the store, the target or
	// the manifest
	DryRun bool

	// NoPrefix installs profile files under their own names. Upgrade and
	// switch reuse the choice recorded at install time.
	NoPrefix bool

	// Snapshot saves a target snapshot before anything is changed
	Snapshot bool
}

// Change is one planned or applied path change
type Change struct {
	Action  Action `json:"action" yaml:"action"`
	Path    string `json:"path" yaml:"path"`
	Source  string `json:"source,omitempty" yaml:"source,omitempty"`
	Profile string `json:"profile" yaml:"profile"`
	Hash    string `json:"hash,omitempty" yaml:"hash,omitempty"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Result reports an installer operation
type Result struct {
	Operation  string   `json:"operation" yaml:"operation"`
	Profile    string   `json:"profile" yaml:"profile"`
	Target     string   `json:"target" yaml:"target"`
	DryRun     bool     `json:"dryRun" yaml:"dryRun"`
	Changes    []Change `json:"changes" yaml:"changes"`
	SnapshotID string   `json:"snapshotId,omitempty" yaml:"snapshotId,omitempty"`
}

// Count returns how many changes carry action
func (r *Result) Count(action Action) int {
	n := 0
	for _, c := range r.Changes {
		if c.Action == action {
			n++
		}
	}
	return n
}

// Conflicts returns the conflicting changes
func (r *Result) Conflicts() []Change {
	var out []Change
	for _, c := range r.Changes {
		if c.Action == ActionConflict {
			out = append(out, c)
		}
	}
	return out
}

// Modified reports whether the result changes any file
func (r *Result) Modified() bool {
	for _, c := range r.Changes {
		switch c.Action {
		case ActionCreate, ActionUpdate, ActionDelete:
			return true
		}
	}
	return false
}

// ProfileStatus is one installed profile as seen by Status
type ProfileStatus struct {
	manifest.ProfileRecord `yaml:",inline"`

	Files int `json:"files" yaml:"files"`

	// Current is the profile's tree hash now; empty when the source is gone
	Current string `json:"current,omitempty" yaml:"current,omitempty"`

	// Outdated means the source changed since install or last upgrade
	Outdated bool `json:"outdated" yaml:"outdated"`

	// Missing means the profile source no longer exists
	Missing bool `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Status is the read-only view of a target
type Status struct {
	Target      string                `json:"target" yaml:"target"`
	Profiles    []ProfileStatus       `json:"profiles" yaml:"profiles"`
	Files       []manifest.Record     `json:"files" yaml:"files"`
	Divergences []manifest.Divergence `json:"divergences" yaml:"divergences"`
}
