// Package diff compares two captured trees. It is pure: no I/O, no state.
package diff

import (
	"sort"

	"github.com/ynishi/dot-agent/pkg/types"
)

// Kind classifies a path in a comparison
type Kind string

const (
	Added     Kind = "added"
	Removed   Kind = "removed"
	Modified  Kind = "modified"
	Unchanged Kind = "unchanged"
)

// Change describes one path in a comparison. Base and Target are the zero
// Entry when the path is absent on that side.
type Change struct {
	Path   string      `json:"path" yaml:"path"`
	Kind   Kind        `json:"kind" yaml:"kind"`
	Base   types.Entry `json:"-" yaml:"-"`
	Target types.Entry `json:"-" yaml:"-"`

	// ModeOnly marks a modification where only the executable bit changed
	ModeOnly bool `json:"modeOnly,omitempty" yaml:"modeOnly,omitempty"`
}

// Result groups the changes between a base and a target tree. Each slice is
// sorted by path.
type Result struct {
	Added     []Change `json:"added" yaml:"added"`
	Removed   []Change `json:"removed" yaml:"removed"`
	Modified  []Change `json:"modified" yaml:"modified"`
	Unchanged []Change `json:"unchanged" yaml:"unchanged"`
}

// Trees compares base against target: Added paths exist only in target,
// Removed only in base.
func Trees(base, target *types.Tree) Result {
	var r Result
	b, t := base.Entries(), target.Entries()
	i, j := 0, 0
	for i < len(b) || j < len(t) {
		switch {
		case j >= len(t) || (i < len(b) && b[i].Path < t[j].Path):
			r.Removed = append(r.Removed, Change{Path: b[i].Path, Kind: Removed, Base: b[i]})
			i++
		case i >= len(b) || t[j].Path < b[i].Path:
			r.Added = append(r.Added, Change{Path: t[j].Path, Kind: Added, Target: t[j]})
			j++
		default:
			c := Change{Path: b[i].Path, Base: b[i], Target: t[j]}
			switch {
			case b[i].Hash != t[j].Hash:
				c.Kind = Modified
			case b[i].Executable != t[j].Executable:
				c.Kind = Modified
				c.ModeOnly = true
			default:
				c.Kind = Unchanged
			}
			if c.Kind == Modified {
				r.Modified = append(r.Modified, c)
			} else {
				r.Unchanged = append(r.Unchanged, c)
			}
			i++
			j++
		}
	}
	return r
}

// Empty reports whether the trees were identical
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Modified) == 0
}

// Changed returns added, removed and modified changes merged in path order
func (r Result) Changed() []Change {
	out := make([]Change, 0, len(r.Added)+len(r.Removed)+len(r.Modified))
	out = append(out, r.Added...)
	out = append(out, r.Removed...)
	out = append(out, r.Modified...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// All returns every change, unchanged paths included, in path order
func (r Result) All() []Change {
	out := append(r.Changed(), r.Unchanged...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Summary counts changes per kind
type Summary struct {
	Added     int `json:"added" yaml:"added"`
	Removed   int `json:"removed" yaml:"removed"`
	Modified  int `json:"modified" yaml:"modified"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
}

// Summary returns the per-kind counts
func (r Result) Summary() Summary {
	return Summary{
		Added:     len(r.Added),
		Removed:   len(r.Removed),
		Modified:  len(r.Modified),
		Unchanged: len(r.Unchanged),
	}
}
