package manifest

import (
	"github.com/ynishi/dot-agent/pkg/types"
)

// DivergenceKind says how a tracked file departed from its record
type DivergenceKind string

const (
	DivergedContent DivergenceKind = "modified"
	DivergedMode    DivergenceKind = "mode"
	DivergedMissing DivergenceKind = "missing"
)

// Divergence is a tracked path whose live state no longer matches the
// record
type Divergence struct {
	Path     string         `json:"path" yaml:"path"`
	Profile  string         `json:"profile" yaml:"profile"`
	Kind     DivergenceKind `json:"kind" yaml:"kind"`
	Recorded string         `json:"recorded" yaml:"recorded"`
	Live     string         `json:"live,omitempty" yaml:"live,omitempty"`
}

// Divergence compares every record against a capture of the live target.
// live only needs to hold the tracked paths.
func (m *Manifest) Divergence(live *types.Tree) []Divergence {
	var out []Divergence
	for _, r := range m.Files {
		if d, ok := divergence(r, live); ok {
			out = append(out, d)
		}
	}
	return out
}

func divergence(r Record, live *types.Tree) (Divergence, bool) {
	d := Divergence{Path: r.Path, Profile: r.Profile, Recorded: r.Hash}
	e, ok := live.Lookup(r.Path)
	switch {
	case !ok:
		d.Kind = DivergedMissing
	case e.Hash != r.Hash:
		d.Kind = DivergedContent
		d.Live = e.Hash
	case e.Executable != r.Executable:
		d.Kind = DivergedMode
		d.Live = e.Hash
	default:
		return Divergence{}, false
	}
	return d, true
}

// MarkDiverged sets the persisted divergence flag on the given paths
func (m *Manifest) MarkDiverged(paths ...string) {
	for _, p := range paths {
		if i := m.find(p); i >= 0 {
			m.Files[i].Diverged = true
		}
	}
}

// Refresh recomputes the divergence flag of every record from live and
// returns the current divergences. A file edited back to its recorded
// content is clean again.
func (m *Manifest) Refresh(live *types.Tree) []Divergence {
	var out []Divergence
	for i, r := range m.Files {
		d, ok := divergence(r, live)
		m.Files[i].Diverged = ok
		if ok {
			out = append(out, d)
		}
	}
	return out
}
