package manifest

import (
	"sort"

	"github.com/ynishi/dot-agent/pkg/types"
)

func (m *Manifest) find(p string) int {
	i := sort.Search(len(m.Files), func(i int) bool { return m.Files[i].Path >= p })
	if i < len(m.Files) && m.Files[i].Path == p {
		return i
	}
	return -1
}

// Lookup returns the record for a target path
func (m *Manifest) Lookup(p string) (Record, bool) {
	if i := m.find(p); i >= 0 {
		return m.Files[i], true
	}
	return Record{}, false
}

// Owner returns the profile that owns p, or "" when untracked
func (m *Manifest) Owner(p string) string {
	r, ok := m.Lookup(p)
	if !ok {
		return ""
	}
	return r.Profile
}

// Record inserts or replaces records by path
func (m *Manifest) Record(recs ...Record) {
	for _, r := range recs {
		if i := m.find(r.Path); i >= 0 {
			m.Files[i] = r
			continue
		}
		m.Files = append(m.Files, r)
		m.sort()
	}
}

// Remove drops the records for the given paths
func (m *Manifest) Remove(paths ...string) {
	drop := make(map[string]bool, len(paths))
	for _, p := range paths {
		drop[p] = true
	}
	kept := m.Files[:0]
	for _, r := range m.Files {
		if !drop[r.Path] {
			kept = append(kept, r)
		}
	}
	m.Files = kept
}

// FilesFor returns the records owned by profile in path order
func (m *Manifest) FilesFor(profile string) []Record {
	var out []Record
	for _, r := range m.Files {
		if r.Profile == profile {
			out = append(out, r)
		}
	}
	return out
}

// Paths returns every tracked path in order
func (m *Manifest) Paths() []string {
	out := make([]string, len(m.Files))
	for i, r := range m.Files {
		out[i] = r.Path
	}
	return out
}

// Hashes returns the set of content digests referenced by the records
func (m *Manifest) Hashes() map[string]struct{} {
	out := make(map[string]struct{}, len(m.Files))
	for _, r := range m.Files {
		out[r.Hash] = struct{}{}
	}
	return out
}

// Tree renders the records as a tree, for comparison with a capture
func (m *Manifest) Tree() *types.Tree {
	entries := make([]types.Entry, len(m.Files))
	for i, r := range m.Files {
		entries[i] = types.Entry{Path: r.Path, Hash: r.Hash, Executable: r.Executable}
	}
	return types.NewTree(entries)
}

// Profile returns the bookkeeping for an installed profile
func (m *Manifest) Profile(name string) (ProfileRecord, bool) {
	for _, p := range m.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return ProfileRecord{}, false
}

// SetProfile inserts or replaces a profile entry
func (m *Manifest) SetProfile(p ProfileRecord) {
	for i := range m.Profiles {
		if m.Profiles[i].Name == p.Name {
			m.Profiles[i] = p
			return
		}
	}
	m.Profiles = append(m.Profiles, p)
	m.sort()
}

// DropProfile removes a profile entry. Its file records are untouched.
func (m *Manifest) DropProfile(name string) {
	kept := m.Profiles[:0]
	for _, p := range m.Profiles {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	m.Profiles = kept
}

// ProfileNames lists installed profiles in name order
func (m *Manifest) ProfileNames() []string {
	out := make([]string, len(m.Profiles))
	for i, p := range m.Profiles {
		out[i] = p.Name
	}
	return out
}
