package types

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ynishi/dot-agent/pkg/checksum"
)

// Entry is one regular file in a captured tree
type Entry struct {
	// Path is relative to the capture root, '/'-separated
	Path string `json:"path" yaml:"path"`

	// Hash is the content digest ("sha256:<hex>")
	Hash string `json:"hash" yaml:"hash"`

	// Executable is set when any execute bit is set on the file
	Executable bool `json:"executable,omitempty" yaml:"executable,omitempty"`

	// Size in bytes
	Size int64 `json:"size" yaml:"size"`
}

// Mode returns the permission bits a restored copy of the entry gets
func (e Entry) Mode() os.FileMode {
	if e.Executable {
		return 0755
	}
	return 0644
}

// Tree is an ordered, immutable listing of captured files. Entries are
// sorted by Path in byte order and paths are unique.
type Tree struct {
	entries []Entry
}

// NewTree builds a tree from entries in any order. Later duplicates of a
// path replace earlier ones.
func NewTree(entries []Entry) *Tree {
	byPath := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}
	sorted := make([]Entry, 0, len(byPath))
	for _, e := range byPath {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	return &Tree{entries: sorted}
}

// EmptyTree returns a tree with no entries
func EmptyTree() *Tree {
	return &Tree{}
}

// Entries returns a copy of the sorted entries
func (t *Tree) Entries() []Entry {
	if t == nil {
		return nil
	}
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of entries
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Lookup finds the entry for path
func (t *Tree) Lookup(path string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Path >= path })
	if i < len(t.entries) && t.entries[i].Path == path {
		return t.entries[i], true
	}
	return Entry{}, false
}

// Paths returns the sorted entry paths
func (t *Tree) Paths() []string {
	out := make([]string, 0, t.Len())
	for _, e := range t.Entries() {
		out = append(out, e.Path)
	}
	return out
}

// Hashes returns the set of content digests referenced by the tree
func (t *Tree) Hashes() map[string]struct{} {
	out := make(map[string]struct{}, t.Len())
	for _, e := range t.Entries() {
		out[e.Hash] = struct{}{}
	}
	return out
}

// Size returns the total size of all entries
func (t *Tree) Size() int64 {
	var total int64
	for _, e := range t.Entries() {
		total += e.Size
	}
	return total
}

// Hash digests the listing: path, mode flag and content hash of every entry.
// Two trees with the same files hash the same regardless of capture time.
func (t *Tree) Hash() string {
	var b strings.Builder
	for _, e := range t.Entries() {
		b.WriteString(e.Path)
		b.WriteByte(0)
		b.WriteString(strconv.FormatBool(e.Executable))
		b.WriteByte(0)
		b.WriteString(e.Hash)
		b.WriteByte('\n')
	}
	return checksum.Sum([]byte(b.String()))
}
