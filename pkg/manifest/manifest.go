// Package manifest reads and writes the installation manifest kept in every
// install target. The manifest is the installer's only record of which files
// it placed, for which profile, and with what content.
package manifest

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/ynishi/dot-agent/pkg/checksum"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/filesystem"
	"github.com/ynishi/dot-agent/pkg/logging"
)

// FileName is the manifest's name inside a target
const FileName = ".dot-agent-meta.toml"

// CurrentVersion is the manifest format written by this version
const CurrentVersion = 1

// Record is the installed file record: one file the installer placed
type Record struct {
	// Path is target-relative and '/'-separated
	Path string `toml:"path" json:"path" yaml:"path"`

	// Profile owns the file
	Profile string `toml:"profile" json:"profile" yaml:"profile"`

	// Source is the path inside the profile the file came from
	Source string `toml:"source" json:"source" yaml:"source"`

	// Hash is the content digest written at install or upgrade time
	Hash string `toml:"hash" json:"hash" yaml:"hash"`

	Executable  bool      `toml:"executable,omitempty" json:"executable,omitempty" yaml:"executable,omitempty"`
	InstalledAt time.Time `toml:"installed_at" json:"installedAt" yaml:"installedAt"`

	// Diverged is set once the live file was seen to differ from Hash
	Diverged bool `toml:"diverged,omitempty" json:"diverged,omitempty" yaml:"diverged,omitempty"`
}

// ProfileRecord is the per-profile bookkeeping of a target
type ProfileRecord struct {
	Name string `toml:"name" json:"name" yaml:"name"`

	// TreeHash is the profile's tree hash at install or last upgrade
	TreeHash string `toml:"tree_hash" json:"treeHash" yaml:"treeHash"`

	// NoPrefix records that installed names were not profile-prefixed
	NoPrefix bool `toml:"no_prefix,omitempty" json:"noPrefix,omitempty" yaml:"noPrefix,omitempty"`

	InstalledAt time.Time `toml:"installed_at" json:"installedAt" yaml:"installedAt"`

	// UpgradedAt is the zero time until the first upgrade
	UpgradedAt time.Time `toml:"upgraded_at" json:"upgradedAt" yaml:"upgradedAt"`
}

// Manifest is the full set of records for one target
type Manifest struct {
	Version   int             `toml:"version" json:"version" yaml:"version"`
	BaseDir   string          `toml:"base_dir" json:"baseDir" yaml:"baseDir"`
	UpdatedAt time.Time       `toml:"updated_at" json:"updatedAt" yaml:"updatedAt"`
	Profiles  []ProfileRecord `toml:"profiles" json:"profiles" yaml:"profiles"`
	Files     []Record        `toml:"files" json:"files" yaml:"files"`
}

// New returns an empty manifest for target
func New(target string) *Manifest {
	return &Manifest{Version: CurrentVersion, BaseDir: target}
}

// PathFor returns where the manifest of target lives
func PathFor(target string) string {
	return filepath.Join(target, FileName)
}

// Load reads the manifest of target. A missing manifest is an empty one;
// anything unreadable or invalid is CORRUPT_MANIFEST.
func Load(fsys afero.Fs, target string) (*Manifest, error) {
	p := PathFor(target)
	data, err := afero.ReadFile(fsys, p)
	if err != nil {
		if os.IsNotExist(err) {
			return New(target), nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read manifest %s", p)
	}
	m, err := Parse(data)
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			return nil, e.WithDetail("path", p)
		}
		return nil, err
	}
	return m, nil
}

// Exists reports whether target has a manifest on disk
func Exists(fsys afero.Fs, target string) (bool, error) {
	return filesystem.Exists(fsys, PathFor(target))
}

// Parse decodes manifest bytes strictly: unknown keys, malformed values and
// failed validation are all CORRUPT_MANIFEST.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(err, errors.ErrCorruptManifest, "failed to decode manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCorruptManifest, "invalid manifest")
	}
	m.sort()
	return &m, nil
}

// Encode renders the manifest as TOML
func (m *Manifest) Encode() ([]byte, error) {
	m.sort()
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(m); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to encode manifest")
	}
	return buf.Bytes(), nil
}

// Save writes the manifest atomically. A manifest with nothing in it is
// removed from disk instead.
func (m *Manifest) Save(fsys afero.Fs, target string) error {
	logger := logging.GetLogger("manifest")
	p := PathFor(target)

	if m.Empty() {
		if err := fsys.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to remove manifest %s", p)
		}
		logger.Debug().Str("target", target).Msg("Removed empty manifest")
		return nil
	}

	m.Version = CurrentVersion
	m.BaseDir = target
	m.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "refusing to save invalid manifest")
	}
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := filesystem.WriteFileAtomic(fsys, p, data, 0644); err != nil {
		return err
	}
	logger.Debug().
		Str("target", target).
		Int("profiles", len(m.Profiles)).
		Int("files", len(m.Files)).
		Msg("Saved manifest")
	return nil
}

// Validate checks the structural invariants: known version, unique and
// well-formed paths, valid digests, every file owned by a listed profile.
func (m *Manifest) Validate() error {
	if m.Version < 1 || m.Version > CurrentVersion {
		return errors.Newf(errors.ErrCorruptManifest, "unsupported manifest version %d", m.Version)
	}

	profiles := make(map[string]bool, len(m.Profiles))
	for _, p := range m.Profiles {
		if p.Name == "" {
			return errors.New(errors.ErrCorruptManifest, "profile entry without a name")
		}
		if profiles[p.Name] {
			return errors.Newf(errors.ErrCorruptManifest, "duplicate profile %s", p.Name)
		}
		if p.TreeHash != "" && !checksum.Valid(p.TreeHash) {
			return errors.Newf(errors.ErrCorruptManifest, "profile %s has invalid tree hash", p.Name)
		}
		profiles[p.Name] = true
	}

	seen := make(map[string]bool, len(m.Files))
	for _, r := range m.Files {
		if !ValidPath(r.Path) {
			return errors.Newf(errors.ErrCorruptManifest, "invalid path %q", r.Path)
		}
		if seen[r.Path] {
			return errors.Newf(errors.ErrCorruptManifest, "duplicate path %s", r.Path)
		}
		seen[r.Path] = true
		if !checksum.Valid(r.Hash) {
			return errors.Newf(errors.ErrCorruptManifest, "invalid hash for %s", r.Path)
		}
		if !profiles[r.Profile] {
			return errors.Newf(errors.ErrCorruptManifest, "%s is owned by unknown profile %q", r.Path, r.Profile)
		}
	}
	return nil
}

// ValidPath reports whether p is a clean, relative, '/'-separated path that
// stays inside the target.
func ValidPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	if path.Clean(p) != p || p == "." {
		return false
	}
	return p != ".." && !strings.HasPrefix(p, "../")
}

// Empty reports whether the manifest tracks nothing
func (m *Manifest) Empty() bool {
	return len(m.Profiles) == 0 && len(m.Files) == 0
}

// Clone returns a deep copy
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Profiles = append([]ProfileRecord(nil), m.Profiles...)
	c.Files = append([]Record(nil), m.Files...)
	return &c
}

func (m *Manifest) sort() {
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })
	sort.Slice(m.Profiles, func(i, j int) bool { return m.Profiles[i].Name < m.Profiles[j].Name })
}
