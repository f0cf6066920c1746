// Package profiles manages the local profile sources under the profiles
// directory and maps profile files to their installed names.
package profiles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/ynishi/dot-agent/pkg/capture"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/filesystem"
	"github.com/ynishi/dot-agent/pkg/logging"
	"github.com/ynishi/dot-agent/pkg/rules"
	"github.com/ynishi/dot-agent/pkg/types"
)

// ScaffoldDirs are created in every new profile
var ScaffoldDirs = []string{"agents", "commands", "hooks", "plugins", "rules", "skills"}

const claudeTemplate = `# %s Profile

## Overview

<!-- Describe what this profile is for -->

## Usage

` + "```bash" + `
dot-agent install %s
` + "```" + `

## Customization

<!-- Add project-specific instructions here -->
`

// Manager is the profile source provider over a local directory
type Manager struct {
	fs      afero.Fs
	dir     string
	exclude rules.Excluder
	logger  zerolog.Logger
}

// NewManager creates a manager for profiles stored under dir. exclude
// applies to every capture, copy and import.
func NewManager(fs afero.Fs, dir string, exclude rules.Excluder) *Manager {
	if exclude == nil {
		exclude = &rules.Set{}
	}
	return &Manager{
		fs:      fs,
		dir:     dir,
		exclude: exclude,
		logger:  logging.GetLogger("profiles"),
	}
}

// Dir returns the profiles directory
func (m *Manager) Dir() string {
	return m.dir
}

// Excluder returns the rules applied to profile captures
func (m *Manager) Excluder() rules.Excluder {
	return m.exclude
}

// List returns every profile in name order
func (m *Manager) List() ([]types.Profile, error) {
	infos, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", m.dir)
	}
	var out []types.Profile
	for _, info := range infos {
		if !info.IsDir() || filesystem.IsScratch(info.Name()) || ValidateName(info.Name()) != nil {
			continue
		}
		out = append(out, types.Profile{Name: info.Name(), Path: filepath.Join(m.dir, info.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get resolves a profile by name
func (m *Manager) Get(name string) (types.Profile, error) {
	if err := ValidateName(name); err != nil {
		return types.Profile{}, err
	}
	path := filepath.Join(m.dir, name)
	info, err := m.fs.Stat(path)
	if err != nil || !info.IsDir() {
		return types.Profile{}, errors.Newf(errors.ErrProfileNotFound, "profile %s not found", name).
			WithDetail("name", name)
	}
	return types.Profile{Name: name, Path: path}, nil
}

// Capture records the profile's current tree, handing content to sink when
// set.
func (m *Manager) Capture(ctx context.Context, p types.Profile, sink capture.Sink) (*types.Tree, error) {
	return capture.Capture(ctx, m.fs, p.Path, capture.Options{Exclude: m.exclude, Sink: sink})
}

// Create scaffolds a new profile with the standard directories and a
// CLAUDE.md template.
func (m *Manager) Create(name string) (types.Profile, error) {
	if err := ValidateName(name); err != nil {
		return types.Profile{}, err
	}
	path := filepath.Join(m.dir, name)
	exists, err := filesystem.Exists(m.fs, path)
	if err != nil {
		return types.Profile{}, err
	}
	if exists {
		return types.Profile{}, errors.Newf(errors.ErrProfileExists, "profile %s already exists", name).
			WithDetail("name", name)
	}

	for _, d := range ScaffoldDirs {
		if err := m.fs.MkdirAll(filepath.Join(path, d), 0755); err != nil {
			return types.Profile{}, errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", d)
		}
	}
	content := fmt.Sprintf(claudeTemplate, name, name)
	if err := filesystem.WriteFileAtomic(m.fs, filepath.Join(path, ReadmeFile), []byte(content), 0644); err != nil {
		return types.Profile{}, err
	}
	m.logger.Info().Str("profile", name).Msg("Created profile")
	return types.Profile{Name: name, Path: path}, nil
}

// Remove deletes a profile source directory
func (m *Manager) Remove(name string) error {
	p, err := m.Get(name)
	if err != nil {
		return err
	}
	if err := m.fs.RemoveAll(p.Path); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to remove profile %s", name)
	}
	m.logger.Info().Str("profile", name).Msg("Removed profile")
	return nil
}

// Copy duplicates profile src under a new name
func (m *Manager) Copy(ctx context.Context, src, dst string, force bool) (types.Profile, error) {
	p, err := m.Get(src)
	if err != nil {
		return types.Profile{}, err
	}
	return m.importDir(ctx, p.Path, dst, force)
}

// Import copies a local directory in as a profile
func (m *Manager) Import(ctx context.Context, source, name string, force bool) (types.Profile, error) {
	info, err := m.fs.Stat(source)
	if err != nil || !info.IsDir() {
		return types.Profile{}, errors.Newf(errors.ErrTargetNotFound, "source directory does not exist: %s", source).
			WithDetail("path", source)
	}
	return m.importDir(ctx, source, name, force)
}

// importDir copies the captured files of source into a scratch directory
// and renames it into place, so a failed copy never leaves a partial
// profile behind.
func (m *Manager) importDir(ctx context.Context, source, name string, force bool) (types.Profile, error) {
	if err := ValidateName(name); err != nil {
		return types.Profile{}, err
	}
	dest := filepath.Join(m.dir, name)
	exists, err := filesystem.Exists(m.fs, dest)
	if err != nil {
		return types.Profile{}, err
	}
	if exists && !force {
		return types.Profile{}, errors.Newf(errors.ErrProfileExists, "profile %s already exists", name).
			WithDetail("name", name)
	}

	tree, err := capture.Capture(ctx, m.fs, source, capture.Options{Exclude: m.exclude})
	if err != nil {
		return types.Profile{}, err
	}

	if err := m.fs.MkdirAll(m.dir, 0755); err != nil {
		return types.Profile{}, errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", m.dir)
	}
	scratch, err := afero.TempDir(m.fs, m.dir, "."+name+filesystem.TempMarker)
	if err != nil {
		return types.Profile{}, errors.Wrap(err, errors.ErrDirCreate, "failed to create staging directory")
	}
	cleanup := func() { _ = m.fs.RemoveAll(scratch) }

	for _, e := range tree.Entries() {
		data, err := afero.ReadFile(m.fs, filepath.Join(source, filepath.FromSlash(e.Path)))
		if err != nil {
			cleanup()
			return types.Profile{}, errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", e.Path)
		}
		if err := filesystem.WriteFileAtomic(m.fs, filepath.Join(scratch, filepath.FromSlash(e.Path)), data, e.Mode()); err != nil {
			cleanup()
			return types.Profile{}, err
		}
	}

	var backup string
	if exists {
		backup = filepath.Join(m.dir, "."+name+filesystem.BackupMarker+filepath.Base(scratch))
		if err := m.fs.Rename(dest, backup); err != nil {
			cleanup()
			return types.Profile{}, errors.Wrapf(err, errors.ErrFileWrite, "failed to replace profile %s", name)
		}
	}
	if err := m.fs.Rename(scratch, dest); err != nil {
		if backup != "" {
			_ = m.fs.Rename(backup, dest)
		}
		cleanup()
		return types.Profile{}, errors.Wrapf(err, errors.ErrFileWrite, "failed to install profile %s", name)
	}
	if backup != "" {
		_ = m.fs.RemoveAll(backup)
	}

	m.logger.Info().Str("profile", name).Str("source", source).Int("files", tree.Len()).Msg("Imported profile")
	return types.Profile{Name: name, Path: dest}, nil
}
