package profiles

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/types"
)

// ReadmeFile is the profile file shown as its description
const ReadmeFile = "CLAUDE.md"

// Detail is a profile with its captured contents
type Detail struct {
	types.Profile

	TreeHash  string        `json:"treeHash" yaml:"treeHash"`
	FileCount int           `json:"fileCount" yaml:"fileCount"`
	TotalSize int64         `json:"totalSize" yaml:"totalSize"`
	Files     []types.Entry `json:"files" yaml:"files"`

	// Readme is the content of the profile's CLAUDE.md, if any
	Readme string `json:"-" yaml:"-"`
}

// Show captures name without storing anything and reads its CLAUDE.md
func (m *Manager) Show(ctx context.Context, name string) (*Detail, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	tree, err := m.Capture(ctx, p, nil)
	if err != nil {
		return nil, err
	}

	d := &Detail{
		Profile:   p,
		TreeHash:  tree.Hash(),
		FileCount: tree.Len(),
		TotalSize: tree.Size(),
		Files:     tree.Entries(),
	}
	data, err := afero.ReadFile(m.fs, filepath.Join(p.Path, ReadmeFile))
	switch {
	case err == nil:
		d.Readme = string(data)
	case !os.IsNotExist(err):
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", ReadmeFile)
	}
	return d, nil
}
