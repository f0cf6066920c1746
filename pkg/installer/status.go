package installer

import (
	"context"

	"github.com/ynishi/dot-agent/pkg/capture"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/manifest"
	"github.com/ynishi/dot-agent/pkg/paths"
)

// Status reports the profiles installed in target and every tracked file
// that no longer matches its record. It takes no lock and writes nothing.
func (in *Installer) Status(ctx context.Context, target string) (*Status, error) {
	target, err := paths.NormalizeTarget(target)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(in.fs, target)
	if err != nil {
		return nil, err
	}

	live, err := capture.Files(ctx, in.fs, target, m.Paths(), capture.Options{})
	if err != nil {
		return nil, err
	}
	st := &Status{
		Target:      target,
		Divergences: m.Refresh(live),
		Files:       m.Files,
	}

	for _, rec := range m.Profiles {
		ps := ProfileStatus{ProfileRecord: rec, Files: len(m.FilesFor(rec.Name))}
		prof, err := in.profiles.Get(rec.Name)
		switch {
		case errors.IsErrorCode(err, errors.ErrProfileNotFound):
			ps.Missing = true
		case err != nil:
			return nil, err
		default:
			tree, err := in.profiles.Capture(ctx, prof, nil)
			if err != nil {
				return nil, err
			}
			ps.Current = tree.Hash()
			ps.Outdated = ps.Current != rec.TreeHash
		}
		st.Profiles = append(st.Profiles, ps)
	}
	return st, nil
}
