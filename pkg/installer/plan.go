package installer

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/ynishi/dot-agent/pkg/capture"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/executor"
	"github.com/ynishi/dot-agent/pkg/filesystem"
	"github.com/ynishi/dot-agent/pkg/manifest"
	"github.com/ynishi/dot-agent/pkg/profiles"
	"github.com/ynishi/dot-agent/pkg/types"
)

// mapped is a profile file with the target path it installs at
type mapped struct {
	dest string
	src  types.Entry
}

type write struct {
	hash string
	exec bool
}

// planner builds one operation's changes against a working copy of the
// manifest and a view of the live target. Applying it writes exactly what
// was planned.
type planner struct {
	in     *Installer
	ctx    context.Context
	opts   Options
	target string
	now    time.Time

	m      *manifest.Manifest
	live   map[string]types.Entry
	seen   map[string]bool

	changes []Change
	writes  map[string]write
	deletes map[string]bool
}

func (in *Installer) newPlanner(ctx context.Context, target string, m *manifest.Manifest, opts Options) (*planner, error) {
	p := &planner{
		in:      in,
		ctx:     ctx,
		opts:    opts,
		target:  target,
		now:     time.Now().UTC().Truncate(time.Second),
		m:       m.Clone(),
		live:    make(map[string]types.Entry),
		seen:    make(map[string]bool),
		writes:  make(map[string]write),
		deletes: make(map[string]bool),
	}
	if err := p.observe(p.m.Paths()); err != nil {
		return nil, err
	}
	entries := make([]types.Entry, 0, len(p.live))
	for _, e := range p.live {
		entries = append(entries, e)
	}
	p.m.Refresh(types.NewTree(entries))
	return p, nil
}

// observe captures the live state of paths not seen yet
func (p *planner) observe(paths []string) error {
	var todo []string
	for _, rel := range paths {
		if !p.seen[rel] {
			p.seen[rel] = true
			todo = append(todo, rel)
		}
	}
	if len(todo) == 0 {
		return nil
	}
	tree, err := capture.Files(p.ctx, p.in.fs, p.target, todo, capture.Options{})
	if err != nil {
		return err
	}
	for _, e := range tree.Entries() {
		p.live[e.Path] = e
	}
	return nil
}

func (p *planner) sink() capture.Sink {
	if p.opts.DryRun {
		return nil
	}
	return p.in.store.Sink
}

// source captures a profile and maps its files to target paths
func (p *planner) source(name string, noPrefix bool) (*types.Tree, []mapped, error) {
	prof, err := p.in.profiles.Get(name)
	if err != nil {
		return nil, nil, err
	}
	tree, err := p.in.profiles.Capture(p.ctx, prof, p.sink())
	if err != nil {
		return nil, nil, err
	}

	files := make([]mapped, 0, tree.Len())
	from := make(map[string]string, tree.Len())
	dests := make([]string, 0, tree.Len())
	for _, e := range tree.Entries() {
		dest := profiles.InstalledPath(name, e.Path, noPrefix)
		if dest == manifest.FileName || filesystem.IsScratch(path.Base(dest)) {
			return nil, nil, errors.Newf(errors.ErrInvalidInput, "profile %s contains reserved file %s", name, e.Path).
				WithDetail("path", e.Path)
		}
		if other, ok := from[dest]; ok {
			return nil, nil, errors.Newf(errors.ErrInvalidInput, "profile %s files %s and %s both install to %s", name, other, e.Path, dest).
				WithDetail("path", dest)
		}
		from[dest] = e.Path
		files = append(files, mapped{dest: dest, src: e})
		dests = append(dests, dest)
	}
	if err := p.observe(dests); err != nil {
		return nil, nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].dest < files[j].dest })
	return tree, files, nil
}

func (p *planner) install(name string, noPrefix bool) error {
	if _, ok := p.m.Profile(name); ok {
		return errors.Newf(errors.ErrAlreadyInstalled, "profile %s is already installed in %s", name, p.target).
			WithDetail("profile", name)
	}
	tree, files, err := p.source(name, noPrefix)
	if err != nil {
		return err
	}
	for _, f := range files {
		p.place(name, f)
	}
	p.m.SetProfile(manifest.ProfileRecord{
		Name:        name,
		TreeHash:    tree.Hash(),
		NoPrefix:    noPrefix,
		InstalledAt: p.now,
	})
	return nil
}

func (p *planner) upgrade(name string) error {
	rec, ok := p.m.Profile(name)
	if !ok {
		return notInstalled(name, p.target)
	}
	tree, files, err := p.source(name, rec.NoPrefix)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(files))
	for _, f := range files {
		wanted[f.dest] = true
		r, tracked := p.m.Lookup(f.dest)
		if !tracked || r.Profile != name {
			p.place(name, f)
			continue
		}
		p.refresh(r, f)
	}
	for _, r := range p.m.FilesFor(name) {
		if !wanted[r.Path] {
			p.drop(r, p.opts.Force)
		}
	}

	rec.TreeHash = tree.Hash()
	rec.UpgradedAt = p.now
	p.m.SetProfile(rec)
	return nil
}

func (p *planner) remove(name string) error {
	if _, ok := p.m.Profile(name); !ok {
		return notInstalled(name, p.target)
	}
	for _, r := range p.m.FilesFor(name) {
		p.drop(r, p.opts.Force)
	}
	if len(p.m.FilesFor(name)) == 0 {
		p.m.DropProfile(name)
	}
	return nil
}

// switchProfiles plans the removal of from and then the install of to
// against the manifest and target as the removal leaves them. Files the
// removal would have to leave behind count as conflicts.
func (p *planner) switchProfiles(from, to string) error {
	rec, ok := p.m.Profile(from)
	if !ok {
		return notInstalled(from, p.target)
	}
	if _, ok := p.m.Profile(to); ok {
		return errors.Newf(errors.ErrAlreadyInstalled, "profile %s is already installed in %s", to, p.target).
			WithDetail("profile", to)
	}
	if _, err := p.in.profiles.Get(to); err != nil {
		return err
	}

	if err := p.remove(from); err != nil {
		return err
	}
	for i, c := range p.changes {
		if c.Action == ActionRetain {
			p.changes[i].Action = ActionConflict
			p.changes[i].Reason = "locally modified; switching would leave it behind"
		}
	}
	return p.install(to, p.opts.NoPrefix || rec.NoPrefix)
}

// place handles a profile file at a path the profile does not track yet
func (p *planner) place(name string, f mapped) {
	c := Change{Path: f.dest, Source: f.src.Path, Profile: name, Hash: f.src.Hash}
	live, exists := p.live[f.dest]
	owner := p.m.Owner(f.dest)

	switch {
	case exists && p.protected(f.dest):
		c.Action = ActionProtected
		c.Reason = "protected path already exists"
	case owner != "" && owner != name:
		p.conflict(&c, f, exists, fmt.Sprintf("owned by profile %s", owner))
		return
	case !exists:
		c.Action = ActionCreate
		p.stageWrite(f)
		p.record(name, f)
	case matches(live, f.src):
		c.Action = ActionAdopt
		c.Reason = "identical file already present"
		p.record(name, f)
	default:
		p.conflict(&c, f, exists, "untracked file with different content")
		return
	}
	p.changes = append(p.changes, c)
}

// refresh handles a file the profile already tracks
func (p *planner) refresh(r manifest.Record, f mapped) {
	c := Change{Path: f.dest, Source: f.src.Path, Profile: r.Profile, Hash: f.src.Hash}
	live, exists := p.live[f.dest]
	changed := r.Hash != f.src.Hash || r.Executable != f.src.Executable

	switch {
	case exists && p.protected(f.dest):
		c.Action = ActionProtected
		c.Reason = "protected path already exists"
		c.Hash = r.Hash
	case exists && matches(live, f.src):
		c.Action = ActionUnchanged
		if changed || r.Diverged {
			c.Action = ActionAdopt
			c.Reason = "already matches profile"
		}
		p.record(r.Profile, f)
	case !r.Diverged && changed:
		c.Action = ActionUpdate
		p.stageWrite(f)
		p.record(r.Profile, f)
	case !r.Diverged:
		c.Action = ActionUnchanged
		p.record(r.Profile, f)
	case !changed:
		c.Action = ActionUnchanged
		c.Reason = "locally modified"
		if !exists {
			c.Reason = "locally deleted"
		}
		r.Source = f.src.Path
		p.m.Record(r)
	default:
		p.conflict(&c, f, exists, "locally modified and changed in profile")
		return
	}
	p.changes = append(p.changes, c)
}

// drop handles a tracked file its profile no longer wants
func (p *planner) drop(r manifest.Record, force bool) {
	c := Change{Path: r.Path, Source: r.Source, Profile: r.Profile, Hash: r.Hash}
	_, exists := p.live[r.Path]

	switch {
	case exists && p.protected(r.Path):
		c.Action = ActionProtected
		c.Reason = "protected path left in place"
		p.m.Remove(r.Path)
	case !exists:
		c.Action = ActionDelete
		c.Reason = "already missing"
		p.m.Remove(r.Path)
	case r.Diverged && !force:
		c.Action = ActionRetain
		c.Reason = "locally modified"
	default:
		c.Action = ActionDelete
		if r.Diverged {
			c.Reason = "locally modified"
		}
		p.deletes[r.Path] = true
		delete(p.live, r.Path)
		p.m.Remove(r.Path)
	}
	p.changes = append(p.changes, c)
}

// conflict records a conflicting path, or overwrites it when forced
func (p *planner) conflict(c *Change, f mapped, exists bool, reason string) {
	c.Reason = reason
	if !p.opts.Force {
		c.Action = ActionConflict
		p.changes = append(p.changes, *c)
		return
	}
	c.Action = ActionCreate
	if exists {
		c.Action = ActionUpdate
	}
	p.stageWrite(f)
	p.record(c.Profile, f)
	p.changes = append(p.changes, *c)
}

func (p *planner) stageWrite(f mapped) {
	delete(p.deletes, f.dest)
	p.writes[f.dest] = write{hash: f.src.Hash, exec: f.src.Executable}
}

func (p *planner) record(profile string, f mapped) {
	p.m.Record(manifest.Record{
		Path:        f.dest,
		Profile:     profile,
		Source:      f.src.Path,
		Hash:        f.src.Hash,
		Executable:  f.src.Executable,
		InstalledAt: p.now,
	})
}

func (p *planner) protected(rel string) bool {
	return p.in.protected[rel]
}

func (p *planner) mutates() bool {
	return len(p.writes) > 0 || len(p.deletes) > 0
}

// operations turns the plan into executor operations, deletions first.
// Content comes from the store, where the capture put it.
func (p *planner) operations() ([]executor.Operation, error) {
	var dels, outs []string
	for rel := range p.deletes {
		dels = append(dels, rel)
	}
	for rel := range p.writes {
		outs = append(outs, rel)
	}
	sort.Strings(dels)
	sort.Strings(outs)

	ops := make([]executor.Operation, 0, len(dels)+len(outs))
	for _, rel := range dels {
		ops = append(ops, executor.Delete(rel))
	}
	for _, rel := range outs {
		w := p.writes[rel]
		data, err := p.in.store.Get(w.hash)
		if err != nil {
			return nil, err
		}
		e := types.Entry{Executable: w.exec}
		ops = append(ops, executor.Write(rel, data, e.Mode()))
	}
	return ops, nil
}

// apply commits the file changes, then the manifest. A manifest failure
// rolls the files back.
func (p *planner) apply() error {
	ops, err := p.operations()
	if err != nil {
		return err
	}
	exec := executor.New(executor.Options{FS: p.in.fs})
	return exec.Apply(p.target, ops, func() error {
		return p.m.Save(p.in.fs, p.target)
	})
}

func matches(live, src types.Entry) bool {
	return live.Hash == src.Hash && live.Executable == src.Executable
}

func notInstalled(name, target string) error {
	return errors.Newf(errors.ErrNotInstalled, "profile %s is not installed in %s", name, target).
		WithDetail("profile", name)
}
