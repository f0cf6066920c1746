package display

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ynishi/dot-agent/pkg/checksum"
	"github.com/ynishi/dot-agent/pkg/core"
	"github.com/ynishi/dot-agent/pkg/diff"
	"github.com/ynishi/dot-agent/pkg/installer"
	"github.com/ynishi/dot-agent/pkg/profiles"
	"github.com/ynishi/dot-agent/pkg/snapshot"
	"github.com/ynishi/dot-agent/pkg/store"
	"github.com/ynishi/dot-agent/pkg/types"
)

// Convert builds the view for a result. The second return value is false
// for types it does not know, which renderers print with %v.
func Convert(result interface{}) (*View, bool) {
	switch r := result.(type) {
	case *installer.Result:
		return fromInstall(r), true
	case *installer.Status:
		return fromStatus(r), true
	case []types.Profile:
		return fromProfiles(r), true
	case *profiles.Detail:
		return fromProfileDetail(r), true
	case []types.Snapshot:
		return fromSnapshots(r), true
	case types.Snapshot:
		return fromSnapshot(r), true
	case *types.Snapshot:
		return fromSnapshot(*r), true
	case diff.Result:
		return fromDiff("Changes", r), true
	case *snapshot.RestoreResult:
		return fromRestore(r), true
	case *snapshot.PruneResult:
		return fromPrune(r), true
	case []types.HistoryEntry:
		return fromHistory(r), true
	case *core.RollbackResult:
		return fromRollback(r), true
	case store.GCResult:
		return &View{Title: "Garbage collection", Footer: []string{gcLine(r)}}, true
	}
	return nil, false
}

// Short shortens a digest for display
func Short(hash string) string {
	hex := checksum.Hex(hash)
	if len(hex) > 12 {
		return hex[:12]
	}
	return hex
}

func fromInstall(r *installer.Result) *View {
	v := &View{
		Title:    fmt.Sprintf("%s %s", r.Operation, r.Profile),
		Subtitle: r.Target,
		DryRun:   r.DryRun,
	}
	sec := Section{
		Headers: []string{"Action", "Path", "Detail"},
		Empty:   "Nothing to do",
	}
	counts := map[installer.Action]int{}
	for _, c := range r.Changes {
		counts[c.Action]++
		if c.Action == installer.ActionUnchanged && c.Reason == "" {
			continue
		}
		sec.Rows = append(sec.Rows, Row{
			Action: string(c.Action),
			Cells:  []string{string(c.Action), c.Path, c.Reason},
		})
	}
	v.Sections = []Section{sec}

	var parts []string
	for _, a := range []installer.Action{
		installer.ActionCreate, installer.ActionUpdate, installer.ActionAdopt,
		installer.ActionDelete, installer.ActionUnchanged, installer.ActionRetain,
		installer.ActionProtected, installer.ActionConflict,
	} {
		if n := counts[a]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, a))
		}
	}
	if len(parts) > 0 {
		v.Footer = append(v.Footer, strings.Join(parts, ", "))
	}
	if r.SnapshotID != "" {
		v.Footer = append(v.Footer, "snapshot "+r.SnapshotID)
	}
	return v
}

func fromStatus(s *installer.Status) *View {
	v := &View{Title: "Status", Subtitle: s.Target}

	profiles := Section{
		Title:   "Profiles",
		Headers: []string{"Profile", "Files", "Installed", "State"},
		Empty:   "No profiles installed",
	}
	for _, p := range s.Profiles {
		state, action := "current", "unchanged"
		switch {
		case p.Missing:
			state, action = "source missing", "conflict"
		case p.Outdated:
			state, action = "outdated", "update"
		}
		installed := humanize.Time(p.InstalledAt)
		if !p.UpgradedAt.IsZero() {
			installed += ", upgraded " + humanize.Time(p.UpgradedAt)
		}
		if p.NoPrefix {
			state += " (no prefix)"
		}
		profiles.Rows = append(profiles.Rows, Row{
			Action: action,
			Cells:  []string{p.Name, strconv.Itoa(p.Files), installed, state},
		})
	}
	v.Sections = append(v.Sections, profiles)

	if len(s.Divergences) > 0 {
		div := Section{
			Title:   "Local changes",
			Headers: []string{"Kind", "Path", "Profile"},
		}
		for _, d := range s.Divergences {
			div.Rows = append(div.Rows, Row{
				Action: "retain",
				Cells:  []string{string(d.Kind), d.Path, d.Profile},
			})
		}
		v.Sections = append(v.Sections, div)
	}
	v.Footer = append(v.Footer, fmt.Sprintf("%d tracked files", len(s.Files)))
	return v
}

func fromProfiles(list []types.Profile) *View {
	sec := Section{
		Headers: []string{"Profile", "Path"},
		Empty:   "No profiles",
	}
	for _, p := range list {
		sec.Rows = append(sec.Rows, Row{Cells: []string{p.Name, p.Path}})
	}
	return &View{Title: "Profiles", Sections: []Section{sec}}
}

func fromProfileDetail(d *profiles.Detail) *View {
	sec := Section{
		Headers: []string{"File", "Size", "Hash"},
		Empty:   "Profile is empty",
	}
	for _, e := range d.Files {
		name := e.Path
		if e.Executable {
			name += " *"
		}
		sec.Rows = append(sec.Rows, Row{Cells: []string{name, humanize.IBytes(uint64(e.Size)), Short(e.Hash)}})
	}
	return &View{
		Title:    "Profile " + d.Name,
		Subtitle: d.Path,
		Sections: []Section{sec},
		Footer: []string{fmt.Sprintf("%d files, %s, tree %s",
			d.FileCount, humanize.IBytes(uint64(d.TotalSize)), Short(d.TreeHash))},
	}
}

func fromSnapshots(list []types.Snapshot) *View {
	v := &View{Title: "Snapshots"}
	sec := Section{
		Headers: []string{"ID", "Created", "Trigger", "Files", "Size", "Label"},
		Empty:   "No snapshots",
	}
	for _, s := range list {
		if v.Subtitle == "" {
			v.Subtitle = s.Subject.String()
		}
		sec.Rows = append(sec.Rows, Row{Cells: []string{
			s.ID,
			humanize.Time(s.CreatedAt),
			string(s.Trigger),
			strconv.Itoa(s.FileCount),
			humanize.IBytes(uint64(s.TotalSize)),
			s.Label,
		}})
	}
	v.Sections = []Section{sec}
	return v
}

func fromSnapshot(s types.Snapshot) *View {
	rows := [][]string{
		{"ID", s.ID},
		{"Subject", s.Subject.String()},
		{"Trigger", string(s.Trigger)},
		{"Created", s.CreatedAt.Local().Format("2006-01-02 15:04:05")},
		{"Files", strconv.Itoa(s.FileCount)},
		{"Size", humanize.IBytes(uint64(s.TotalSize))},
		{"Tree", Short(s.TreeHash)},
	}
	if s.Label != "" {
		rows = append(rows, []string{"Label", s.Label})
	}
	if s.ManifestHash != "" {
		rows = append(rows, []string{"Manifest", Short(s.ManifestHash)})
	}
	sec := Section{}
	for _, r := range rows {
		sec.Rows = append(sec.Rows, Row{Cells: r})
	}
	return &View{Title: "Snapshot", Subtitle: s.ID, Sections: []Section{sec}}
}

func fromDiff(title string, r diff.Result) *View {
	sec := Section{
		Headers: []string{"Change", "Path"},
		Empty:   "No differences",
	}
	for _, c := range r.Changed() {
		kind := string(c.Kind)
		if c.ModeOnly {
			kind = "mode"
		}
		sec.Rows = append(sec.Rows, Row{Action: string(c.Kind), Cells: []string{kind, c.Path}})
	}
	s := r.Summary()
	return &View{
		Title:    title,
		Sections: []Section{sec},
		Footer: []string{fmt.Sprintf("%d added, %d removed, %d modified, %d unchanged",
			s.Added, s.Removed, s.Modified, s.Unchanged)},
	}
}

func fromRestore(r *snapshot.RestoreResult) *View {
	v := fromDiff("Restored", r.Changes)
	v.Subtitle = fmt.Sprintf("%s from %s", r.Snapshot.Subject.String(), r.Snapshot.ID)
	return v
}

func fromHistory(list []types.HistoryEntry) *View {
	sec := Section{
		Headers: []string{"ID", "When", "Operation", "Profile", "Target", "Changes", "Snapshot"},
		Empty:   "No operations recorded",
	}
	for _, h := range list {
		snap := h.SnapshotID
		if snap == "" {
			snap = "-"
		}
		sec.Rows = append(sec.Rows, Row{
			Action: historyAction(h.Operation),
			Cells: []string{
				h.ID,
				humanize.Time(h.CreatedAt),
				h.Operation,
				h.Profile,
				h.Target,
				fmt.Sprintf("+%d ~%d -%d", h.Created, h.Updated, h.Deleted),
				snap,
			},
		})
	}
	return &View{
		Title:    "History",
		Sections: []Section{sec},
		Footer:   []string{fmt.Sprintf("%d operations", len(list))},
	}
}

// historyAction picks the row colour for an operation
func historyAction(op string) string {
	switch op {
	case installer.OpInstall:
		return string(installer.ActionCreate)
	case installer.OpRemove:
		return string(installer.ActionDelete)
	case core.OpRollback:
		return string(installer.ActionRetain)
	}
	return string(installer.ActionUpdate)
}

func fromRollback(r *core.RollbackResult) *View {
	v := fromDiff("Rolled back", r.Restore.Changes)
	v.Subtitle = fmt.Sprintf("%s %s on %s", r.Undone.Operation, r.Undone.Profile, r.Undone.Target)
	v.Footer = append(v.Footer, "undo with: history rollback "+r.Entry.ID)
	return v
}

func fromPrune(r *snapshot.PruneResult) *View {
	sec := Section{
		Headers: []string{"Deleted snapshot"},
		Empty:   "No snapshots deleted",
	}
	for _, id := range r.Deleted {
		sec.Rows = append(sec.Rows, Row{Action: "delete", Cells: []string{id}})
	}
	return &View{Title: "Prune", Sections: []Section{sec}, Footer: []string{gcLine(r.GC)}}
}

func gcLine(r store.GCResult) string {
	return fmt.Sprintf("%d blobs scanned, %d removed, %s freed",
		r.Scanned, r.Removed, humanize.IBytes(uint64(r.FreedBytes)))
}
