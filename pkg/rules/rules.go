package rules

import (
	"path"
	"strings"

	"github.com/ynishi/dot-agent/pkg/config"
	"github.com/ynishi/dot-agent/pkg/filesystem"
)

// Excluder reports whether a path relative to the capture root is skipped.
type Excluder interface {
	Excluded(rel string, isDir bool) bool
}

// Rule is a single parsed pattern
type Rule struct {
	Pattern  string
	Include  bool // leading !
	Dir      bool // trailing /
	Anchored bool // leading /
}

// Parse turns a pattern string into a Rule
func Parse(pattern string) Rule {
	r := Rule{}
	if strings.HasPrefix(pattern, "!") {
		r.Include = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		r.Dir = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.Anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	r.Pattern = pattern
	return r
}

// matches checks a single path element against the rule
func (r Rule) matches(rel string, isDir bool) bool {
	if r.Dir && !isDir {
		return false
	}
	name := path.Base(rel)

	switch {
	case r.Anchored:
		if strings.Contains(rel, "/") {
			return false
		}
		matched, _ := path.Match(r.Pattern, rel)
		return matched
	case strings.Contains(r.Pattern, "/"):
		matched, _ := path.Match(r.Pattern, rel)
		return matched
	default:
		matched, _ := path.Match(r.Pattern, name)
		return matched
	}
}

// Set is an ordered collection of rules. The zero value excludes only engine
// scratch files.
type Set struct {
	rules []Rule
}

// New builds a Set from pattern strings
func New(patterns ...string) *Set {
	s := &Set{}
	s.Add(patterns...)
	return s
}

// Add appends patterns to the set
func (s *Set) Add(patterns ...string) *Set {
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		s.rules = append(s.rules, Parse(p))
	}
	return s
}

// Rules returns the parsed rules
func (s *Set) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

// Excluded reports whether the entry at rel is skipped. Ancestors are not
// consulted; a walker prunes excluded directories before descending.
func (s *Set) Excluded(rel string, isDir bool) bool {
	if filesystem.IsScratch(path.Base(rel)) {
		return true
	}

	excluded := false
	for _, r := range s.rules {
		if !r.matches(rel, isDir) {
			continue
		}
		if r.Include {
			return false
		}
		excluded = true
	}
	return excluded
}

// ExcludedPath reports whether a file at rel, or any directory above it, is
// skipped. It serves callers that check paths without walking.
func ExcludedPath(e Excluder, rel string) bool {
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if e.Excluded(strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return e.Excluded(rel, false)
}

// ForProfile builds the exclusion set used when capturing a profile source:
// excluded directory names at any depth, include overrides, ignored file
// names.
func ForProfile(cfg config.Profile) *Set {
	s := &Set{}
	for _, d := range cfg.Exclude {
		s.Add(d + "/")
	}
	for _, f := range cfg.IgnoreFiles {
		s.Add(f)
	}
	for _, d := range cfg.Include {
		s.Add("!" + d + "/")
	}
	return s
}

// ForTarget builds the exclusion set used when capturing an install target:
// excluded top-level directories, ignored file names at any depth, and the
// given root-level files (the installation manifest).
func ForTarget(cfg config.Snapshot, rootFiles ...string) *Set {
	s := &Set{}
	for _, d := range cfg.TargetExclude {
		s.Add("/" + d + "/")
	}
	for _, f := range cfg.TargetIgnoreFiles {
		s.Add(f)
	}
	for _, f := range rootFiles {
		s.Add("/" + f)
	}
	return s
}
