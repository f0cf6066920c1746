package profiles

import (
	"strings"
)

// Directories whose direct children get the profile prefix, e.g.
// agents/reviewer.md installs as agents/<profile>-reviewer.md. For skills
// the prefixed child is the skill directory.
var (
	prefixedDirs    = []string{"agents", "commands", "rules"}
	prefixedSubdirs = []string{"skills"}
)

// InstalledPath maps a profile-relative path to the path it installs at in a
// target. Children already carrying the prefix, or a namespaced ':' name,
// are left alone, as is everything outside the prefixed directories.
func InstalledPath(profile, rel string, noPrefix bool) string {
	if noPrefix {
		return rel
	}
	parts := strings.Split(rel, "/")
	if len(parts) < 2 || !(contains(prefixedDirs, parts[0]) || contains(prefixedSubdirs, parts[0])) {
		return rel
	}
	child := parts[1]
	if strings.Contains(child, ":") || strings.HasPrefix(child, profile+"-") {
		return rel
	}
	parts[1] = profile + "-" + child
	return strings.Join(parts, "/")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
