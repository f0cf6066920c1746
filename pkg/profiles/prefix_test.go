// Test Type: Unit Test
// Description: Tests for the installed path mapping of profile files

package profiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstalledPath(t *testing.T) {
	tests := []struct {
		name     string
		rel      string
		noPrefix bool
		want     string
	}{
		{"agent file", "agents/reviewer.md", false, "agents/web-reviewer.md"},
		{"command file", "commands/deploy.md", false, "commands/web-deploy.md"},
		{"rule file", "rules/style.md", false, "rules/web-style.md"},
		{"nested under agents", "agents/team/lead.md", false, "agents/web-team/lead.md"},
		{"skill directory", "skills/lint/SKILL.md", false, "skills/web-lint/SKILL.md"},
		{"already prefixed", "agents/web-reviewer.md", false, "agents/web-reviewer.md"},
		{"namespaced", "commands/ns:deploy.md", false, "commands/ns:deploy.md"},
		{"root file", "CLAUDE.md", false, "CLAUDE.md"},
		{"hooks untouched", "hooks/pre.sh", false, "hooks/pre.sh"},
		{"bare prefixed dir name", "agents", false, "agents"},
		{"no prefix", "agents/reviewer.md", true, "agents/reviewer.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InstalledPath("web", tt.rel, tt.noPrefix))
		})
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"web", "a", "my-profile", "my_profile2", "Zed"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), name)
	}

	long := ""
	for i := 0; i < 65; i++ {
		long += "a"
	}
	invalid := []string{"", "1abc", "-web", "has space", "dot.name", "../escape", "a/b", long}
	for _, name := range invalid {
		assert.Error(t, ValidateName(name), name)
	}
}
