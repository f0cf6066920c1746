package ui_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/installer"
	"github.com/ynishi/dot-agent/pkg/types"
	"github.com/ynishi/dot-agent/pkg/ui"
	"gopkg.in/yaml.v3"
)

func sampleResult() *installer.Result {
	return &installer.Result{
		Operation: installer.OpInstall,
		Profile:   "web",
		Target:    "/work/app",
		DryRun:    true,
		Changes: []installer.Change{
			{Action: installer.ActionCreate, Path: ".claude/agents/web-reviewer.md", Profile: "web"},
			{Action: installer.ActionConflict, Path: ".claude/commands/web-deploy.md", Profile: "web", Reason: "untracked file with different content"},
			{Action: installer.ActionUnchanged, Path: ".claude/hooks/pre.sh", Profile: "web"},
		},
	}
}

func TestNewRenderer(t *testing.T) {
	tests := []struct {
		name        string
		format      ui.Format
		expectError bool
	}{
		{name: "create terminal renderer", format: ui.FormatTerminal},
		{name: "create text renderer", format: ui.FormatText},
		{name: "create json renderer", format: ui.FormatJSON},
		{name: "create yaml renderer", format: ui.FormatYAML},
		{name: "create auto renderer with buffer", format: ui.FormatAuto},
		{name: "invalid format", format: ui.Format(999), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r, err := ui.NewRenderer(tt.format, &buf)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	r, err := ui.NewRenderer(ui.FormatJSON, &buf)
	require.NoError(t, err)

	require.NoError(t, r.RenderResult(sampleResult()))
	var decoded installer.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "web", decoded.Profile)
	assert.Len(t, decoded.Changes, 3)

	buf.Reset()
	require.NoError(t, r.RenderError(errors.New(errors.ErrConflict, "2 conflicting paths").
		WithDetail("paths", []string{"a", "b"})))
	var errObj map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &errObj))
	assert.Equal(t, "CONFLICT", errObj["code"])
	assert.Equal(t, "2 conflicting paths", errObj["error"])
	assert.Contains(t, errObj, "details")
}

func TestYAMLRenderer(t *testing.T) {
	var buf bytes.Buffer
	r, err := ui.NewRenderer(ui.FormatYAML, &buf)
	require.NoError(t, err)

	snap := types.Snapshot{
		ID:        "01HZX3V7K4M0000000000000AB",
		Subject:   types.Subject{Kind: types.SubjectProfile, Name: "web", Root: "/p/web"},
		Trigger:   types.TriggerManual,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FileCount: 4,
	}
	require.NoError(t, r.RenderResult(snap))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, snap.ID, decoded["id"])
	assert.Equal(t, "manual", decoded["trigger"])
	assert.Equal(t, 4, decoded["fileCount"])
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	r, err := ui.NewRenderer(ui.FormatText, &buf)
	require.NoError(t, err)

	require.NoError(t, r.RenderResult(sampleResult()))
	out := buf.String()
	assert.Contains(t, out, "install web: /work/app (dry run)")
	assert.Contains(t, out, ".claude/agents/web-reviewer.md")
	assert.Contains(t, out, "untracked file with different content")
	// plain unchanged rows are summarised, not listed
	assert.NotContains(t, out, ".claude/hooks/pre.sh")
	assert.Contains(t, out, "1 create, 1 unchanged, 1 conflict")
	assert.NotContains(t, out, "\x1b[")

	buf.Reset()
	require.NoError(t, r.RenderError(errors.New(errors.ErrNotInstalled, "web is not installed")))
	assert.Equal(t, "Error [NOT_INSTALLED]: web is not installed\n", buf.String())
}

func TestTerminalRenderer(t *testing.T) {
	var buf bytes.Buffer
	r, err := ui.NewRenderer(ui.FormatTerminal, &buf)
	require.NoError(t, err)

	require.NoError(t, r.RenderResult([]types.Profile{{Name: "web", Path: "/p/web"}}))
	assert.Contains(t, buf.String(), "web")
	assert.Contains(t, buf.String(), "/p/web")

	buf.Reset()
	require.NoError(t, r.RenderMessage("Created profile web"))
	assert.Contains(t, buf.String(), "Created profile web")

	buf.Reset()
	require.NoError(t, r.RenderError(errors.New(errors.ErrNotInstalled, "web is not installed").
		WithDetail("target", "/t")))
	out := buf.String()
	assert.Contains(t, out, "web is not installed")
	assert.Contains(t, out, "code: NOT_INSTALLED")
	assert.Contains(t, out, "target: /t")
	assert.Equal(t, 1, strings.Count(out, "NOT_INSTALLED"))
}
