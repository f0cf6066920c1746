// Package terminal provides rich terminal output: lipgloss headings and
// pterm tables with actions colored by status.
package terminal

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/style"
	"github.com/ynishi/dot-agent/pkg/ui/display"
)

// Renderer provides rich terminal output
type Renderer struct {
	output io.Writer
}

// New creates a new terminal renderer
func New(output io.Writer) *Renderer {
	return &Renderer{output: output}
}

// RenderResult renders a result with headings and tables
func (r *Renderer) RenderResult(result interface{}) error {
	v, ok := display.Convert(result)
	if !ok {
		_, err := fmt.Fprintf(r.output, "%v\n", result)
		return err
	}

	var b strings.Builder
	b.WriteString(style.TitleStyle.Render(v.Title))
	if v.Subtitle != "" {
		b.WriteString(" " + style.SubjectStyle.Render(v.Subtitle))
	}
	if v.DryRun {
		b.WriteString(" " + style.DryRunStyle.Render("(dry run)"))
	}
	b.WriteString("\n")

	for _, sec := range v.Sections {
		if sec.Title != "" {
			b.WriteString("\n" + style.TitleStyle.Render(sec.Title) + "\n")
		}
		if len(sec.Rows) == 0 {
			if sec.Empty != "" {
				b.WriteString("  " + style.MutedStyle.Render(sec.Empty) + "\n")
			}
			continue
		}
		table, err := r.table(sec, v.DryRun)
		if err != nil {
			return err
		}
		b.WriteString(table)
		b.WriteString("\n")
	}
	for _, line := range v.Footer {
		b.WriteString(style.MutedStyle.Render(line) + "\n")
	}

	_, err := io.WriteString(r.output, b.String())
	return err
}

func (r *Renderer) table(sec display.Section, dryRun bool) (string, error) {
	data := pterm.TableData{}
	if len(sec.Headers) > 0 {
		data = append(data, sec.Headers)
	}
	for _, row := range sec.Rows {
		cells := append([]string(nil), row.Cells...)
		if row.Action != "" && len(cells) > 0 {
			cells[0] = style.StatusStyle(style.ActionStatus(row.Action, dryRun)).Sprint(cells[0])
		}
		data = append(data, cells)
	}
	return pterm.DefaultTable.
		WithHasHeader(len(sec.Headers) > 0).
		WithData(data).
		Srender()
}

// RenderError renders an error with its code and details
func (r *Renderer) RenderError(err error) error {
	var b strings.Builder
	b.WriteString(style.ErrorStyle.Render("Error: ") + errors.Message(err) + "\n")
	if code := errors.GetErrorCode(err); code != errors.ErrUnknown {
		b.WriteString(style.MutedStyle.Render("  code: "+string(code)) + "\n")
	}
	details := errors.GetErrorDetails(err)
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(style.MutedStyle.Render(fmt.Sprintf("  %s: %v", k, details[k])) + "\n")
	}
	_, werr := io.WriteString(r.output, b.String())
	return werr
}

// RenderMessage renders a simple message
func (r *Renderer) RenderMessage(msg string) error {
	_, err := fmt.Fprintln(r.output, style.MessageStyle.Render(msg))
	return err
}
