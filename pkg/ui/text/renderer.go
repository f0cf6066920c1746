// Package text provides plain text output without styling, for pipes and
// NO_COLOR terminals.
package text

import (
	"fmt"
	"io"
	"strings"

	"github.com/ynishi/dot-agent/pkg/errors"
	"github.com/ynishi/dot-agent/pkg/ui/display"
)

// Renderer provides plain text output
type Renderer struct {
	output io.Writer
}

// New creates a new text renderer
func New(output io.Writer) *Renderer {
	return &Renderer{output: output}
}

// RenderResult renders a result as aligned columns
func (r *Renderer) RenderResult(result interface{}) error {
	v, ok := display.Convert(result)
	if !ok {
		_, err := fmt.Fprintf(r.output, "%v\n", result)
		return err
	}

	var b strings.Builder
	title := v.Title
	if v.Subtitle != "" {
		title += ": " + v.Subtitle
	}
	if v.DryRun {
		title += " (dry run)"
	}
	b.WriteString(title + "\n")

	for _, sec := range v.Sections {
		if sec.Title != "" {
			fmt.Fprintf(&b, "\n%s\n", sec.Title)
		}
		if len(sec.Rows) == 0 {
			if sec.Empty != "" {
				fmt.Fprintf(&b, "  %s\n", sec.Empty)
			}
			continue
		}
		writeTable(&b, sec)
	}
	for _, line := range v.Footer {
		fmt.Fprintf(&b, "%s\n", line)
	}

	_, err := io.WriteString(r.output, b.String())
	return err
}

// writeTable pads every column but the last to its widest cell
func writeTable(b *strings.Builder, sec display.Section) {
	rows := make([][]string, 0, len(sec.Rows)+1)
	if len(sec.Headers) > 0 {
		rows = append(rows, sec.Headers)
	}
	for _, row := range sec.Rows {
		rows = append(rows, row.Cells)
	}

	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if n := len([]rune(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for _, row := range rows {
		b.WriteString("  ")
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-len([]rune(cell))+2))
		}
		b.WriteString("\n")
	}
}

// RenderError renders an error as plain text
func (r *Renderer) RenderError(err error) error {
	code := errors.GetErrorCode(err)
	if code == errors.ErrUnknown {
		_, werr := fmt.Fprintf(r.output, "Error: %v\n", err)
		return werr
	}
	_, werr := fmt.Fprintf(r.output, "Error [%s]: %s\n", code, errors.Message(err))
	return werr
}

// RenderMessage renders a simple message
func (r *Renderer) RenderMessage(msg string) error {
	_, err := fmt.Fprintln(r.output, msg)
	return err
}
