package topics

import (
	"github.com/ynishi/dot-agent/pkg/style"
)

// Renderer defines the interface for rendering topic content
type Renderer interface {
	// Render takes raw content and returns formatted content for terminal display
	Render(content string, format string) string
}

// PlainRenderer is the default renderer that returns content as-is
type PlainRenderer struct{}

// Render returns the content unchanged
func (r *PlainRenderer) Render(content string, format string) string {
	return content
}

// MarkdownRenderer renders .md topics with glamour
type MarkdownRenderer struct {
	Width int // 0 leaves wrapping to glamour
}

// Render converts markdown topics for the terminal; other formats pass through
func (r *MarkdownRenderer) Render(content string, format string) string {
	if format != ".md" {
		return content
	}
	return style.Markdown(content, r.Width)
}
