package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/hylla/tavla/internal/richtext"
)

// minMarkdownWrap keeps glamour output readable in narrow modals.
const minMarkdownWrap = 24

// markdownRenderer caches one glamour renderer per wrap width.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// renderDescription renders a stored HTML or plain description for the terminal.
func (r *markdownRenderer) renderDescription(stored string, width int) string {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return ""
	}
	if richtext.LooksLikeHTML(stored) {
		stored = richtext.ToMarkdown(stored)
	}
	return r.render(stored, width)
}

// render converts markdown into ANSI text, falling back to the raw input on error.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}

	wrapWidth := max(width, minMarkdownWrap)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}

	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}
