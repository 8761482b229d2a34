package ui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// RenderMarkdown renders markdown through glamour, word-wrapped to the
// terminal. Agents and colorless terminals get the raw markdown back; so
// does any rendering failure.
func RenderMarkdown(markdown string) string {
	if IsAgentMode() {
		return markdown
	}
	if !ShouldUseColor() {
		return markdown
	}

	// Cap the wrap width: overlong lines are hard to read even on wide
	// terminals.
	const maxReadableWidth = 100
	wrapWidth := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		wrapWidth = w
	}
	if wrapWidth > maxReadableWidth {
		wrapWidth = maxReadableWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}
