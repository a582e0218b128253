package archive

import (
	"strings"

	"charm.land/glamour/v2"
)

// MaxRenderWidth caps the rendered summary width.
const MaxRenderWidth = 120

// Render renders markdown for the terminal. It falls back to the raw text if
// glamour fails.
func Render(markdown string, width int) string {
	if width <= 0 || width > MaxRenderWidth {
		width = MaxRenderWidth
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}

	rendered, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimSuffix(rendered, "\n")
}
