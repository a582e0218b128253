package contestwizard

import (
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/mark3labs/contestr/internal/archive"
	"github.com/mark3labs/contestr/internal/tui/theme"
)

// CompletionStep shows the summary of the completed contest.
type CompletionStep struct {
	record   *archive.Record
	path     string
	viewport viewport.Model
	width    int
	height   int
}

// NewCompletionStep creates the summary view for record. path is where the
// record was archived, empty when archiving is disabled.
func NewCompletionStep(record *archive.Record, path string) *CompletionStep {
	c := &CompletionStep{
		record:   record,
		path:     path,
		viewport: viewport.New(),
	}
	c.SetSize(80, 20)
	return c
}

// SetSize updates the dimensions and re-renders the summary.
func (c *CompletionStep) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.viewport.SetWidth(width)
	c.viewport.SetHeight(max(height-4, 5))
	c.viewport.SetContent(archive.Render(c.record.Markdown(), width))
}

// Update scrolls the summary.
func (c *CompletionStep) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	c.viewport, cmd = c.viewport.Update(msg)
	return cmd
}

// View renders the summary.
func (c *CompletionStep) View() string {
	st := theme.Current().S()

	header := st.Success.Render("✓ Contest " + c.record.ContestID + " created")
	if c.path != "" {
		header += "\n" + st.Hint.Render("Saved to "+c.path)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		c.viewport.View(),
		"",
		renderHintBar("↑↓", "scroll", "enter", "exit"),
	)
}
