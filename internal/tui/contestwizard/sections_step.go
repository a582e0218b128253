package contestwizard

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/logger"
	"github.com/mark3labs/contestr/internal/tui/theme"
)

// SectionsStep edits the ordered list of section titles. The cursor ranges
// over the titles plus the input row at the end.
type SectionsStep struct {
	titles   []string
	input    textinput.Model
	cursor   int
	err      string
	expected int
	write    FieldWriter
	width    int
}

// NewSectionsStep creates the step from d. The configured section count is
// shown as a target.
func NewSectionsStep(d draft.Draft, write FieldWriter) *SectionsStep {
	s := &SectionsStep{
		input: newInput("Section title, enter to add", 50),
		write: write,
		width: 60,
	}
	s.Load(d)
	return s
}

// Load replaces the displayed titles with those in d.
func (s *SectionsStep) Load(d draft.Draft) {
	s.titles = d.SectionTitles()
	s.expected = 0
	if n, err := fmt.Sscanf(d.Text(draft.SectionConfiguration, draft.FieldSections), "%d", &s.expected); n != 1 || err != nil {
		s.expected = 0
	}
	if s.cursor > len(s.titles) {
		s.cursor = len(s.titles)
	}
}

// Titles returns the titles currently shown.
func (s *SectionsStep) Titles() []string {
	return append([]string(nil), s.titles...)
}

// Init focuses the input row.
func (s *SectionsStep) Init() tea.Cmd {
	return s.Focus()
}

// Focus moves the cursor to the input row.
func (s *SectionsStep) Focus() tea.Cmd {
	s.cursor = len(s.titles)
	return s.input.Focus()
}

// FocusLast is the same as Focus; the input row is the last row.
func (s *SectionsStep) FocusLast() tea.Cmd {
	return s.Focus()
}

// Blur removes focus from the input.
func (s *SectionsStep) Blur() {
	s.input.Blur()
}

// SetSize updates the dimensions for the step.
func (s *SectionsStep) SetSize(width, height int) {
	s.width = width
	s.input.SetWidth(width - 10)
}

// SetErrors shows the section titles problem, if any.
func (s *SectionsStep) SetErrors(problems []draft.Problem) {
	s.err = ""
	for _, p := range problems {
		if p.Field == draft.FieldSectionTitles {
			s.err = p.Reason
		}
	}
}

func (s *SectionsStep) onInput() bool {
	return s.cursor == len(s.titles)
}

// Update handles messages for the step.
func (s *SectionsStep) Update(msg tea.Msg) tea.Cmd {
	if keyMsg, ok := msg.(tea.KeyPressMsg); ok {
		switch keyMsg.String() {
		case "tab":
			return func() tea.Msg { return TabExitForwardMsg{} }
		case "shift+tab":
			return func() tea.Msg { return TabExitBackwardMsg{} }
		case "up":
			if s.cursor > 0 {
				s.cursor--
				s.input.Blur()
			}
			return nil
		case "down":
			if s.cursor < len(s.titles) {
				s.cursor++
				if s.onInput() {
					return s.input.Focus()
				}
			}
			return nil
		case "enter":
			if !s.onInput() {
				return nil
			}
			title := strings.TrimSpace(s.input.Value())
			if title == "" {
				return nil
			}
			s.titles = append(s.titles, title)
			s.input.SetValue("")
			s.cursor = len(s.titles)
			s.store()
			return nil
		case "ctrl+d", "delete":
			if s.onInput() || len(s.titles) == 0 {
				break
			}
			s.titles = append(s.titles[:s.cursor], s.titles[s.cursor+1:]...)
			s.store()
			if s.onInput() {
				return s.input.Focus()
			}
			return nil
		case "alt+up":
			if !s.onInput() && s.cursor > 0 {
				s.titles[s.cursor-1], s.titles[s.cursor] = s.titles[s.cursor], s.titles[s.cursor-1]
				s.cursor--
				s.store()
			}
			return nil
		case "alt+down":
			if !s.onInput() && s.cursor < len(s.titles)-1 {
				s.titles[s.cursor+1], s.titles[s.cursor] = s.titles[s.cursor], s.titles[s.cursor+1]
				s.cursor++
				s.store()
			}
			return nil
		}
	}

	if !s.onInput() {
		return nil
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

func (s *SectionsStep) store() {
	s.err = ""
	if s.write == nil {
		return
	}
	if err := s.write(draft.SectionDetails, draft.FieldSectionTitles, s.Titles()); err != nil {
		logger.Error("sections: writing titles: %v", err)
	}
}

// View renders the step.
func (s *SectionsStep) View() string {
	st := theme.Current().S()

	heading := "Section titles"
	if s.expected > 0 {
		heading = fmt.Sprintf("Section titles (%d of %d)", len(s.titles), s.expected)
	}

	rows := []string{st.Label.Render(heading), ""}
	if len(s.titles) == 0 {
		rows = append(rows, st.Hint.Render("  No sections yet"))
	}
	for i, title := range s.titles {
		line := fmt.Sprintf("%d. %s", i+1, title)
		if i == s.cursor {
			rows = append(rows, st.FocusedLabel.Render("› "+line))
		} else {
			rows = append(rows, "  "+line)
		}
	}

	marker := "  "
	if s.onInput() {
		marker = "› "
	}
	rows = append(rows, "", marker+s.input.View())

	if s.err != "" {
		rows = append(rows, st.Error.Render("✗ "+s.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		strings.Join(rows, "\n"),
		"",
		renderHintBar("enter", "add", "ctrl+d", "remove", "alt+↑↓", "reorder", "ctrl+s", "finish", "esc", "back"),
	)
}
