package contestwizard

import (
	"os"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/editor"

	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/logger"
	"github.com/mark3labs/contestr/internal/tui/theme"
)

// FieldWriter stores one field value.
type FieldWriter func(section, field string, value any) error

type formField struct {
	def   draft.Field
	input textinput.Model // unused for bool and enum fields
	flag  bool
	enum  string
}

func (f *formField) usesInput() bool {
	return f.def.Kind != draft.KindBool && f.def.Kind != draft.KindEnum
}

// FormStep edits the fields of one draft section, laid out from the schema.
type FormStep struct {
	section string
	fields  []*formField
	focus   int
	errors  map[string]string
	write   FieldWriter
	width   int
	height  int
}

// NewFormStep creates a form for section populated from d.
func NewFormStep(section string, d draft.Draft, write FieldWriter) *FormStep {
	defs, _ := draft.Fields(section)
	s := &FormStep{
		section: section,
		errors:  map[string]string{},
		write:   write,
		width:   60,
	}
	for _, def := range defs {
		f := &formField{def: def}
		if f.usesInput() {
			f.input = newInput(placeholder(def), 50)
		}
		s.fields = append(s.fields, f)
	}
	s.Load(d)
	return s
}

func placeholder(def draft.Field) string {
	switch {
	case def.Hint != "":
		return def.Hint
	case def.Name == draft.FieldGuidelines:
		return "ctrl+e opens $EDITOR"
	default:
		return ""
	}
}

// Load replaces the displayed values with those in d.
func (s *FormStep) Load(d draft.Draft) {
	for _, f := range s.fields {
		switch f.def.Kind {
		case draft.KindBool:
			f.flag = d.Bool(s.section, f.def.Name)
		case draft.KindEnum:
			f.enum = d.Text(s.section, f.def.Name)
		default:
			f.input.SetValue(d.Text(s.section, f.def.Name))
		}
	}
}

// Init focuses the first field.
func (s *FormStep) Init() tea.Cmd {
	return s.Focus()
}

// Focus gives focus to the first field.
func (s *FormStep) Focus() tea.Cmd {
	return s.focusIndex(0)
}

// FocusLast gives focus to the last field.
func (s *FormStep) FocusLast() tea.Cmd {
	return s.focusIndex(len(s.fields) - 1)
}

// Blur removes focus from all inputs.
func (s *FormStep) Blur() {
	for _, f := range s.fields {
		if f.usesInput() {
			f.input.Blur()
		}
	}
}

func (s *FormStep) focusIndex(i int) tea.Cmd {
	if i < 0 || i >= len(s.fields) {
		return nil
	}
	s.Blur()
	s.focus = i
	if f := s.fields[i]; f.usesInput() {
		return f.input.Focus()
	}
	return nil
}

// SetSize updates the dimensions for the form.
func (s *FormStep) SetSize(width, height int) {
	s.width = width
	s.height = height
	for _, f := range s.fields {
		if f.usesInput() {
			f.input.SetWidth(width - 10)
		}
	}
}

// SetErrors shows validation problems next to their fields.
func (s *FormStep) SetErrors(problems []draft.Problem) {
	s.errors = map[string]string{}
	first := -1
	for _, p := range problems {
		if p.Section != s.section {
			continue
		}
		s.errors[p.Field] = p.Reason
		for i, f := range s.fields {
			if f.def.Name == p.Field && (first == -1 || i < first) {
				first = i
			}
		}
	}
	if first >= 0 {
		s.focusIndex(first)
	}
}

// Focused returns the name of the focused field.
func (s *FormStep) Focused() string {
	if s.focus < 0 || s.focus >= len(s.fields) {
		return ""
	}
	return s.fields[s.focus].def.Name
}

// Update handles messages for the form.
func (s *FormStep) Update(msg tea.Msg) tea.Cmd {
	if len(s.fields) == 0 {
		return nil
	}
	f := s.fields[s.focus]

	if keyMsg, ok := msg.(tea.KeyPressMsg); ok {
		switch keyMsg.String() {
		case "tab", "down", "enter":
			if s.focus == len(s.fields)-1 {
				if keyMsg.String() == "down" {
					return nil
				}
				return func() tea.Msg { return TabExitForwardMsg{} }
			}
			return s.focusIndex(s.focus + 1)

		case "shift+tab", "up":
			if s.focus == 0 {
				if keyMsg.String() == "up" {
					return nil
				}
				return func() tea.Msg { return TabExitBackwardMsg{} }
			}
			return s.focusIndex(s.focus - 1)

		case "ctrl+e":
			if f.def.Name == draft.FieldGuidelines {
				return s.openEditor(f.input.Value())
			}
		}

		switch f.def.Kind {
		case draft.KindBool:
			switch keyMsg.String() {
			case "space", " ", "x", "left", "right":
				f.flag = !f.flag
				s.store(f, f.flag)
			}
			return nil
		case draft.KindEnum:
			switch keyMsg.String() {
			case "space", " ", "right":
				f.enum = cycle(f.def.Enum, f.enum, 1)
				s.store(f, f.enum)
			case "left":
				f.enum = cycle(f.def.Enum, f.enum, -1)
				s.store(f, f.enum)
			}
			return nil
		}
	}

	if !f.usesInput() {
		return nil
	}
	before := f.input.Value()
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	if after := f.input.Value(); after != before {
		s.store(f, after)
	}
	return cmd
}

func (s *FormStep) store(f *formField, value any) {
	delete(s.errors, f.def.Name)
	if s.write == nil {
		return
	}
	if err := s.write(s.section, f.def.Name, value); err != nil {
		logger.Error("form: writing %s.%s: %v", s.section, f.def.Name, err)
	}
}

// cycle steps through the enum values with "" as the unset position.
func cycle(values []string, current string, delta int) string {
	options := append([]string{""}, values...)
	idx := 0
	for i, v := range options {
		if v == current {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(options)) % len(options)
	return options[idx]
}

// openEditor launches $EDITOR on the guidelines text.
func (s *FormStep) openEditor(content string) tea.Cmd {
	tmpfile, err := os.CreateTemp("", "contestr_guidelines_*.md")
	if err != nil {
		return nil
	}
	if _, err := tmpfile.WriteString(content); err != nil {
		_ = tmpfile.Close()
		_ = os.Remove(tmpfile.Name())
		return nil
	}
	_ = tmpfile.Close()

	cmd, err := editor.Command("contestr", tmpfile.Name())
	if err != nil {
		_ = os.Remove(tmpfile.Name())
		return nil
	}

	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		defer func() { _ = os.Remove(tmpfile.Name()) }()
		if err != nil {
			logger.Warn("form: editor exited with %v", err)
			return nil
		}
		content, err := os.ReadFile(tmpfile.Name())
		if err != nil {
			return nil
		}
		return GuidelinesEditedMsg{Content: strings.TrimRight(string(content), "\n")}
	})
}

// View renders the form.
func (s *FormStep) View() string {
	st := theme.Current().S()

	rows := make([]string, 0, len(s.fields)*2)
	for i, f := range s.fields {
		label := f.def.Label
		if f.def.Required {
			label += " *"
		}
		labelStyle := st.Label
		marker := "  "
		if i == s.focus {
			labelStyle = st.FocusedLabel
			marker = "› "
		}

		var value string
		switch f.def.Kind {
		case draft.KindBool:
			value = "[ ]"
			if f.flag {
				value = "[x]"
			}
		case draft.KindEnum:
			value = f.enum
			if value == "" {
				value = st.Hint.Render("not set")
			}
			value = "‹ " + value + " ›"
		default:
			value = f.input.View()
		}

		line := lipgloss.JoinHorizontal(lipgloss.Top,
			marker,
			labelStyle.Width(22).Render(label),
			value,
		)
		rows = append(rows, line)
		if reason, ok := s.errors[f.def.Name]; ok {
			rows = append(rows, strings.Repeat(" ", 24)+st.Error.Render("✗ "+reason))
		}
	}

	var hints []string
	switch s.fields[s.focus].def.Kind {
	case draft.KindBool:
		hints = append(hints, "space", "toggle")
	case draft.KindEnum:
		hints = append(hints, "←→", "choose")
	}
	if s.Focused() == draft.FieldGuidelines && os.Getenv("EDITOR") != "" {
		hints = append(hints, "ctrl+e", "edit")
	}
	hints = append(hints, "↑↓", "navigate", "ctrl+s", "next", "ctrl+z", "undo", "esc", "back")

	return lipgloss.JoinVertical(lipgloss.Left,
		strings.Join(rows, "\n"),
		"",
		renderHintBar(hints...),
	)
}
