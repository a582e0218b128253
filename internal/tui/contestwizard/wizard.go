// Package contestwizard is the terminal front end of the contest wizard.
package contestwizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"

	"github.com/mark3labs/contestr/internal/archive"
	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/gateway"
	"github.com/mark3labs/contestr/internal/logger"
	"github.com/mark3labs/contestr/internal/tui/theme"
	"github.com/mark3labs/contestr/internal/wizard"
)

// ErrCancelled is returned by Run when the host leaves before completing.
var ErrCancelled = errors.New("wizard cancelled by user")

// ProgramSender is the subset of tea.Program used to deliver messages from
// outside the update loop.
type ProgramSender interface {
	Send(tea.Msg)
}

// Router adapts the running program to wizard.Navigator.
type Router struct {
	mu     sync.Mutex
	sender ProgramSender
}

// NewRouter returns a router with no program attached.
func NewRouter() *Router {
	return &Router{}
}

// Attach sets the program navigation messages go to.
func (r *Router) Attach(s ProgramSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = s
}

// Navigate forwards destination to the program as a NavigateMsg.
func (r *Router) Navigate(destination string) {
	r.mu.Lock()
	sender := r.sender
	r.mu.Unlock()
	if sender == nil {
		return
	}
	sender.Send(NavigateMsg{Destination: destination})
}

// step is the subset shared by the form and sections steps.
type step interface {
	Init() tea.Cmd
	Update(tea.Msg) tea.Cmd
	View() string
	Focus() tea.Cmd
	FocusLast() tea.Cmd
	Blur()
	SetSize(width, height int)
	SetErrors([]draft.Problem)
	Load(draft.Draft)
}

// Result is what Run returns after the program exits.
type Result struct {
	Handle      gateway.ContestHandle
	Issued      bool
	Completed   bool
	ArchivePath string
}

// Model is the bubbletea model driving a wizard.Controller.
type Model struct {
	ctx       context.Context
	ctrl      *wizard.Controller
	archive   *archive.Archive
	width     int
	height    int
	cancelled bool

	steps      map[draft.Step]step
	completion *CompletionStep
	archived   string

	buttonBar     *ButtonBar
	buttonFocused bool

	busy   bool
	notice string

	showError  bool
	errorTitle string
	errorText  string
}

// New creates the model. arc may be nil.
func New(ctx context.Context, ctrl *wizard.Controller, arc *archive.Archive) *Model {
	m := &Model{
		ctx:     ctx,
		ctrl:    ctrl,
		archive: arc,
		steps:   map[draft.Step]step{},
	}
	write := FieldWriter(ctrl.UpdateField)
	d := ctrl.Draft()
	m.steps[draft.StepOverview] = NewFormStep(draft.SectionOverview, d, write)
	m.steps[draft.StepConfiguration] = NewFormStep(draft.SectionConfiguration, d, write)
	m.steps[draft.StepSectionDetails] = NewSectionsStep(d, write)
	return m
}

// Run starts a standalone program for ctrl. router, if not nil, must be the
// navigator the controller was built with.
func Run(ctx context.Context, ctrl *wizard.Controller, arc *archive.Archive, router *Router) (*Result, error) {
	m := New(ctx, ctrl, arc)

	p := tea.NewProgram(m, tea.WithContext(ctx))
	if router != nil {
		router.Attach(p)
		defer router.Attach(nil)
	}

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}
	wm, ok := finalModel.(*Model)
	if !ok {
		return nil, fmt.Errorf("unexpected model type")
	}

	res := wm.Result()
	if !res.Completed {
		return res, ErrCancelled
	}
	return res, nil
}

// Result summarises the wizard state.
func (m *Model) Result() *Result {
	handle, issued := m.ctrl.Handle()
	return &Result{
		Handle:      handle,
		Issued:      issued,
		Completed:   m.ctrl.Completed(),
		ArchivePath: m.archived,
	}
}

func (m *Model) current() step {
	return m.steps[m.ctrl.Cursor()]
}

// Init focuses the first step.
func (m *Model) Init() tea.Cmd {
	return m.current().Init()
}

// Update handles messages for the wizard.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			m.cancelled = true
			return m, tea.Quit
		}

		if m.showError {
			switch msg.String() {
			case "r", "R", "y", "Y":
				m.showError = false
				return m, m.next()
			case "n", "N", "esc", "enter":
				m.showError = false
			}
			return m, nil
		}

		if m.completion != nil {
			switch msg.String() {
			case "enter", "q", "esc":
				return m, tea.Quit
			}
			return m, m.completion.Update(msg)
		}

		if m.busy {
			return m, nil
		}

		if m.buttonFocused {
			m.ensureButtonBar()
			switch msg.String() {
			case "tab", "right":
				if !m.buttonBar.FocusNext() {
					m.focusContent(false)
					return m, m.current().Focus()
				}
				return m, nil
			case "shift+tab", "left":
				if !m.buttonBar.FocusPrev() {
					m.focusContent(false)
					return m, m.current().FocusLast()
				}
				return m, nil
			case "enter", "space", " ":
				return m.activateButton(m.buttonBar.FocusedButton())
			}
		}

		switch msg.String() {
		case "esc":
			if m.ctrl.Cursor() == draft.FirstStep {
				m.cancelled = true
				return m, tea.Quit
			}
			return m, m.back()
		case "ctrl+s", "ctrl+n":
			return m, m.next()
		case "ctrl+z":
			if m.ctrl.Undo() {
				d := m.ctrl.Draft()
				for _, s := range m.steps {
					s.Load(d)
				}
				m.notice = "Reverted last change"
			}
			return m, nil
		}

		if m.buttonFocused {
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateSizes()
		return m, nil

	case TabExitForwardMsg:
		m.focusButtons(true)
		return m, nil

	case TabExitBackwardMsg:
		m.focusButtons(false)
		return m, nil

	case GuidelinesEditedMsg:
		if err := m.ctrl.UpdateField(draft.SectionOverview, draft.FieldGuidelines, msg.Content); err != nil {
			logger.Error("wizard: storing guidelines: %v", err)
		}
		m.steps[draft.StepOverview].Load(m.ctrl.Draft())
		return m, nil

	case NavigateMsg:
		logger.Debug("wizard: navigate to %s", msg.Destination)
		if msg.Destination == wizard.DestinationSectionDetails {
			if handle, ok := m.ctrl.Handle(); ok {
				m.notice = "Contest " + handle.ContestID + " saved"
			}
		}
		return m, nil

	case StepResultMsg:
		m.busy = false
		m.buttonBar = nil
		return m, m.handleStepResult(msg)

	case FinalResultMsg:
		m.busy = false
		m.buttonBar = nil
		return m, m.handleFinalResult(msg)
	}

	if m.completion != nil {
		return m, m.completion.Update(msg)
	}
	return m, m.current().Update(msg)
}

func (m *Model) handleStepResult(msg StepResultMsg) tea.Cmd {
	var verr *draft.ValidationError
	var subErr *gateway.SubmissionError

	switch {
	case msg.Err == nil:
		m.focusContent(true)
		next := m.current()
		next.Load(m.ctrl.Draft())
		next.SetErrors(nil)
		return next.Init()

	case errors.As(msg.Err, &verr):
		m.focusContent(true)
		m.current().SetErrors(verr.Problems)
		m.notice = ""
		return nil

	case errors.As(msg.Err, &subErr):
		m.errorTitle = "⚠ Contest could not be created"
		m.errorText = submissionMessage(subErr)
		m.showError = true
		return nil

	case errors.Is(msg.Err, wizard.ErrSubmissionInFlight):
		m.notice = "Still saving, please wait"
		return nil

	default:
		m.errorTitle = "⚠ Something went wrong"
		m.errorText = msg.Err.Error()
		m.showError = true
		return nil
	}
}

func (m *Model) handleFinalResult(msg FinalResultMsg) tea.Cmd {
	var verr *draft.ValidationError
	switch {
	case msg.Err == nil:
		m.archived = msg.Path
		handle, _ := m.ctrl.Handle()
		submitted, _ := m.ctrl.SubmittedDraft()
		record := archive.NewRecord(wizard.Completion{
			Handle:      handle,
			Submitted:   submitted,
			Final:       m.ctrl.Draft(),
			CompletedAt: time.Now(),
		})
		m.completion = NewCompletionStep(record, msg.Path)
		m.updateSizes()
		return nil

	case errors.As(msg.Err, &verr):
		m.focusContent(true)
		m.current().SetErrors(verr.Problems)
		return nil

	default:
		m.errorTitle = "⚠ Contest could not be finalized"
		m.errorText = msg.Err.Error()
		m.showError = true
		return nil
	}
}

func submissionMessage(err *gateway.SubmissionError) string {
	var b strings.Builder
	switch {
	case errors.Is(err, gateway.ErrPersistence):
		b.WriteString("The contest could not be saved.")
	case errors.Is(err, gateway.ErrTokenIssuance):
		b.WriteString("The contest was saved but no access token was issued.")
	case errors.Is(err, gateway.ErrTokenStorage):
		b.WriteString("The access token could not be stored on this machine.")
	}
	fmt.Fprintf(&b, "\n\n%v", err.Err)
	if err.Orphaned() {
		fmt.Fprintf(&b, "\n\nContest %s is listed by `contestr orphans`. Retrying creates a new contest.", err.ContestID)
	}
	return b.String()
}

// next leaves the current step, or completes the wizard on the last one.
func (m *Model) next() tea.Cmd {
	ctx := m.ctx
	ctrl := m.ctrl
	from := ctrl.Cursor()
	m.busy = true
	m.notice = ""
	m.buttonBar = nil

	if from == draft.LastStep {
		arc := m.archive
		return func() tea.Msg {
			if err := ctrl.SubmitFinal(ctx); err != nil {
				return FinalResultMsg{Err: err}
			}
			var path string
			if arc != nil {
				handle, _ := ctrl.Handle()
				path = arc.PathFor(wizard.Completion{Handle: handle, Final: ctrl.Draft()})
			}
			return FinalResultMsg{Path: path}
		}
	}

	return func() tea.Msg {
		return StepResultMsg{From: from, Err: ctrl.GoToNextStep(ctx)}
	}
}

func (m *Model) back() tea.Cmd {
	if err := m.ctrl.GoToPreviousStep(); err != nil {
		m.notice = "Still saving, please wait"
		return nil
	}
	m.buttonBar = nil
	m.focusContent(true)
	m.notice = ""
	return m.current().Focus()
}

func (m *Model) activateButton(id ButtonID) (tea.Model, tea.Cmd) {
	switch id {
	case ButtonCancel:
		m.cancelled = true
		return m, tea.Quit
	case ButtonBack:
		return m, m.back()
	case ButtonNext:
		return m, m.next()
	}
	return m, nil
}

func (m *Model) ensureButtonBar() {
	if m.buttonBar != nil {
		return
	}
	cursor := m.ctrl.Cursor()
	m.buttonBar = NewButtonBar(buttonsFor(cursor == draft.FirstStep, cursor == draft.LastStep, m.busy))
	w, _ := m.contentSize()
	m.buttonBar.SetWidth(w)
}

func (m *Model) focusButtons(first bool) {
	m.buttonFocused = true
	m.current().Blur()
	m.ensureButtonBar()
	if first {
		m.buttonBar.FocusFirst()
	} else {
		m.buttonBar.FocusLast()
	}
}

func (m *Model) focusContent(reset bool) {
	m.buttonFocused = false
	if m.buttonBar != nil {
		m.buttonBar.Blur()
	}
	if reset {
		m.buttonBar = nil
	}
}

func (m *Model) contentSize() (int, int) {
	w := m.width - 10
	if w < 60 {
		w = 60
	}
	if w > 100 {
		w = 100
	}
	h := m.height - 10
	if h < 10 {
		h = 10
	}
	return w, h
}

func (m *Model) updateSizes() {
	w, h := m.contentSize()
	for _, s := range m.steps {
		s.SetSize(w, h)
	}
	if m.completion != nil {
		m.completion.SetSize(w, h)
	}
	if m.buttonBar != nil {
		m.buttonBar.SetWidth(w)
	}
}

// View renders the wizard.
func (m *Model) View() tea.View {
	var view tea.View
	view.AltScreen = true

	if m.width == 0 || m.height == 0 {
		view.Content = lipgloss.NewLayer("")
		return view
	}

	centered := lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.render())

	canvas := uv.NewScreenBuffer(m.width, m.height)
	uv.NewStyledString(centered).Draw(canvas, uv.Rectangle{
		Min: uv.Position{X: 0, Y: 0},
		Max: uv.Position{X: m.width, Y: m.height},
	})

	view.Content = lipgloss.NewLayer(canvas.Render())
	return view
}

var stepTitles = map[draft.Step]string{
	draft.StepOverview:       "Overview",
	draft.StepConfiguration:  "Test configuration",
	draft.StepSectionDetails: "Section details",
}

// render builds the modal content without the screen placement.
func (m *Model) render() string {
	t := theme.Current()
	st := t.S()
	w, _ := m.contentSize()

	if m.showError {
		return m.renderErrorModal()
	}

	if m.completion != nil {
		return st.ModalContainer.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			st.ModalTitle.Render("New contest - Complete"),
			"",
			m.completion.View(),
		))
	}

	cursor := m.ctrl.Cursor()
	title := fmt.Sprintf("New contest - Step %d of %d: %s", cursor, draft.LastStep, stepTitles[cursor])

	parts := []string{st.ModalTitle.Render(title), "", m.current().View()}

	switch {
	case m.busy && cursor == draft.StepConfiguration:
		parts = append(parts, "", st.Hint.Render("Saving contest and requesting access token..."))
	case m.busy:
		parts = append(parts, "", st.Hint.Render("Checking..."))
	case m.notice != "":
		parts = append(parts, "", st.Success.Render(m.notice))
	}

	m.ensureButtonBar()
	parts = append(parts, "", m.buttonBar.Render())

	return st.ModalContainer.Width(w).Render(strings.Join(parts, "\n"))
}

func (m *Model) renderErrorModal() string {
	t := theme.Current()

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(t.Error)).
		MarginBottom(1).
		Render(m.errorTitle)

	message := lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.FgBase)).
		Width(54).
		Render(m.errorText)

	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color(t.FgMuted)).
		Render("Press R to retry, ESC to go back to the form")

	return lipgloss.NewStyle().
		Width(60).
		Padding(2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.Error)).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, message, "", hint))
}
