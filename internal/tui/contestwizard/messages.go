package contestwizard

import "github.com/mark3labs/contestr/internal/draft"

// StepResultMsg reports the outcome of leaving a step.
type StepResultMsg struct {
	From draft.Step
	Err  error
}

// FinalResultMsg reports the outcome of submitting the last step.
type FinalResultMsg struct {
	Path string
	Err  error
}

// NavigateMsg is sent by the Router when the controller asks to navigate.
type NavigateMsg struct {
	Destination string
}

// GuidelinesEditedMsg carries the guidelines after editing in $EDITOR.
type GuidelinesEditedMsg struct {
	Content string
}

// TabExitForwardMsg is sent when tab leaves the last input of a step.
type TabExitForwardMsg struct{}

// TabExitBackwardMsg is sent when shift+tab leaves the first input of a step.
type TabExitBackwardMsg struct{}
