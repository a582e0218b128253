package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/gateway"
	"github.com/mark3labs/contestr/internal/wizard"
)

// statusView is the JSON shape returned by contest-status.
type statusView struct {
	Step      int            `json:"step"`
	StepName  string         `json:"stepName"`
	Pending   bool           `json:"pending"`
	Completed bool           `json:"completed"`
	ContestID string         `json:"contestId,omitempty"`
	Draft     map[string]any `json:"draft"`
}

// handleStatus reports the wizard state.
func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.ctrl.Status()
	output, err := json.MarshalIndent(statusView{
		Step:      int(st.Cursor),
		StepName:  st.Cursor.String(),
		Pending:   st.Pending,
		Completed: st.Completed,
		ContestID: st.ContestID,
		Draft:     st.Draft.Map(),
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: failed to marshal status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(output)), nil
}

// handleUpdateField writes one draft field.
func (s *Server) handleUpdateField(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultText("error: no arguments provided"), nil
	}

	section, ok := args["section"].(string)
	if !ok || section == "" {
		return mcp.NewToolResultText("error: missing or invalid 'section' parameter"), nil
	}
	field, ok := args["field"].(string)
	if !ok || field == "" {
		return mcp.NewToolResultText("error: missing or invalid 'field' parameter"), nil
	}

	canonical, f, err := draft.Lookup(section, field)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
	}

	value, msg := fieldValue(f, args)
	if msg != "" {
		return mcp.NewToolResultText("error: " + msg), nil
	}

	if err := s.ctrl.UpdateField(canonical, f.Name, value); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Updated %s.%s", canonical, f.Name)), nil
}

// fieldValue converts tool arguments into the value stored for f.
func fieldValue(f draft.Field, args map[string]any) (any, string) {
	if f.Kind == draft.KindList {
		raw, ok := args["items"].([]any)
		if !ok {
			return nil, fmt.Sprintf("'items' is required for %s", f.Name)
		}
		items := make([]string, 0, len(raw))
		for i, item := range raw {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Sprintf("item %d is not a string", i)
			}
			items = append(items, s)
		}
		return items, ""
	}

	raw, present := args["value"]
	if !present {
		return nil, fmt.Sprintf("'value' is required for %s", f.Name)
	}

	if f.Kind == draft.KindBool {
		switch v := raw.(type) {
		case bool:
			return v, ""
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Sprintf("%s must be true or false", f.Name)
			}
			return b, ""
		default:
			return nil, fmt.Sprintf("%s must be true or false", f.Name)
		}
	}

	switch v := raw.(type) {
	case string:
		return v, ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), ""
	default:
		return nil, fmt.Sprintf("'value' for %s must be a string", f.Name)
	}
}

// handleNextStep advances the wizard.
func (s *Server) handleNextStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from := s.ctrl.Cursor()
	if err := s.ctrl.GoToNextStep(ctx); err != nil {
		return mcp.NewToolResultText(describeError(err)), nil
	}

	to := s.ctrl.Cursor()
	if from == draft.StepConfiguration {
		if handle, ok := s.ctrl.Handle(); ok {
			return mcp.NewToolResultText(fmt.Sprintf("Contest %s saved. Now on step %d (%s)", handle.ContestID, to, to)), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("Now on step %d (%s)", to, to)), nil
}

// handlePreviousStep moves the wizard back.
func (s *Server) handlePreviousStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ctrl.GoToPreviousStep(); err != nil {
		return mcp.NewToolResultText(describeError(err)), nil
	}
	to := s.ctrl.Cursor()
	return mcp.NewToolResultText(fmt.Sprintf("Now on step %d (%s)", to, to)), nil
}

// handleUndo reverts the last field change.
func (s *Server) handleUndo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.ctrl.Undo() {
		return mcp.NewToolResultText("Nothing to undo"), nil
	}
	return mcp.NewToolResultText("Reverted last change"), nil
}

// handleSubmitFinal completes the contest.
func (s *Server) handleSubmitFinal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ctrl.SubmitFinal(ctx); err != nil {
		return mcp.NewToolResultText(describeError(err)), nil
	}
	handle, _ := s.ctrl.Handle()
	return mcp.NewToolResultText(fmt.Sprintf("Contest %s completed", handle.ContestID)), nil
}

// describeError renders controller errors for the calling agent.
func describeError(err error) string {
	var verr *draft.ValidationError
	if errors.As(err, &verr) {
		lines := []string{fmt.Sprintf("error: %s step is incomplete:", verr.Step)}
		for _, p := range verr.Problems {
			lines = append(lines, fmt.Sprintf("- %s.%s: %s", p.Section, p.Field, p.Reason))
		}
		return strings.Join(lines, "\n")
	}

	var subErr *gateway.SubmissionError
	if errors.As(err, &subErr) {
		msg := fmt.Sprintf("error: submission failed during %s: %v", subErr.Phase, subErr.Err)
		if subErr.Orphaned() {
			msg += fmt.Sprintf("\ncontest %s was saved without a usable token; retrying creates a new contest", subErr.ContestID)
		}
		return msg
	}

	switch {
	case errors.Is(err, wizard.ErrSubmissionInFlight):
		return "error: a submission is still in progress"
	case errors.Is(err, wizard.ErrLastStep):
		return "error: already on the last step; use contest-submit-final"
	case errors.Is(err, wizard.ErrNotOnFinalStep):
		return "error: contest-submit-final is only available on the section details step"
	}
	return fmt.Sprintf("error: %v", err)
}
