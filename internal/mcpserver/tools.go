package mcpserver

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mark3labs/contestr/internal/draft"
)

// registerTools adds the wizard tools to the MCP server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("contest-status",
			mcp.WithDescription("Show the current wizard step, the submission state and every field of the contest draft"),
		),
		s.handleStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("contest-update-field",
			mcp.WithDescription("Set one field of the contest draft. Values are checked when leaving a step.\n\n"+fieldReference()),
			mcp.WithString("section", mcp.Required(),
				mcp.Description("Section of the field"),
				mcp.Enum(draft.Sections()...),
			),
			mcp.WithString("field", mcp.Required(),
				mcp.Description("Field name within the section"),
			),
			mcp.WithString("value",
				mcp.Description("New value. Booleans are true or false"),
			),
			mcp.WithArray("items",
				mcp.Description("New value for list fields such as sectionTitles"),
				mcp.WithStringItems(),
			),
		),
		s.handleUpdateField,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("contest-next-step",
			mcp.WithDescription("Validate the current step and move to the next one. Leaving the configuration step saves the contest and issues its access token"),
		),
		s.handleNextStep,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("contest-previous-step",
			mcp.WithDescription("Move back one step"),
		),
		s.handlePreviousStep,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("contest-undo",
			mcp.WithDescription("Revert the last field change"),
		),
		s.handleUndo,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("contest-submit-final",
			mcp.WithDescription("Validate the section details and complete the contest"),
		),
		s.handleSubmitFinal,
	)
}

// fieldReference lists every field with its kind for tool descriptions.
func fieldReference() string {
	var b strings.Builder
	b.WriteString("Fields:\n")
	for _, section := range draft.Sections() {
		fields, _ := draft.Fields(section)
		for _, f := range fields {
			fmt.Fprintf(&b, "- %s.%s (%s", section, f.Name, f.Kind)
			if f.Required {
				b.WriteString(", required")
			}
			if len(f.Enum) > 0 {
				fmt.Fprintf(&b, ", one of %s", strings.Join(f.Enum, "|"))
			}
			if f.Hint != "" {
				fmt.Fprintf(&b, ", e.g. %s", f.Hint)
			}
			b.WriteString(")\n")
		}
	}
	return b.String()
}
