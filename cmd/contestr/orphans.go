package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/mark3labs/contestr/internal/journal"
	"github.com/mark3labs/contestr/internal/tui/theme"
)

var orphansFlags struct {
	json bool
	all  bool
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List contests saved on the backend without a usable token",
	Long: `List contests that were saved on the backend but whose access token was
never issued or could not be stored locally. These contests cannot be
reached by the host and have to be cleaned up on the backend.

Use --all to list every journaled contest.`,
	RunE: runOrphans,
}

func init() {
	orphansCmd.Flags().BoolVar(&orphansFlags.json, "json", false, "Print contests as JSON")
	orphansCmd.Flags().BoolVar(&orphansFlags.all, "all", false, "List every journaled contest")
}

func runOrphans(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	var contests []*journal.Contest
	if orphansFlags.all {
		contests, err = rt.journal.LoadContests(ctx)
	} else {
		contests, err = rt.journal.Orphans(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	if orphansFlags.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(contests)
	}

	if len(contests) == 0 {
		fmt.Println("No orphaned contests.")
		return nil
	}

	t := theme.Current()
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Primary))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgMuted))
	bad := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Error))

	fmt.Println(header.Render(fmt.Sprintf("%-36s  %-12s  %-16s  %s", "CONTEST", "STATE", "UPDATED", "ERROR")))
	for _, c := range contests {
		state := contestState(c)
		line := fmt.Sprintf("%-36s  %-12s  %-16s  %s", c.ContestID, state, c.UpdatedAt.Local().Format("2006-01-02 15:04"), c.LastError)
		if c.Orphaned() {
			fmt.Println(bad.Render(line))
		} else {
			fmt.Println(line)
		}
	}
	fmt.Println(muted.Render(fmt.Sprintf("\n%d contest(s), as of %s", len(contests), time.Now().Format(time.RFC3339))))
	return nil
}

func contestState(c *journal.Contest) string {
	switch {
	case c.Completed:
		return "completed"
	case c.Orphaned() && !c.Issued:
		return "no token"
	case c.Orphaned():
		return "not stored"
	case c.Stored:
		return "ready"
	default:
		return "pending"
	}
}
