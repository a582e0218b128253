package main

import (
	"context"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/mark3labs/contestr/internal/logger"
	"github.com/mark3labs/contestr/internal/tui/theme"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "contestr",
	Short: "Create proctored contests from the terminal",
}

func renderLogo() string {
	t := theme.Current()
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(t.Primary)).
		Render("contestr")
}

func init() {
	rootCmd.Long = renderLogo() + `

contestr walks a host through creating a timed, proctored contest:
overview, test configuration and section details. Leaving the
configuration step saves the contest on the backend and stores the
issued access token locally. Submission events are journaled in an
embedded NATS JetStream so contests left without a token can be listed.`

	addConfigFlags(rootCmd)

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(orphansCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(devBackendCmd)
}
