package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mark3labs/contestr/internal/tui/contestwizard"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a contest with the interactive wizard",
	Long: `Walk through the three contest steps in a full-screen form.

Leaving the test configuration step saves the contest on the backend and
stores its access token. Finishing the section details step writes the
completed contest to the archive directory.`,
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
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

	router := contestwizard.NewRouter()
	ctrl, err := rt.newController(router)
	if err != nil {
		return err
	}

	res, err := contestwizard.Run(ctx, ctrl, rt.archive, router)
	if errors.Is(err, contestwizard.ErrCancelled) {
		if res != nil && res.Issued {
			fmt.Printf("Contest %s was saved before leaving. Run 'contestr token' to print its token.\n", res.Handle.ContestID)
			return nil
		}
		fmt.Println("Cancelled, nothing was saved.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Contest %s created\n", res.Handle.ContestID)
	if res.ArchivePath != "" {
		fmt.Printf("Saved to %s\n", res.ArchivePath)
	}
	return nil
}
