package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mark3labs/contestr/internal/config"
)

var setupFlags struct {
	project   bool
	force     bool
	csrfToken string
	redisAddr string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create contestr configuration file",
	Long: `Create a contestr configuration file with sensible defaults.

By default, creates a global config at ~/.config/contestr/contestr.yml.
Use --project to create a project-local config in the current directory.
Global flags such as --base-url and --token-store are written into the file.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVarP(&setupFlags.project, "project", "p", false, "Create config in current directory instead of global location")
	setupCmd.Flags().BoolVarP(&setupFlags.force, "force", "f", false, "Overwrite existing config file")
	setupCmd.Flags().StringVar(&setupFlags.csrfToken, "csrf-token", "", "Static CSRF token (with --csrf-mode static)")
	setupCmd.Flags().StringVar(&setupFlags.redisAddr, "redis-addr", "", "Redis address (with --token-store redis)")
}

func runSetup(cmd *cobra.Command, args []string) error {
	targetPath := config.GlobalPath()
	if setupFlags.project {
		targetPath = config.ProjectPath()
	}

	if !setupFlags.force && fileExists(targetPath) {
		return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
	}

	cfg := config.Defaults()
	applyFlags(cmd, cfg)
	if setupFlags.csrfToken != "" {
		cfg.CSRFToken = setupFlags.csrfToken
	}
	if setupFlags.redisAddr != "" {
		cfg.RedisAddr = setupFlags.redisAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var err error
	if setupFlags.project {
		err = config.WriteProject(cfg)
	} else {
		err = config.WriteGlobal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Config written to: %s\n\n", targetPath)
	fmt.Println("Run 'contestr create' to get started.")
	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
