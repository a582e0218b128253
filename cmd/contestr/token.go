package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mark3labs/contestr/internal/gateway"
)

var tokenFlags struct {
	clear bool
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the stored contest access token",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().BoolVar(&tokenFlags.clear, "clear", false, "Remove the stored token instead of printing it")
}

func runToken(cmd *cobra.Command, args []string) error {
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

	if tokenFlags.clear {
		if err := rt.store.Delete(ctx, gateway.TokenKey); err != nil {
			return fmt.Errorf("failed to clear token: %w", err)
		}
		fmt.Println("Token cleared.")
		return nil
	}

	token, err := rt.store.Get(ctx, gateway.TokenKey)
	if errors.Is(err, gateway.ErrKeyNotFound) {
		return fmt.Errorf("no contest token stored in the %s store", cfg.TokenStore)
	}
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	fmt.Println(token)
	return nil
}
