package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mark3labs/contestr/internal/mcpserver"
)

var mcpFlags struct {
	addr string
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the contest wizard as MCP tools",
	Long: `Start an HTTP server exposing one contest wizard as MCP tools on /mcp
and Prometheus metrics on /metrics. An agent fills the draft with
contest-update-field and moves through the steps with contest-next-step.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpFlags.addr, "addr", "127.0.0.1:8765", "Listen address")
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	ctrl, err := rt.newController(nil)
	if err != nil {
		return err
	}

	srv := mcpserver.New(ctrl, rt.metrics)
	if _, err := srv.Start(ctx, mcpFlags.addr); err != nil {
		return err
	}

	fmt.Printf("MCP endpoint: %s\n", srv.URL())
	fmt.Printf("Metrics:      %s\n", srv.MetricsURL())
	fmt.Println("Press Ctrl+C to stop.")

	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
