package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mark3labs/contestr/internal/api/devserver"
	"github.com/mark3labs/contestr/internal/logger"
)

var devBackendFlags struct {
	addr      string
	noCSRF    bool
	failSave  bool
	failToken bool
}

var devBackendCmd = &cobra.Command{
	Use:   "dev-backend",
	Short: "Run an in-memory contest backend for local testing",
	Long: `Serve /api/csrf, /api/save-data and /api/start-contest from memory.
Point base_url at it to try the wizard without the real backend.
--fail-save and --fail-token make the matching endpoint answer 500.`,
	RunE: runDevBackend,
}

func init() {
	devBackendCmd.Flags().StringVar(&devBackendFlags.addr, "addr", "127.0.0.1:8000", "Listen address")
	devBackendCmd.Flags().BoolVar(&devBackendFlags.noCSRF, "no-csrf", false, "Do not require X-CSRFToken on start-contest")
	devBackendCmd.Flags().BoolVar(&devBackendFlags.failSave, "fail-save", false, "Fail every save-data call")
	devBackendCmd.Flags().BoolVar(&devBackendFlags.failToken, "fail-token", false, "Fail every start-contest call")
}

func runDevBackend(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := devserver.New(devserver.WithCSRF(!devBackendFlags.noCSRF))
	backend.FailSave.Store(devBackendFlags.failSave)
	backend.FailToken.Store(devBackendFlags.failToken)

	server := &http.Server{
		Addr:              devBackendFlags.addr,
		Handler:           backend,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	fmt.Printf("Development backend listening on http://%s\n", devBackendFlags.addr)
	logger.Info("dev-backend: listening on %s (csrf=%t)", devBackendFlags.addr, !devBackendFlags.noCSRF)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dev backend failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Printf("\nShutting down (%d contests saved)...\n", backend.Count())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
