package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mark3labs/contestr/internal/api"
	"github.com/mark3labs/contestr/internal/archive"
	"github.com/mark3labs/contestr/internal/config"
	"github.com/mark3labs/contestr/internal/gateway"
	"github.com/mark3labs/contestr/internal/hooks"
	"github.com/mark3labs/contestr/internal/journal"
	"github.com/mark3labs/contestr/internal/logger"
	"github.com/mark3labs/contestr/internal/metrics"
	"github.com/mark3labs/contestr/internal/nats"
	"github.com/mark3labs/contestr/internal/tokenstore"
	"github.com/mark3labs/contestr/internal/wizard"
)

var configFlags struct {
	baseURL        string
	csrfMode       string
	tokenStore     string
	dataDir        string
	archiveDir     string
	strictSchedule bool
	logLevel       string
	logFile        string
}

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&configFlags.baseURL, "base-url", "", "Backend base URL (overrides config)")
	f.StringVar(&configFlags.csrfMode, "csrf-mode", "", "CSRF token source: cookie, static or none (overrides config)")
	f.StringVar(&configFlags.tokenStore, "token-store", "", "Token store: nats, file or redis (overrides config)")
	f.StringVar(&configFlags.dataDir, "data-dir", "", "Data directory for the token store and journal (overrides config)")
	f.StringVar(&configFlags.archiveDir, "archive-dir", "", "Directory for completed contests (overrides config)")
	f.BoolVar(&configFlags.strictSchedule, "strict-schedule", true, "Require registration end after registration start (overrides config)")
	f.StringVar(&configFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	f.StringVar(&configFlags.logFile, "log-file", "", "Log file path (overrides config)")
}

// loadConfig loads the configuration, applies flags that were set on the
// command line and configures the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	return cfg, nil
}

// applyFlags copies flags set on the command line into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = configFlags.baseURL
	}
	if flags.Changed("csrf-mode") {
		cfg.CSRFMode = configFlags.csrfMode
	}
	if flags.Changed("token-store") {
		cfg.TokenStore = configFlags.tokenStore
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = configFlags.dataDir
	}
	if flags.Changed("archive-dir") {
		cfg.ArchiveDir = configFlags.archiveDir
	}
	if flags.Changed("strict-schedule") {
		cfg.StrictSchedule = configFlags.strictSchedule
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = configFlags.logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = configFlags.logFile
	}
}

// runtime holds the long-lived services a command works with.
type runtime struct {
	cfg     *config.Config
	broker  *nats.Broker
	store   gateway.KeyValueStore
	journal *journal.Journal
	archive *archive.Archive
	metrics *metrics.Metrics
	hooks   *hooks.Runner
	closers []func() error
}

// openRuntime starts the embedded broker and opens the configured token store.
func openRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	broker, err := nats.Start(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to start NATS: %w", err)
	}

	rt := &runtime{
		cfg:     cfg,
		broker:  broker,
		archive: archive.New(cfg.ArchiveDir),
		metrics: metrics.New(),
	}

	rt.journal, err = journal.New(ctx, broker.JS)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	switch cfg.TokenStore {
	case config.StoreNATS:
		rt.store, err = tokenstore.NewNATS(ctx, broker.JS)
	case config.StoreFile:
		rt.store = tokenstore.NewFile(cfg.DataDir)
	case config.StoreRedis:
		var r *tokenstore.Redis
		r, err = tokenstore.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			rt.store = r
			rt.closers = append(rt.closers, r.Close)
		}
	}
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to open %s token store: %w", cfg.TokenStore, err)
	}

	hooksCfg, err := hooks.LoadConfig(".")
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	if hooksCfg != nil {
		rt.hooks = hooks.NewRunner(hooksCfg, ".", hooks.WithArchivePath(rt.archive.PathFor))
	}

	logger.Debug("runtime: data=%s store=%s archive=%s", cfg.DataDir, cfg.TokenStore, cfg.ArchiveDir)
	return rt, nil
}

// Close waits for background hooks, releases the token store and stops the
// broker.
func (rt *runtime) Close() error {
	if rt.hooks != nil {
		rt.hooks.Wait()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			logger.Warn("runtime: close failed: %v", err)
		}
	}
	return rt.broker.Close()
}

// credentials returns the CSRF token source for csrf_mode.
func (rt *runtime) credentials(client *api.Client) (gateway.CredentialProvider, error) {
	switch rt.cfg.CSRFMode {
	case config.CSRFStatic:
		return api.StaticCredentials(rt.cfg.CSRFToken), nil
	case config.CSRFNone:
		return api.NoCredentials{}, nil
	default:
		return api.NewCookieCredentials(client, rt.cfg.CSRFPath)
	}
}

// newController wires a wizard against the configured backend. nav may be nil.
func (rt *runtime) newController(nav wizard.Navigator) (*wizard.Controller, error) {
	client := api.NewClient(rt.cfg.BaseURL, api.WithTimeout(rt.cfg.RequestTimeout()))
	creds, err := rt.credentials(client)
	if err != nil {
		return nil, err
	}

	observers := []gateway.Observer{rt.journal}
	finalizers := []wizard.Finalizer{rt.archive, rt.journal}
	if rt.hooks != nil {
		observers = append(observers, rt.hooks)
		finalizers = append(finalizers, rt.hooks)
	}

	gw := gateway.New(client, rt.store,
		gateway.WithCredentials(creds),
		gateway.WithObserver(gateway.Observers(observers...)),
		gateway.WithMetrics(rt.metrics),
	)

	opts := []wizard.Option{
		wizard.WithFinalizer(wizard.Finalizers(finalizers...)),
		wizard.WithMetrics(rt.metrics),
		wizard.WithStrictSchedule(rt.cfg.StrictSchedule),
	}
	if nav != nil {
		opts = append(opts, wizard.WithNavigator(nav))
	}
	return wizard.New(gw, opts...), nil
}
