// Package hooks runs user shell commands at points of a contest's life.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/gateway"
	"github.com/mark3labs/contestr/internal/logger"
	"github.com/mark3labs/contestr/internal/wizard"
)

// ConfigFileName is the name of the hooks configuration file.
const ConfigFileName = ".contestr.hooks.yml"

// LoadConfig loads the hooks configuration from the working directory.
// Returns nil if the config file doesn't exist (hooks are optional).
// Returns an error only if the file exists but cannot be parsed.
func LoadConfig(workDir string) (*Config, error) {
	configPath := filepath.Join(workDir, ConfigFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("No hooks config found at %s", configPath)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse hooks config: %w", err)
	}

	logger.Debug("Loaded hooks config from %s (version: %d)", configPath, cfg.Version)
	return &cfg, nil
}

// Variables holds the values exposed to hook commands, both as
// {{placeholders}} and as CONTESTR_* environment variables.
type Variables struct {
	ContestID   string
	Name        string
	Phase       string
	Error       string
	ArchivePath string
}

func (v Variables) env() []string {
	return []string{
		"CONTESTR_CONTEST_ID=" + v.ContestID,
		"CONTESTR_NAME=" + v.Name,
		"CONTESTR_PHASE=" + v.Phase,
		"CONTESTR_ERROR=" + v.Error,
		"CONTESTR_ARCHIVE_PATH=" + v.ArchivePath,
	}
}

// Execute runs a hook command and returns its output.
// Placeholders in the command ({{contest_id}}, {{name}}, {{phase}}, {{error}},
// {{archive_path}}) are expanded shell-quoted before execution.
// On error, returns an error message as output and nil error (graceful degradation).
// Only returns error for context cancellation.
func Execute(ctx context.Context, hook *HookConfig, workDir string, vars Variables) (string, error) {
	if hook == nil || hook.Command == "" {
		return "", nil
	}

	command := expandVariables(hook.Command, vars)
	logger.Debug("Executing hook command: %s", command)

	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), vars.env()...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if execCtx.Err() == context.DeadlineExceeded {
		logger.Warn("Hook command timed out after %ds: %s", timeout, command)
		return fmt.Sprintf("[Hook timed out after %ds]\nPartial output:\n%s", timeout, stdout.String()), nil
	}

	if err != nil {
		logger.Warn("Hook command failed: %v", err)
		output := stdout.String()
		if stderr.Len() > 0 {
			output += "\n[stderr]\n" + stderr.String()
		}
		return fmt.Sprintf("[Hook command failed: %v]\n%s", err, output), nil
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		logger.Debug("Hook stderr: %s", stderr.String())
		output += "\n[stderr]\n" + stderr.String()
	}

	logger.Debug("Hook executed successfully, output length: %d bytes", len(output))
	return output, nil
}

// ExecuteAll runs hooks in order and joins their non-empty outputs with a
// blank line. It stops at context cancellation.
func ExecuteAll(ctx context.Context, hooks []*HookConfig, workDir string, vars Variables) (string, error) {
	var outputs []string
	for _, hook := range hooks {
		out, err := Execute(ctx, hook, workDir, vars)
		if err != nil {
			return strings.Join(outputs, "\n"), err
		}
		if out != "" {
			outputs = append(outputs, out)
		}
	}
	return strings.Join(outputs, "\n"), nil
}

// expandVariables replaces {{variable}} placeholders in the command string.
func expandVariables(command string, vars Variables) string {
	replacements := map[string]string{
		"{{contest_id}}":   vars.ContestID,
		"{{name}}":         vars.Name,
		"{{phase}}":        vars.Phase,
		"{{error}}":        vars.Error,
		"{{archive_path}}": vars.ArchivePath,
	}

	result := command
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, shellQuote(value))
	}
	return result
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Runner triggers configured hooks from gateway events and wizard completion.
type Runner struct {
	cfg      *Config
	workDir  string
	pathFor  func(wizard.Completion) string
	wg       sync.WaitGroup
	onOutput func(event, output string)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithArchivePath supplies the archive location exposed as {{archive_path}}.
func WithArchivePath(fn func(wizard.Completion) string) RunnerOption {
	return func(r *Runner) {
		r.pathFor = fn
	}
}

// WithOutput receives the output of each hook group. By default output is
// logged at debug level.
func WithOutput(fn func(event, output string)) RunnerOption {
	return func(r *Runner) {
		r.onOutput = fn
	}
}

// NewRunner creates a Runner. cfg must not be nil.
func NewRunner(cfg *Config, workDir string, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:     cfg,
		workDir: workDir,
		onOutput: func(event, output string) {
			logger.Debug("hooks: %s output:\n%s", event, output)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe starts on_saved hooks after the token is stored and on_orphaned
// hooks when a persisted contest is left without a token. Hooks run in the
// background; Wait blocks until they finish.
func (r *Runner) Observe(ctx context.Context, ev gateway.Event) {
	var (
		hooks []*HookConfig
		event string
	)
	switch {
	case ev.Outcome == gateway.OutcomeStored:
		hooks, event = r.cfg.Hooks.OnSaved, "on_saved"
	case ev.Outcome == gateway.OutcomeFailed && ev.Phase != gateway.PhasePersist && ev.ContestID != "":
		hooks, event = r.cfg.Hooks.OnOrphaned, "on_orphaned"
	default:
		return
	}
	if len(hooks) == 0 {
		return
	}

	vars := Variables{ContestID: ev.ContestID, Phase: string(ev.Phase)}
	if ev.Err != nil {
		vars.Error = ev.Err.Error()
	}

	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, event, hooks, vars)
	}()
}

// Finalize runs on_completed hooks. Hook failures never fail completion.
func (r *Runner) Finalize(ctx context.Context, c wizard.Completion) error {
	if len(r.cfg.Hooks.OnCompleted) == 0 {
		return nil
	}
	vars := Variables{
		ContestID: c.Handle.ContestID,
		Name:      c.Final.Text(draft.SectionOverview, draft.FieldName),
	}
	if r.pathFor != nil {
		vars.ArchivePath = r.pathFor(c)
	}
	return r.run(ctx, "on_completed", r.cfg.Hooks.OnCompleted, vars)
}

func (r *Runner) run(ctx context.Context, event string, hooks []*HookConfig, vars Variables) error {
	output, err := ExecuteAll(ctx, hooks, r.workDir, vars)
	if output != "" && r.onOutput != nil {
		r.onOutput(event, output)
	}
	if err != nil {
		logger.Warn("hooks: %s interrupted: %v", event, err)
	}
	return err
}

// Wait blocks until background hooks have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
