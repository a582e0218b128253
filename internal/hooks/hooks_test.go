package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/gateway"
	"github.com/mark3labs/contestr/internal/wizard"
)

func TestExecuteAll(t *testing.T) {
	ctx := context.Background()
	workDir := t.TempDir()
	vars := Variables{ContestID: "c-1", Name: "Spring"}

	tests := []struct {
		name     string
		hooks    []*HookConfig
		expected string
	}{
		{
			name:     "no hooks",
			hooks:    []*HookConfig{},
			expected: "",
		},
		{
			name: "single hook",
			hooks: []*HookConfig{
				{Command: "echo 'saved'", Timeout: 5},
			},
			expected: "saved\n",
		},
		{
			name: "empty command skipped",
			hooks: []*HookConfig{
				{Command: ""},
				{Command: "echo 'second'", Timeout: 5},
			},
			expected: "second\n",
		},
		{
			name: "multiple hooks",
			hooks: []*HookConfig{
				{Command: "echo 'first'", Timeout: 5},
				{Command: "echo 'second'", Timeout: 5},
			},
			expected: "first\n\nsecond\n",
		},
		{
			name: "placeholders",
			hooks: []*HookConfig{
				{Command: "echo {{contest_id}} {{name}}", Timeout: 5},
			},
			expected: "c-1 Spring\n",
		},
		{
			name: "environment",
			hooks: []*HookConfig{
				{Command: `echo "$CONTESTR_CONTEST_ID"`, Timeout: 5},
			},
			expected: "c-1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := ExecuteAll(ctx, tt.hooks, workDir, vars)
			require.NoError(t, err)
			require.Equal(t, tt.expected, output)
		})
	}
}

func TestExecute_QuotesPlaceholders(t *testing.T) {
	out, err := Execute(context.Background(), &HookConfig{Command: "echo {{name}}", Timeout: 5}, t.TempDir(),
		Variables{Name: "it's; rm -rf /"})
	require.NoError(t, err)
	require.Equal(t, "it's; rm -rf /\n", out)
}

func TestExecute_FailureIsReported(t *testing.T) {
	out, err := Execute(context.Background(), &HookConfig{Command: "echo oops >&2; exit 3", Timeout: 5}, t.TempDir(), Variables{})
	require.NoError(t, err)
	require.Contains(t, out, "[Hook command failed: exit status 3]")
	require.Contains(t, out, "[stderr]\noops")
}

func TestExecuteAll_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hooks := []*HookConfig{
		{Command: "echo 'test'", Timeout: 5},
	}

	_, err := ExecuteAll(ctx, hooks, t.TempDir(), Variables{})
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Nil(t, cfg)

	content := `version: 1
hooks:
  on_saved:
    - command: echo saved
  on_completed:
    - command: echo done
      timeout: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))

	cfg, err = LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Version)
	require.Len(t, cfg.Hooks.OnSaved, 1)
	require.Equal(t, 10, cfg.Hooks.OnCompleted[0].Timeout)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("hooks: ["), 0644))
	_, err = LoadConfig(dir)
	require.Error(t, err)
}

type outputs struct {
	mu  sync.Mutex
	got map[string]string
}

func (o *outputs) record(event, output string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got[event] = output
}

func TestRunner_Observe(t *testing.T) {
	out := &outputs{got: map[string]string{}}
	r := NewRunner(&Config{Hooks: HooksConfig{
		OnSaved:    []*HookConfig{{Command: "echo saved {{contest_id}}", Timeout: 5}},
		OnOrphaned: []*HookConfig{{Command: "echo orphan {{phase}}", Timeout: 5}},
	}}, t.TempDir(), WithOutput(out.record))

	ctx := context.Background()
	r.Observe(ctx, gateway.Event{ContestID: "c-1", Phase: gateway.PhasePersist, Outcome: gateway.OutcomePersisted})
	r.Observe(ctx, gateway.Event{ContestID: "c-1", Phase: gateway.PhaseStoreToken, Outcome: gateway.OutcomeStored})
	r.Observe(ctx, gateway.Event{ContestID: "c-2", Phase: gateway.PhaseIssueToken, Outcome: gateway.OutcomeFailed, Err: errors.New("403")})
	r.Observe(ctx, gateway.Event{ContestID: "c-3", Phase: gateway.PhasePersist, Outcome: gateway.OutcomeFailed})
	r.Wait()

	require.Equal(t, map[string]string{
		"on_saved":    "saved c-1\n",
		"on_orphaned": "orphan issue_token\n",
	}, out.got)
}

func TestRunner_Finalize(t *testing.T) {
	out := &outputs{got: map[string]string{}}
	r := NewRunner(&Config{Hooks: HooksConfig{
		OnCompleted: []*HookConfig{{Command: "echo {{name}} {{archive_path}}", Timeout: 5}},
	}}, t.TempDir(),
		WithOutput(out.record),
		WithArchivePath(func(c wizard.Completion) string { return "/tmp/" + c.Handle.ContestID + ".yml" }),
	)

	final, err := draft.New().With(draft.SectionOverview, draft.FieldName, "Spring")
	require.NoError(t, err)

	err = r.Finalize(context.Background(), wizard.Completion{
		Handle:      gateway.ContestHandle{ContestID: "c-1"},
		Final:       final,
		CompletedAt: time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, "Spring /tmp/c-1.yml\n", out.got["on_completed"])
}
