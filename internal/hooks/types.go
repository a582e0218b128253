package hooks

// Config is the top-level configuration for hooks loaded from .contestr.hooks.yml.
type Config struct {
	Version int         `yaml:"version"`
	Hooks   HooksConfig `yaml:"hooks"`
}

// HooksConfig contains all hook configurations.
type HooksConfig struct {
	// OnSaved runs once the contest is persisted and its token stored.
	OnSaved []*HookConfig `yaml:"on_saved"`
	// OnOrphaned runs when a contest was persisted but no usable token is held.
	OnOrphaned []*HookConfig `yaml:"on_orphaned"`
	// OnCompleted runs after the last step was submitted.
	OnCompleted []*HookConfig `yaml:"on_completed"`
}

// HookConfig defines a single hook's configuration.
type HookConfig struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout"` // seconds, default 30
}

// DefaultTimeout is the default timeout for hook execution in seconds.
const DefaultTimeout = 30
