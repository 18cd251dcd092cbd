// Package config holds the deployment profile: which isolation strategy runs
// snippets, which validation policy screens them, and the resource ceilings.
// The profile is fixed at startup; callers can never loosen it per request.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"crucible/core/limits"
	"crucible/core/validate"
)

// Config drives the engine's execution behavior.
type Config struct {
	// Strategy selects the isolation adapter: "inproc" or "subproc".
	Strategy string `yaml:"strategy"`
	// Policy names the denylist profile: "default" or "strict".
	Policy string `yaml:"policy"`
	// SyntaxCheck additionally screens statically resolvable identifiers
	// against the capability allowlist before execution.
	SyntaxCheck bool `yaml:"syntax_check"`
	// Limits are the per-execution resource ceilings.
	Limits limits.Limits `yaml:"limits"`
	// GraceSeconds pads the supervising deadline of the isolated strategy.
	GraceSeconds int `yaml:"grace_seconds"`
	// Watch enables syscall-watch diagnostics on the isolated strategy.
	Watch bool `yaml:"watch"`
	// WatchObjectDir overrides where the collector finds its objects.
	WatchObjectDir string `yaml:"watch_object_dir"`
	// WorkerPath overrides the executable spawned as the isolated worker.
	WorkerPath string `yaml:"worker_path"`
}

// Defaults returns the baseline profile: process isolation, the default
// denylist, and the standard ceilings.
func Defaults() Config {
	return Config{
		Strategy:     "subproc",
		Policy:       "default",
		Limits:       limits.Defaults(),
		GraceSeconds: 5,
	}
}

// Load layers a YAML profile over the defaults. An empty path keeps the
// defaults untouched.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures the profile is usable.
func (c Config) Validate() error {
	switch c.Strategy {
	case "inproc", "subproc":
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if _, ok := validate.PolicyByName(c.Policy); !ok {
		return fmt.Errorf("unknown policy %q", c.Policy)
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if c.GraceSeconds < 0 {
		return fmt.Errorf("grace seconds must be >= 0")
	}
	return nil
}
