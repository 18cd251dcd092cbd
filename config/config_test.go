package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Strategy != "subproc" {
		t.Fatalf("default strategy %q", cfg.Strategy)
	}
	if cfg.Limits.MaxWallSeconds != 15 {
		t.Fatalf("default wall ceiling %d", cfg.Limits.MaxWallSeconds)
	}
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := Defaults()
	cfg.Strategy = "vm"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	cfg := Defaults()
	cfg.Policy = "lenient"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadEmptyPathKeepsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Defaults() {
		t.Fatalf("config %+v", cfg)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crucible.yaml")
	data := []byte("strategy: inproc\npolicy: strict\nsyntax_check: true\nlimits:\n  max_wall_seconds: 30\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Strategy != "inproc" || cfg.Policy != "strict" || !cfg.SyntaxCheck {
		t.Fatalf("config %+v", cfg)
	}
	if cfg.Limits.MaxWallSeconds != 30 {
		t.Fatalf("wall ceiling %d", cfg.Limits.MaxWallSeconds)
	}
	// Fields absent from the file keep their defaults.
	if cfg.GraceSeconds != 5 {
		t.Fatalf("grace %d", cfg.GraceSeconds)
	}
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crucible.yaml")
	if err := os.WriteFile(path, []byte("strategy: vm\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/crucible.yaml"); err == nil {
		t.Fatal("expected error")
	}
}
