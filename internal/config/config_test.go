package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsWhenFileAndEnvAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != "stdio" || cfg.ResponseTokenCap != 25000 {
		t.Fatalf("expected package defaults, got %+v", cfg)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("transport: sse\nport: 9999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != "sse" || cfg.Port != 9999 {
		t.Fatalf("expected yaml overrides to take effect, got %+v", cfg)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("transport: sse\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MCPCORE_TRANSPORT", "stdio")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != "stdio" {
		t.Fatalf("expected env var to override yaml, got transport=%q", cfg.Transport)
	}
}

func TestValidateRejectsUnknownTransport(t *testing.T) {
	cfg := Default()
	cfg.Transport = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unknown transport")
	}
}

func TestValidateRejectsNonPositiveResponseTokenCap(t *testing.T) {
	cfg := Default()
	cfg.ResponseTokenCap = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a non-positive response_token_cap")
	}
}

func TestAutoBackgroundDurationZeroDisables(t *testing.T) {
	cfg := Default()
	cfg.AutoBackgroundSeconds = 0
	if d := cfg.AutoBackgroundDuration(); d != 0 {
		t.Fatalf("expected a zero duration, got %v", d)
	}
}
