package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig tests the DefaultConfig function
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if config.MaxCycles == 0 {
		t.Error("MaxCycles should be positive")
	}

	if config.Workers <= 0 {
		t.Error("Workers should be positive")
	}

	if config.SealScheme != SchemeEd25519 {
		t.Errorf("SealScheme = %q, want %q", config.SealScheme, SchemeEd25519)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig() should be valid: %v", err)
	}
}

// TestConfigValidate tests the Validate method
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{"valid default config", func(*Config) {}, false},
		{"zero max cycles", func(c *Config) { c.MaxCycles = 0 }, true},
		{"zero check interval", func(c *Config) { c.CheckInterval = 0 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, false},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, false},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"dilithium scheme", func(c *Config) { c.SealScheme = SchemeDilithium3 }, false},
		{"unknown scheme", func(c *Config) { c.SealScheme = "rsa" }, true},
		{"sha256 transcript", func(c *Config) { c.TranscriptHash = "sha256" }, false},
		{"poseidon transcript", func(c *Config) { c.TranscriptHash = "poseidon" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.expectErr {
				t.Fatalf("Validate() error = %v, expectErr %v", err, tt.expectErr)
			}
			if err != nil && !errors.Is(err, InvalidConfig) {
				t.Errorf("Validate() error %v is not an invalid config error", err)
			}
		})
	}
}

// TestConfigBuilders tests the With* methods and Clone
func TestConfigBuilders(t *testing.T) {
	config := DefaultConfig().
		WithMaxCycles(500).
		WithMaxRetries(1).
		WithRetryBackoff(time.Millisecond).
		WithTimeout(time.Second).
		WithWorkers(2).
		WithSealScheme(SchemeDilithium3).
		WithTranscriptHash("sha256")

	if config.MaxCycles != 500 || config.MaxRetries != 1 || config.RetryBackoff != time.Millisecond ||
		config.Timeout != time.Second || config.Workers != 2 ||
		config.SealScheme != SchemeDilithium3 || config.TranscriptHash != "sha256" {
		t.Errorf("builders not applied: %+v", config)
	}

	clone := config.Clone()
	clone.Workers = 9
	if config.Workers != 2 {
		t.Error("Clone() shares state with the original")
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte("max_cycles: 4096\ntimeout: 2s\nseal_scheme: dilithium3\n"))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.MaxCycles != 4096 || cfg.Timeout != 2*time.Second || cfg.SealScheme != SchemeDilithium3 {
		t.Errorf("ParseConfig() = %+v", cfg)
	}
	if cfg.Workers != DefaultConfig().Workers {
		t.Error("unset fields should keep defaults")
	}

	if _, err := ParseConfig([]byte("unknown_field: 1\n")); err == nil {
		t.Error("ParseConfig() accepted an unknown field")
	}
	if _, err := ParseConfig([]byte("workers: 0\n")); !errors.Is(err, InvalidConfig) {
		t.Errorf("ParseConfig() invalid values error = %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.yaml")
	if err := os.WriteFile(path, []byte("max_retries: 5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() of a missing file succeeded")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"VFZ_MAX_CYCLES":  "100",
		"VFZ_MAX_RETRIES": "0",
		"VFZ_TIMEOUT":     "1m",
		"VFZ_WORKERS":     "8",
		"VFZ_SEAL_SCHEME": "dilithium3",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.MaxCycles != 100 || cfg.MaxRetries != 0 || cfg.Timeout != time.Minute ||
		cfg.Workers != 8 || cfg.SealScheme != SchemeDilithium3 {
		t.Errorf("ApplyEnv() = %+v", cfg)
	}

	env["VFZ_WORKERS"] = "many"
	if err := DefaultConfig().ApplyEnv(lookup); err == nil {
		t.Error("ApplyEnv() accepted a non-numeric worker count")
	}
}
