package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Seal schemes.
const (
	SchemeEd25519    = "ed25519"
	SchemeDilithium3 = "dilithium3"
)

// Config represents the configuration of the proving host and verifier
type Config struct {
	// Execution limits
	MaxCycles     uint64 `yaml:"max_cycles"`
	CheckInterval uint64 `yaml:"check_interval"` // Cycles between context checks

	// Retry policy for proving failures
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// Host deadline per proving run, zero disables it
	Timeout time.Duration `yaml:"timeout"`

	// Parallel proving workers for batches
	Workers int `yaml:"workers"`

	// Seal signature scheme
	SealScheme string `yaml:"seal_scheme"` // "ed25519" or "dilithium3"

	// Hash function of the claim transcript
	TranscriptHash string `yaml:"transcript_hash"` // "sha256" or "sha3"
}

// DefaultConfig returns the default host configuration
func DefaultConfig() *Config {
	return &Config{
		MaxCycles:      1 << 20,
		CheckInterval:  1024,
		MaxRetries:     3,
		RetryBackoff:   50 * time.Millisecond,
		Timeout:        30 * time.Second,
		Workers:        4,
		SealScheme:     SchemeEd25519,
		TranscriptHash: "sha3",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MaxCycles == 0 {
		return NewError(ErrInvalidConfig, nil, "max cycles must be positive")
	}

	if c.CheckInterval == 0 {
		return NewError(ErrInvalidConfig, nil, "check interval must be positive")
	}

	if c.MaxRetries < 0 {
		return NewError(ErrInvalidConfig, nil, "max retries must not be negative, got %d", c.MaxRetries)
	}

	if c.RetryBackoff < 0 || c.Timeout < 0 {
		return NewError(ErrInvalidConfig, nil, "durations must not be negative")
	}

	if c.Workers <= 0 {
		return NewError(ErrInvalidConfig, nil, "workers must be positive, got %d", c.Workers)
	}

	if c.SealScheme != SchemeEd25519 && c.SealScheme != SchemeDilithium3 {
		return NewError(ErrInvalidConfig, nil, "seal scheme must be '%s' or '%s', got '%s'",
			SchemeEd25519, SchemeDilithium3, c.SealScheme)
	}

	if c.TranscriptHash != "sha256" && c.TranscriptHash != "sha3" {
		return NewError(ErrInvalidConfig, nil, "transcript hash must be 'sha256' or 'sha3', got '%s'", c.TranscriptHash)
	}

	return nil
}

// WithMaxCycles sets the cycle budget
func (c *Config) WithMaxCycles(n uint64) *Config {
	c.MaxCycles = n
	return c
}

// WithMaxRetries sets the number of retries after a proving failure
func (c *Config) WithMaxRetries(n int) *Config {
	c.MaxRetries = n
	return c
}

// WithRetryBackoff sets the base retry backoff
func (c *Config) WithRetryBackoff(d time.Duration) *Config {
	c.RetryBackoff = d
	return c
}

// WithTimeout sets the per-run deadline
func (c *Config) WithTimeout(d time.Duration) *Config {
	c.Timeout = d
	return c
}

// WithWorkers sets the batch worker count
func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}

// WithSealScheme sets the seal signature scheme
func (c *Config) WithSealScheme(scheme string) *Config {
	c.SealScheme = scheme
	return c
}

// WithTranscriptHash sets the transcript hash function
func (c *Config) WithTranscriptHash(hashFunc string) *Config {
	c.TranscriptHash = hashFunc
	return c
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewError(ErrInvalidConfig, err, "read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, NewError(ErrInvalidConfig, err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from VFZ_* environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup("VFZ_MAX_CYCLES"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return NewError(ErrInvalidConfig, err, "VFZ_MAX_CYCLES")
		}
		c.MaxCycles = n
	}
	if v, ok := lookup("VFZ_MAX_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return NewError(ErrInvalidConfig, err, "VFZ_MAX_RETRIES")
		}
		c.MaxRetries = n
	}
	if v, ok := lookup("VFZ_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return NewError(ErrInvalidConfig, err, "VFZ_TIMEOUT")
		}
		c.Timeout = d
	}
	if v, ok := lookup("VFZ_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return NewError(ErrInvalidConfig, err, "VFZ_WORKERS")
		}
		c.Workers = n
	}
	if v, ok := lookup("VFZ_SEAL_SCHEME"); ok {
		c.SealScheme = v
	}
	return c.Validate()
}

// String summarizes the configuration for logs.
func (c *Config) String() string {
	return fmt.Sprintf("max_cycles=%d retries=%d timeout=%s workers=%d scheme=%s transcript=%s",
		c.MaxCycles, c.MaxRetries, c.Timeout, c.Workers, c.SealScheme, c.TranscriptHash)
}
