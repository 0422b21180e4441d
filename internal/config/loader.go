package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if DEVRANK_CONFIG is set
//  3. env (prefix DEVRANK_)
func Load(ctx context.Context) (*Config, error) {
	_ = ctx

	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("DEVRANK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: DEVRANK_ADDR, DEVRANK_BATCH_SIZE, ...
	// Map env keys like DEVRANK_BATCH_SIZE -> batch_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("DEVRANK_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "devrank_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the engine cannot run with.
func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := time.Parse("2006-01-02", c.EpochDate); err != nil {
		return fmt.Errorf("%w: epoch_date must be YYYY-MM-DD: %w", ErrInvalidConfig, err)
	}
	if _, err := time.LoadLocation(c.EpochTimezone); err != nil {
		return fmt.Errorf("%w: unknown epoch_timezone %q: %w", ErrInvalidConfig, c.EpochTimezone, err)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be >= 1", ErrInvalidConfig)
	}
	if c.Storage != "memory" && c.Storage != "postgres" {
		return fmt.Errorf("%w: storage must be memory or postgres", ErrInvalidConfig)
	}
	if c.Storage == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("%w: postgres_dsn required for postgres storage", ErrInvalidConfig)
	}
	return nil
}
