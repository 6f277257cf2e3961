// Package config loads driftview configuration from layered JSON or YAML
// files plus DRIFTVIEW_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/fragment"
	"github.com/c360/driftview/pkg/cache"
	"github.com/c360/driftview/pkg/embedding"
	"github.com/c360/driftview/source"
)

// Store backends
const (
	BackendMemory = "memory" // in-process cache
	BackendNATS   = "nats"   // JetStream KV bucket
)

// Config is the complete application configuration.
type Config struct {
	PageSize    int    `json:"page_size" yaml:"page_size"`
	ParentAlias string `json:"parent_alias" yaml:"parent_alias"`
	FieldAlias  string `json:"field_alias" yaml:"field_alias"`
	// MaxPages caps the pages loaded per slot in one run; 0 loads everything.
	MaxPages     int      `json:"max_pages" yaml:"max_pages"`
	FetchTimeout Duration `json:"fetch_timeout" yaml:"fetch_timeout"`

	RateLimit RateLimitConfig   `json:"rate_limit" yaml:"rate_limit"`
	Store     StoreConfig       `json:"store" yaml:"store"`
	Metrics   MetricsConfig     `json:"metrics" yaml:"metrics"`
	Seed      source.SeedConfig `json:"seed" yaml:"seed"`

	// TextModels are seeded next to the synthetic models by embedding their
	// text samples.
	TextModels []source.TextModel   `json:"text_models,omitempty" yaml:"text_models,omitempty"`
	Embedding  embedding.BM25Config `json:"embedding" yaml:"embedding"`
}

// StoreConfig selects where slots live.
type StoreConfig struct {
	Backend string       `json:"backend" yaml:"backend"`
	Cache   cache.Config `json:"cache" yaml:"cache"`
	NATSURL string       `json:"nats_url,omitempty" yaml:"nats_url,omitempty"`
	Bucket  string       `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	// History is the number of revisions the KV bucket keeps per slot.
	History int      `json:"history,omitempty" yaml:"history,omitempty"`
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// RateLimitConfig throttles page fetches across all slots.
type RateLimitConfig struct {
	// PerSecond of 0 disables limiting.
	PerSecond float64 `json:"per_second" yaml:"per_second"`
	Burst     int     `json:"burst" yaml:"burst"`
}

// Limiter builds the shared limiter.
func (r RateLimitConfig) Limiter() *rate.Limiter {
	if r.PerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(r.PerSecond), r.Burst)
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		PageSize:     fragment.DefaultCount,
		ParentAlias:  fragment.ParentAlias,
		FieldAlias:   fragment.FieldAlias,
		FetchTimeout: Duration(10 * time.Second),
		Store: StoreConfig{
			Backend: BackendMemory,
			Cache:   cache.DefaultConfig(),
		},
		Metrics: MetricsConfig{Path: "/metrics"},
		Seed:    source.DefaultSeedConfig(),
	}
}

// Validate fills defaults for unset fields and checks the rest.
func (c *Config) Validate() error {
	if c.PageSize == 0 {
		c.PageSize = fragment.DefaultCount
	}
	if c.PageSize < 0 {
		return invalid("page_size must be positive, got %d", c.PageSize)
	}
	if c.ParentAlias == "" {
		c.ParentAlias = fragment.ParentAlias
	}
	if c.FieldAlias == "" {
		c.FieldAlias = fragment.FieldAlias
	}
	if _, err := connection.NewSlotKey("probe", c.ParentAlias, c.FieldAlias); err != nil {
		return errors.WrapInvalid(err, "config", "Validate", "parent_alias/field_alias")
	}
	if c.MaxPages < 0 {
		return invalid("max_pages must not be negative, got %d", c.MaxPages)
	}
	if c.FetchTimeout < 0 {
		return invalid("fetch_timeout must not be negative")
	}
	if c.RateLimit.PerSecond < 0 {
		return invalid("rate_limit.per_second must not be negative")
	}
	if c.RateLimit.PerSecond > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 1
	}

	if err := c.Store.validate(); err != nil {
		return err
	}

	if c.Metrics.Addr != "" && c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Seed == (source.SeedConfig{}) {
		c.Seed = source.DefaultSeedConfig()
	}
	if err := c.Seed.Validate(); err != nil {
		return errors.Wrap(err, "config", "Validate", "seed")
	}

	if err := c.Embedding.Validate(); err != nil {
		return errors.Wrap(err, "config", "Validate", "embedding")
	}
	seen := make(map[string]bool, len(c.TextModels))
	for i, m := range c.TextModels {
		if m.ID == "" {
			return invalid("text_models[%d] has no id", i)
		}
		if seen[m.ID] {
			return invalid("text_models id %q is duplicated", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if s.Backend == "" {
		s.Backend = BackendMemory
	}
	switch s.Backend {
	case BackendMemory:
		if err := s.Cache.Validate(); err != nil {
			return errors.Wrap(err, "config", "Validate", "store.cache")
		}
	case BackendNATS:
		if s.NATSURL == "" {
			s.NATSURL = "nats://localhost:4222"
		}
		if s.Bucket == "" {
			s.Bucket = "DRIFTVIEW_SLOTS"
		}
		if s.History == 0 {
			s.History = 1
		}
		if s.History < 0 || s.History > 64 {
			return invalid("store.history must be between 1 and 64, got %d", s.History)
		}
		if s.Timeout == 0 {
			s.Timeout = Duration(5 * time.Second)
		}
	default:
		return invalid("unknown store.backend %q", s.Backend)
	}
	return nil
}

// String renders the config as YAML.
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", fmt.Sprintf(format, args...))
}

// Duration is a time.Duration written as a string such as "5s". Plain
// numbers are read as seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseDuration(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func parseDuration(raw any) (Duration, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return Duration(v * float64(time.Second)), nil
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		return Duration(parsed), nil
	default:
		return 0, fmt.Errorf("invalid duration %v", raw)
	}
}
