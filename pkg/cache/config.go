package cache

import (
	"fmt"

	"github.com/c360/driftview/errors"
)

// Strategy selects the eviction policy.
type Strategy string

const (
	// StrategySimple never evicts.
	StrategySimple Strategy = "simple"

	// StrategyLRU evicts the least recently used entry past MaxSize.
	StrategyLRU Strategy = "lru"
)

// Config describes a cache to build with NewFromConfig.
type Config struct {
	// Strategy determines the eviction policy.
	Strategy Strategy `json:"strategy" yaml:"strategy"`

	// MaxSize is the entry limit for the LRU strategy.
	MaxSize int `json:"max_size,omitempty" yaml:"max_size,omitempty"`
}

// DefaultConfig returns a cache that keeps every slot until it is reset.
func DefaultConfig() Config {
	return Config{Strategy: StrategySimple}
}

// Validate checks the configuration, defaulting an empty strategy to simple.
func (c *Config) Validate() error {
	if c.Strategy == "" {
		c.Strategy = StrategySimple
	}

	switch c.Strategy {
	case StrategySimple:
	case StrategyLRU:
		if c.MaxSize <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
				fmt.Sprintf("max_size must be positive for LRU cache, got %d", c.MaxSize))
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("unknown cache strategy: %s", c.Strategy))
	}
	return nil
}

// NewFromConfig builds a cache from config plus any extra options.
func NewFromConfig[V any](config Config, options ...Option[V]) (Cache[V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Strategy {
	case StrategyLRU:
		return NewLRU[V](config.MaxSize, options...)
	default:
		return NewSimple[V](options...)
	}
}

// NewSimple creates a cache with no eviction policy.
func NewSimple[V any](options ...Option[V]) (Cache[V], error) {
	return newSimpleCache[V](applyOptions(options...))
}

// NewLRU creates a cache holding at most maxSize entries.
func NewLRU[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	return newLRUCache[V](maxSize, applyOptions(options...))
}
