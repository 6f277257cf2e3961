package cache

import (
	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/metric"
)

// Option configures cache behavior.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	// metricsReg is optional; when set, statistics are also exported to Prometheus
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is used as the component label
	metricsPrefix string

	evictCallback EvictCallback[V]
}

// WithMetrics exports cache statistics as Prometheus metrics.
// A nil registry or empty prefix disables the option.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets a callback invoked for evicted and deleted entries.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}

func buildMetrics[V any](opts *cacheOptions[V], constructor string) (*cacheMetrics, error) {
	if opts.metricsReg == nil || opts.metricsPrefix == "" {
		return nil, nil
	}
	m, err := newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
	if err != nil {
		return nil, errors.WrapTransient(err, "cache", constructor, "metrics registration")
	}
	return m, nil
}
