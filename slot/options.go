package slot

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/c360/driftview/metric"
	"github.com/c360/driftview/pkg/cache"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	cache    cache.Config
	now      func() time.Time
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: slog.Default(),
		cache:  cache.DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics exports store and cache metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithCache selects the eviction strategy of a MemoryStore.
func WithCache(cfg cache.Config) Option {
	return func(o *options) {
		o.cache = cfg
	}
}

// WithClock overrides the UpdatedAt time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func (o *options) coreMetrics() *metric.Metrics {
	if o.registry == nil {
		return nil
	}
	return o.registry.CoreMetrics()
}

func formatRevision(rev uint64) string {
	return strconv.FormatUint(rev, 10)
}
