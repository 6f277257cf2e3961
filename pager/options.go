package pager

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/fragment"
)

// Option configures a Pager.
type Option func(*Pager) error

// WithPageSize sets the count requested per page.
func WithPageSize(n int) Option {
	return func(p *Pager) error {
		if n <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "pager", "WithPageSize",
				"page size must be positive")
		}
		p.pageSize = n
		return nil
	}
}

// WithFetchTimeout bounds each fetch. A fetch that runs out of time fails
// transiently and commits nothing.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Pager) error {
		if d < 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "pager", "WithFetchTimeout",
				"timeout must not be negative")
		}
		p.fetchTimeout = d
		return nil
	}
}

// WithRateLimiter throttles fetches. Share one limiter between pagers to cap
// the total request rate.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(p *Pager) error {
		if l != nil {
			p.limiter = l
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pager) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// WithMetrics records pager metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Pager) error {
		p.metrics = m
		return nil
	}
}

// WithRequestIDs overrides the request id generator used in logs.
func WithRequestIDs(next func() string) Option {
	return func(p *Pager) error {
		if next != nil {
			p.requestID = next
		}
		return nil
	}
}

func defaults(p *Pager) {
	p.pageSize = fragment.DefaultCount
	p.limiter = rate.NewLimiter(rate.Inf, 1)
	p.logger = slog.Default()
	p.requestID = uuid.NewString
}
