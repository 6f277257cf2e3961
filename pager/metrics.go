package pager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/metric"
)

// Merge error reasons.
const (
	reasonFetch          = "fetch"
	reasonMalformed      = "malformed_page"
	reasonCursorMismatch = "cursor_mismatch"
	reasonStore          = "store"
)

// Metrics are shared by every pager of one process.
type Metrics struct {
	PagesMerged   prometheus.Counter
	MergeErrors   *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	StalePages    prometheus.Counter
}

// NewMetrics creates pager metrics and registers them with registry. Call it
// once per registry.
func NewMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	m := &Metrics{
		PagesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "pager",
			Name:      "pages_merged_total",
			Help:      "Pages merged into a cache slot",
		}),
		MergeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "pager",
			Name:      "merge_errors_total",
			Help:      "Page loads that failed or halted, by reason",
		}, []string{"reason"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "pager",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching one page",
			Buckets:   prometheus.DefBuckets,
		}),
		StalePages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "pager",
			Name:      "stale_pages_total",
			Help:      "Fetched pages discarded because the slot moved on",
		}),
	}
	if registry == nil {
		return m, nil
	}

	if err := registry.RegisterCounter("pager", "pages_merged", m.PagesMerged); err != nil {
		return nil, errors.Wrap(err, "pager", "NewMetrics", "register pages_merged")
	}
	if err := registry.RegisterCounterVec("pager", "merge_errors", m.MergeErrors); err != nil {
		return nil, errors.Wrap(err, "pager", "NewMetrics", "register merge_errors")
	}
	if err := registry.RegisterHistogram("pager", "fetch_duration", m.FetchDuration); err != nil {
		return nil, errors.Wrap(err, "pager", "NewMetrics", "register fetch_duration")
	}
	if err := registry.RegisterCounter("pager", "stale_pages", m.StalePages); err != nil {
		return nil, errors.Wrap(err, "pager", "NewMetrics", "register stale_pages")
	}
	return m, nil
}

func (m *Metrics) merged() {
	if m != nil {
		m.PagesMerged.Inc()
	}
}

func (m *Metrics) failed(reason string) {
	if m != nil {
		m.MergeErrors.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) fetched(d time.Duration) {
	if m != nil {
		m.FetchDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) stale() {
	if m != nil {
		m.StalePages.Inc()
	}
}
