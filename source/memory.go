// Package source is an in-process page source for the embeddings connection.
// It answers the fragment query against seeded data so the pager can be run
// end to end without a remote server.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tidwall/btree"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/drift"
	"github.com/c360/driftview/errors"
)

type row struct {
	pos  int
	node connection.Node
}

func rowLess(a, b row) bool {
	return a.pos < b.pos
}

type model struct {
	id   string
	rows *btree.BTreeG[row]
	ids  map[string]int // dimension id -> position
	next int
}

// Memory serves pages from seeded models. It is safe for concurrent use.
type Memory struct {
	mu           sync.RWMutex
	models       map[string]*model
	defaultModel string
	maxPageSize  int
	logger       *slog.Logger
}

// Option configures Memory.
type Option func(*Memory)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMaxPageSize caps first/last. Larger requests are clamped.
func WithMaxPageSize(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxPageSize = n
		}
	}
}

// NewMemory creates an empty source.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		models:      make(map[string]*model),
		maxPageSize: 500,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "source")
	return m
}

// AddModel appends dimensions to the model id, computing each drift metric.
// The first model added answers queries that pass a null id. Re-adding a
// dimension id replaces its values in place.
func (m *Memory) AddModel(id string, dims []drift.Dimension) error {
	if id == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Memory", "AddModel", "model id is empty")
	}

	rows := make([]connection.Node, 0, len(dims))
	for _, d := range dims {
		if d.ID == "" {
			return errors.WrapInvalid(errors.ErrInvalidData, "Memory", "AddModel",
				fmt.Sprintf("dimension %q has no id", d.Name))
		}
		metric, err := d.Compute(drift.EuclideanDistance)
		if err != nil {
			return errors.Wrap(err, "Memory", "AddModel", "compute drift for "+d.ID)
		}
		rows = append(rows, connection.Node{ID: d.ID, Name: d.Name, DriftMetric: metric})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mdl, ok := m.models[id]
	if !ok {
		mdl = &model{id: id, rows: btree.NewBTreeG[row](rowLess), ids: make(map[string]int)}
		m.models[id] = mdl
		if m.defaultModel == "" {
			m.defaultModel = id
		}
	}
	for _, n := range rows {
		if pos, exists := mdl.ids[n.ID]; exists {
			mdl.rows.Set(row{pos: pos, node: n})
			continue
		}
		mdl.ids[n.ID] = mdl.next
		mdl.rows.Set(row{pos: mdl.next, node: n})
		mdl.next++
	}

	m.logger.Debug("Model seeded", "model", id, "dimensions", mdl.rows.Len())
	return nil
}

// RemoveDimension deletes a dimension from a model. Later pages shift but
// cursors already handed out stay valid.
func (m *Memory) RemoveDimension(modelID, dimensionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	mdl, ok := m.models[modelID]
	if !ok {
		return false
	}
	pos, ok := mdl.ids[dimensionID]
	if !ok {
		return false
	}
	delete(mdl.ids, dimensionID)
	_, removed := mdl.rows.Delete(row{pos: pos})
	return removed
}

// Models returns the seeded model ids.
func (m *Memory) Models() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.models))
	for id := range m.models {
		ids = append(ids, id)
	}
	return ids
}

type pageResult struct {
	edges           []row
	hasNextPage     bool
	hasPreviousPage bool
}

type pageArgs struct {
	first, last   *int
	after, before string
}

func (m *Memory) page(_ context.Context, modelID string, args pageArgs) (*model, pageResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if modelID == "" {
		modelID = m.defaultModel
	}
	mdl, ok := m.models[modelID]
	if !ok {
		return nil, pageResult{}, errors.WrapInvalid(errors.ErrKeyNotFound, "Memory", "page",
			fmt.Sprintf("model %q", modelID))
	}

	lower, upper := -1, int(^uint(0)>>1)
	if args.after != "" {
		pos, err := decodeCursor(args.after)
		if err != nil {
			return nil, pageResult{}, err
		}
		lower = pos
	}
	if args.before != "" {
		pos, err := decodeCursor(args.before)
		if err != nil {
			return nil, pageResult{}, err
		}
		upper = pos
	}

	var window []row
	mdl.rows.Ascend(row{pos: lower + 1}, func(r row) bool {
		if r.pos >= upper {
			return false
		}
		window = append(window, r)
		return true
	})

	var res pageResult
	res.hasPreviousPage = lower >= 0 && hasBefore(mdl, lower+1)
	res.hasNextPage = upper != int(^uint(0)>>1) && hasFrom(mdl, upper)

	if args.first != nil {
		n := m.clamp(*args.first)
		if len(window) > n {
			window = window[:n]
			res.hasNextPage = true
		}
	}
	if args.last != nil {
		n := m.clamp(*args.last)
		if len(window) > n {
			window = window[len(window)-n:]
			res.hasPreviousPage = true
		}
	}
	res.edges = window
	return mdl, res, nil
}

func (m *Memory) clamp(n int) int {
	if n > m.maxPageSize {
		return m.maxPageSize
	}
	return n
}

// hasBefore reports whether any row sits below pos.
func hasBefore(mdl *model, pos int) bool {
	found := false
	mdl.rows.Descend(row{pos: pos - 1}, func(row) bool {
		found = true
		return false
	})
	return found
}

// hasFrom reports whether any row sits at or above pos.
func hasFrom(mdl *model, pos int) bool {
	found := false
	mdl.rows.Ascend(row{pos: pos}, func(row) bool {
		found = true
		return false
	})
	return found
}
