// Package pager loads pages of a connection into a cache slot.
//
// A Pager reads the slot, requests the page after its resume cursor, merges
// the result and commits it with the revision read before the request. A slot
// that moved in the meantime, for example through a refetch, rejects the
// commit and the page is dropped.
package pager

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/fragment"
	"github.com/c360/driftview/slot"
)

var (
	// ErrPaginationHalted is returned once a slot was halted by a cursor
	// mismatch. Refetch clears it.
	ErrPaginationHalted = errors.New("pagination halted")

	// ErrNoMorePages is returned when the slot already holds the last page.
	ErrNoMorePages = errors.New("no more pages")

	// ErrRequestInFlight is returned when LoadNext is called while another
	// load of the same pager is running.
	ErrRequestInFlight = errors.New("request already in flight")

	// ErrStalePage is returned when a fetched page was discarded because the
	// slot changed during the fetch.
	ErrStalePage = errors.New("stale page discarded")
)

// Fetcher requests one page.
type Fetcher interface {
	Fetch(ctx context.Context, req fragment.Request) (*connection.Connection, error)
}

// Pager pages one connection field of one parent into a slot.
type Pager struct {
	key     connection.SlotKey
	fetcher Fetcher
	store   slot.Store

	pageSize     int
	fetchTimeout time.Duration
	limiter      limiter
	logger       *slog.Logger
	metrics      *Metrics
	requestID    func() string

	inFlight atomic.Bool
}

type limiter interface {
	Wait(ctx context.Context) error
}

// New creates a pager for key.
func New(key connection.SlotKey, fetcher Fetcher, store slot.Store, opts ...Option) (*Pager, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil || store == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "pager", "New", "fetcher and store are required")
	}

	p := &Pager{key: key, fetcher: fetcher, store: store}
	defaults(p)
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pager", "slot", key.String())
	return p, nil
}

// Key returns the slot this pager writes.
func (p *Pager) Key() connection.SlotKey {
	return p.key
}

// Current returns the committed slot entry, or nil when the slot is empty.
func (p *Pager) Current(ctx context.Context) (*slot.Entry, error) {
	entry, err := p.store.Load(ctx, p.key)
	if errors.Is(err, slot.ErrSlotNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "Pager", "Current", "load slot")
	}
	return entry, nil
}

// LoadNext fetches and commits the next page.
//
// The returned entry is the committed state. With ErrNoMorePages or
// ErrPaginationHalted it is the unchanged current entry. A cursor mismatch
// commits the merged edges as halted and returns the entry together with
// connection.ErrCursorMismatch.
func (p *Pager) LoadNext(ctx context.Context) (*slot.Entry, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return nil, errors.WrapInvalid(ErrRequestInFlight, "Pager", "LoadNext", "start load")
	}
	defer p.inFlight.Store(false)

	return p.load(ctx)
}

// Refetch drops the slot and loads the first page again. A load already in
// flight finds its commit rejected as stale.
func (p *Pager) Refetch(ctx context.Context) (*slot.Entry, error) {
	if err := p.store.Reset(ctx, p.key); err != nil {
		return nil, errors.Wrap(err, "Pager", "Refetch", "reset slot")
	}
	p.logger.Info("Slot reset for refetch")
	return p.load(ctx)
}

// LoadAll loads pages until the connection is exhausted or maxPages pages
// were fetched in this call. maxPages <= 0 means no limit. It returns the
// final entry and the number of pages merged.
func (p *Pager) LoadAll(ctx context.Context, maxPages int) (*slot.Entry, int, error) {
	var last *slot.Entry
	pages := 0
	for maxPages <= 0 || pages < maxPages {
		entry, err := p.LoadNext(ctx)
		if entry != nil {
			last = entry
		}
		switch {
		case err == nil:
			pages++
		case errors.Is(err, ErrNoMorePages):
			return last, pages, nil
		case errors.Is(err, connection.ErrCursorMismatch):
			return last, pages + 1, err
		default:
			return last, pages, err
		}
	}
	return last, pages, nil
}

func (p *Pager) load(ctx context.Context) (*slot.Entry, error) {
	current, err := p.store.Load(ctx, p.key)
	if err != nil && !errors.Is(err, slot.ErrSlotNotFound) {
		return nil, errors.Wrap(err, "Pager", "load", "load slot")
	}

	var (
		cached   *connection.Connection
		expected uint64
		cursor   string
	)
	if current != nil {
		if current.Halted {
			return current, errors.WrapInvalid(ErrPaginationHalted, "Pager", "load", "resume "+p.key.String())
		}
		if !current.Connection.HasNextPage() {
			return current, ErrNoMorePages
		}
		var ok bool
		if cursor, ok = connection.ResumeCursor(current.Connection); !ok {
			return current, errors.WrapInvalid(ErrPaginationHalted, "Pager", "load", "slot has no resume cursor")
		}
		cached = current.Connection
		expected = current.Revision
	}

	if err := p.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.WrapTransient(errors.ErrRateLimited, "Pager", "load", err.Error())
	}

	req := fragment.Request{ParentID: p.key.ParentID, Count: p.pageSize, Cursor: cursor}
	logger := p.logger.With("request_id", p.requestID())

	fetchCtx := ctx
	if p.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	page, err := p.fetcher.Fetch(fetchCtx, req)
	p.metrics.fetched(time.Since(start))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.metrics.failed(reasonFetch)
		return nil, errors.Wrap(err, "Pager", "load", "fetch "+req.String())
	}
	if err := ctx.Err(); err != nil {
		logger.Debug("Discarding page fetched after cancellation")
		return nil, err
	}

	merged, mergeErr := connection.MergePage(cached, page, connection.Forward)
	halted := errors.Is(mergeErr, connection.ErrCursorMismatch)
	if mergeErr != nil && !halted {
		p.metrics.failed(reasonMalformed)
		logger.Warn("Dropping malformed page", "request", req.String(), "error", mergeErr)
		return nil, mergeErr
	}

	entry, err := p.store.Commit(ctx, p.key, expected, merged, halted)
	if err != nil {
		if errors.Is(err, slot.ErrStaleRevision) {
			p.metrics.stale()
			logger.Debug("Discarding stale page", "expected_revision", expected)
			return nil, errors.WrapInvalid(ErrStalePage, "Pager", "load", req.String())
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.metrics.failed(reasonStore)
		return nil, errors.Wrap(err, "Pager", "load", "commit page")
	}

	if halted {
		p.metrics.failed(reasonCursorMismatch)
		logger.Warn("Server reported more pages without a cursor; pagination halted",
			"edges", entry.Connection.Len(), "revision", entry.Revision)
		return entry, mergeErr
	}

	p.metrics.merged()
	logger.Debug("Merged page",
		"request", req.String(),
		"page_edges", page.Len(),
		"edges", entry.Connection.Len(),
		"has_next_page", entry.Connection.HasNextPage(),
		"revision", entry.Revision)
	return entry, nil
}
