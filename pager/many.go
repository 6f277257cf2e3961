package pager

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/slot"
)

// Result is the outcome of LoadAll for one pager.
type Result struct {
	Key   connection.SlotKey
	Entry *slot.Entry
	Pages int
	// Err holds per-slot outcomes that did not abort the batch, such as a
	// cursor mismatch or an already halted slot.
	Err error
}

// LoadMany runs LoadAll on every pager concurrently. Slots are independent:
// halted or stale slots are reported in their Result. Any other failure
// cancels the remaining loads and is returned.
func LoadMany(ctx context.Context, pagers []*Pager, maxPages int) ([]Result, error) {
	results := make([]Result, len(pagers))
	g, gctx := errgroup.WithContext(ctx)

	for i, p := range pagers {
		g.Go(func() error {
			entry, pages, err := p.LoadAll(gctx, maxPages)
			results[i] = Result{Key: p.Key(), Entry: entry, Pages: pages, Err: err}
			if err == nil || slotLocal(err) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return results, errors.Wrap(err, "pager", "LoadMany", "load slots")
	}
	return results, nil
}

func slotLocal(err error) bool {
	return errors.Is(err, connection.ErrCursorMismatch) ||
		errors.Is(err, ErrPaginationHalted) ||
		errors.Is(err, ErrStalePage) ||
		errors.Is(err, ErrRequestInFlight)
}
