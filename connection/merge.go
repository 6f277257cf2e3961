package connection

import (
	"fmt"

	"github.com/c360/driftview/errors"
)

var (
	// ErrMalformedPage is returned when an incoming page has no PageInfo.
	// The fetch is unusable and the cache slot must be left unchanged.
	ErrMalformedPage = errors.New("malformed page: missing pageInfo")

	// ErrCursorMismatch is returned when the server claims more pages but the
	// page carries no cursor to resume from. MergePage still returns the merged
	// connection; callers keep it for display and stop loading more.
	ErrCursorMismatch = errors.New("cursor mismatch: pagination frontier unknown")
)

// MergePage merges incoming into cached and returns a new Connection.
//
// Forward appends incoming edges, Backward prepends them. Edges are
// deduplicated by node ID: the first occurrence keeps its position while the
// most recently fetched occurrence supplies the values. The result PageInfo is
// a copy of incoming's.
//
// cached may be nil for the first page. On ErrCursorMismatch the merged
// connection is returned alongside the error.
func MergePage(cached, incoming *Connection, dir Direction) (*Connection, error) {
	if incoming == nil || incoming.PageInfo == nil {
		return nil, errors.WrapInvalid(ErrMalformedPage, "connection", "MergePage", "validate page")
	}
	if dir != Forward && dir != Backward {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "connection", "MergePage",
			fmt.Sprintf("unsupported direction %d", dir))
	}

	var older []Edge
	if cached != nil {
		older = cached.Edges
	}
	newer := incoming.Edges

	combined := make([]taggedEdge, 0, len(older)+len(newer))
	if dir == Forward {
		combined = appendTagged(combined, older, 0)
		combined = appendTagged(combined, newer, 1)
	} else {
		combined = appendTagged(combined, newer, 1)
		combined = appendTagged(combined, older, 0)
	}

	pi := *incoming.PageInfo
	merged := &Connection{
		Edges:    dedupe(combined),
		PageInfo: &pi,
	}

	if frontierLost(incoming) {
		return merged, errors.WrapInvalid(ErrCursorMismatch, "connection", "MergePage",
			"determine resume cursor")
	}
	return merged, nil
}

// taggedEdge remembers which fetch an edge came from and its index within it,
// so the newest value wins regardless of where it lands in combined order.
type taggedEdge struct {
	edge  Edge
	fetch int
	index int
}

func appendTagged(dst []taggedEdge, edges []Edge, fetch int) []taggedEdge {
	for i, e := range edges {
		dst = append(dst, taggedEdge{edge: e, fetch: fetch, index: i})
	}
	return dst
}

func (t taggedEdge) newerThan(o taggedEdge) bool {
	if t.fetch != o.fetch {
		return t.fetch > o.fetch
	}
	return t.index > o.index
}

func dedupe(combined []taggedEdge) []Edge {
	position := make(map[string]int, len(combined))
	winners := make([]taggedEdge, 0, len(combined))

	for _, t := range combined {
		pos, seen := position[t.edge.Node.ID]
		if !seen {
			position[t.edge.Node.ID] = len(winners)
			winners = append(winners, t)
			continue
		}
		if t.newerThan(winners[pos]) {
			winners[pos] = t
		}
	}

	out := make([]Edge, len(winners))
	for i, t := range winners {
		out[i] = t.edge.clone()
	}
	return out
}

// frontierLost reports whether the page advertises a next page without any
// way to resume. A page with edges must carry edge cursors; an empty page may
// rely on PageInfo.EndCursor alone.
func frontierLost(page *Connection) bool {
	if !page.PageInfo.HasNextPage {
		return false
	}
	for _, e := range page.Edges {
		if e.Cursor != "" {
			return false
		}
	}
	return len(page.Edges) > 0 || page.PageInfo.EndCursor == ""
}
