// Package connection models cursor-paginated GraphQL connections and merges
// freshly fetched pages into a previously cached connection.
//
// A Connection is an ordered list of edges plus PageInfo. MergePage is a pure
// function: it never mutates its inputs and the caller decides where the
// result is persisted (see package slot).
package connection

import (
	"fmt"
	"strings"

	"github.com/c360/driftview/errors"
)

// Node is one embedding dimension row.
type Node struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// DriftMetric is nil when the server reports null (no reference data).
	DriftMetric *float64 `json:"euclideanDistance"`
}

// Edge wraps a Node with its opaque, server-assigned cursor.
// An empty Cursor means the server sent none.
type Edge struct {
	Node   Node   `json:"node"`
	Cursor string `json:"cursor,omitempty"`
}

// PageInfo describes the pagination frontier reported with a page.
type PageInfo struct {
	EndCursor       string `json:"endCursor,omitempty"`
	HasNextPage     bool   `json:"hasNextPage"`
	StartCursor     string `json:"startCursor,omitempty"`
	HasPreviousPage bool   `json:"hasPreviousPage,omitempty"`
}

// Connection is an ordered page (or accumulation of pages) of edges.
// A nil PageInfo means the page arrived without one.
type Connection struct {
	Edges    []Edge    `json:"edges"`
	PageInfo *PageInfo `json:"pageInfo"`
}

// Direction selects where a new page is placed relative to cached edges.
type Direction int

const (
	// Forward appends incoming edges after the cached ones.
	Forward Direction = iota
	// Backward prepends incoming edges before the cached ones.
	Backward
)

// String returns the lower-case name used in connection metadata.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "unknown"
	}
}

// ParseDirection parses "forward" or "backward" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	default:
		return Forward, errors.WrapInvalid(errors.ErrInvalidData, "connection", "ParseDirection",
			fmt.Sprintf("unknown direction %q", s))
	}
}

// Len returns the number of edges, treating nil as empty.
func (c *Connection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Edges)
}

// HasNextPage reports whether the server advertised more edges after this one.
func (c *Connection) HasNextPage() bool {
	return c != nil && c.PageInfo != nil && c.PageInfo.HasNextPage
}

// Clone returns a deep copy of c.
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	out := &Connection{Edges: make([]Edge, len(c.Edges))}
	for i, e := range c.Edges {
		out.Edges[i] = e.clone()
	}
	if c.PageInfo != nil {
		pi := *c.PageInfo
		out.PageInfo = &pi
	}
	return out
}

func (e Edge) clone() Edge {
	if e.Node.DriftMetric != nil {
		v := *e.Node.DriftMetric
		e.Node.DriftMetric = &v
	}
	return e
}

// Nodes returns the nodes of c in edge order.
func Nodes(c *Connection) []Node {
	if c == nil {
		return nil
	}
	nodes := make([]Node, len(c.Edges))
	for i, e := range c.Edges {
		nodes[i] = e.clone().Node
	}
	return nodes
}

// ResumeCursor returns the cursor the next forward request should start after:
// PageInfo.EndCursor, falling back to the last edge that carries a cursor.
func ResumeCursor(c *Connection) (string, bool) {
	if c == nil {
		return "", false
	}
	if c.PageInfo != nil && c.PageInfo.EndCursor != "" {
		return c.PageInfo.EndCursor, true
	}
	for i := len(c.Edges) - 1; i >= 0; i-- {
		if c.Edges[i].Cursor != "" {
			return c.Edges[i].Cursor, true
		}
	}
	return "", false
}
