package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/pager"
)

func status(r pager.Result) string {
	switch {
	case errors.Is(r.Err, connection.ErrCursorMismatch), errors.Is(r.Err, pager.ErrPaginationHalted):
		return "halted: cursor mismatch"
	case r.Err != nil:
		return "error: " + r.Err.Error()
	case r.Entry == nil:
		return "empty"
	case r.Entry.Connection.HasNextPage():
		return "more pages"
	default:
		return "complete"
	}
}

func formatMetric(v *float64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

// printTable writes one block per slot: a summary line, then up to rows
// dimensions in edge order. rows 0 prints every dimension.
func printTable(w io.Writer, results []pager.Result, rows int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for i, r := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(tw)
		}
		var nodes []connection.Node
		var revision uint64
		if r.Entry != nil {
			nodes = connection.Nodes(r.Entry.Connection)
			revision = r.Entry.Revision
		}
		_, _ = fmt.Fprintf(tw, "%s\tedges=%d\tpages=%d\trevision=%d\t%s\n",
			r.Key.ParentID, len(nodes), r.Pages, revision, status(r))
		_, _ = fmt.Fprintln(tw, "  NAME\tEUCLIDEAN DISTANCE\t\t\t")

		shown := nodes
		if rows > 0 && len(shown) > rows {
			shown = shown[:rows]
		}
		for _, n := range shown {
			_, _ = fmt.Fprintf(tw, "  %s\t%s\t\t\t\n", n.Name, formatMetric(n.DriftMetric))
		}
		if hidden := len(nodes) - len(shown); hidden > 0 {
			_, _ = fmt.Fprintf(tw, "  ... %d more\t\t\t\t\n", hidden)
		}
	}
	return tw.Flush()
}
