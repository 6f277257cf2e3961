package fragment

import (
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
)

// Error codes a server may put in an error's extensions.
const (
	CodeTransient   = "TRANSIENT_ERROR"
	CodeTimeout     = "TIMEOUT"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
)

type response struct {
	Data   *responseData `json:"data"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

type responseData struct {
	Model *struct {
		ID                  string          `json:"id"`
		EmbeddingDimensions *wireConnection `json:"embeddingDimensions"`
	} `json:"model"`
}

type wireConnection struct {
	Edges    []wireEdge    `json:"edges"`
	PageInfo *wirePageInfo `json:"pageInfo"`
}

type wireEdge struct {
	Embedding connection.Node `json:"embedding"`
	Cursor    *string         `json:"cursor"`
}

type wirePageInfo struct {
	EndCursor   *string `json:"endCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// DecodeResponse turns a GraphQL JSON response into one connection page.
//
// A response carrying errors fails with the gqlerror.List in its chain,
// classified transient when any error's extensions mark it retryable. A page
// without pageInfo is returned with a nil PageInfo so that MergePage reports
// it as malformed.
func DecodeResponse(body []byte) (*connection.Connection, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "fragment", "DecodeResponse",
			fmt.Sprintf("decode response: %v", err))
	}

	if len(resp.Errors) > 0 {
		if retryable(resp.Errors) {
			return nil, errors.WrapTransient(resp.Errors, "fragment", "DecodeResponse", "execute query")
		}
		return nil, errors.WrapInvalid(resp.Errors, "fragment", "DecodeResponse", "execute query")
	}

	if resp.Data == nil || resp.Data.Model == nil || resp.Data.Model.EmbeddingDimensions == nil {
		return nil, errors.WrapInvalid(connection.ErrMalformedPage, "fragment", "DecodeResponse",
			"response has no embeddingDimensions connection")
	}

	wire := resp.Data.Model.EmbeddingDimensions
	page := &connection.Connection{Edges: make([]connection.Edge, 0, len(wire.Edges))}
	for _, e := range wire.Edges {
		edge := connection.Edge{Node: e.Embedding}
		if e.Cursor != nil {
			edge.Cursor = *e.Cursor
		}
		page.Edges = append(page.Edges, edge)
	}
	if wire.PageInfo != nil {
		page.PageInfo = &connection.PageInfo{HasNextPage: wire.PageInfo.HasNextPage}
		if wire.PageInfo.EndCursor != nil {
			page.PageInfo.EndCursor = *wire.PageInfo.EndCursor
		}
	}
	return page, nil
}

func retryable(errs gqlerror.List) bool {
	for _, e := range errs {
		if e == nil || e.Extensions == nil {
			continue
		}
		if r, ok := e.Extensions["retryable"].(bool); ok && r {
			return true
		}
		switch e.Extensions["code"] {
		case CodeTransient, CodeTimeout, CodeUnavailable:
			return true
		}
	}
	return false
}
