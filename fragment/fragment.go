// Package fragment owns the GraphQL surface of the embeddings table: the
// schema it is written against, the pagination query, and decoding of
// responses into connection pages.
package fragment

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
)

const (
	// OperationName names the pagination query in QueryDocument.
	OperationName = "ModelEmbeddingsTableEmbeddingDimensionsQuery"

	// ParentAlias and FieldAlias form the connection handle.
	ParentAlias = "ModelEmbeddingsTable"
	FieldAlias  = "embeddingDimensions"

	// DefaultCount is the page size when a request does not set one.
	DefaultCount = 50
)

var (
	//go:embed schema.graphql
	schemaSDL string

	// QueryDocument requests one page of embedding dimensions with the
	// euclidean drift metric.
	//
	//go:embed query.graphql
	QueryDocument string
)

var (
	schemaOnce sync.Once
	schema     *ast.Schema
	schemaErr  error
)

// Schema parses the embedded SDL once and returns it.
func Schema() (*ast.Schema, error) {
	schemaOnce.Do(func() {
		s, gqlErr := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSDL})
		if gqlErr != nil {
			schemaErr = errors.WrapFatal(gqlErr, "fragment", "Schema", "load embedded schema")
			return
		}
		schema = s
	})
	return schema, schemaErr
}

// Validate parses doc and checks it against the schema.
func Validate(doc string) (*ast.QueryDocument, error) {
	s, err := Schema()
	if err != nil {
		return nil, err
	}
	query, errs := gqlparser.LoadQuery(s, doc)
	if len(errs) > 0 {
		return nil, errors.WrapInvalid(errs, "fragment", "Validate", "validate query document")
	}
	return query, nil
}

// Handle is the cache handle of the embeddings connection.
func Handle() string {
	return connection.Handle(ParentAlias, FieldAlias)
}

// SlotKey builds the slot key for the model parentID.
func SlotKey(parentID string) (connection.SlotKey, error) {
	return connection.NewSlotKey(parentID, ParentAlias, FieldAlias)
}

// Request is one page request.
type Request struct {
	ParentID string
	Count    int
	// Cursor resumes after the given edge; empty requests the first page.
	Cursor string
}

// Variables renders the request as query variables. An empty cursor is sent
// as null and a non-positive count falls back to DefaultCount.
func (r Request) Variables() map[string]any {
	count := r.Count
	if count <= 0 {
		count = DefaultCount
	}
	vars := map[string]any{
		"id":     r.ParentID,
		"count":  count,
		"cursor": nil,
	}
	if r.Cursor != "" {
		vars["cursor"] = r.Cursor
	}
	return vars
}

func (r Request) String() string {
	cursor := "null"
	if r.Cursor != "" {
		cursor = r.Cursor
	}
	return fmt.Sprintf("%s(count=%d, cursor=%s)", r.ParentID, r.Count, cursor)
}
