package fragment

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
)

func TestSchema_Loads(t *testing.T) {
	s, err := Schema()
	require.NoError(t, err)

	dim := s.Types["EmbeddingDimension"]
	require.NotNil(t, dim)
	metric := dim.Fields.ForName("driftMetric")
	require.NotNil(t, metric)
	assert.Equal(t, "DriftMetric", metric.Arguments.ForName("metric").Type.Name())

	enum := s.Types["DriftMetric"]
	require.NotNil(t, enum)
	assert.Equal(t, ast.Enum, enum.Kind)
	assert.NotNil(t, enum.EnumValues.ForName("euclideanDistance"))
}

func TestQueryDocument_Selection(t *testing.T) {
	doc, err := Validate(QueryDocument)
	require.NoError(t, err)

	op := doc.Operations.ForName(OperationName)
	require.NotNil(t, op)

	count := op.VariableDefinitions.ForName("count")
	require.NotNil(t, count)
	assert.Equal(t, "50", count.DefaultValue.Raw)

	cursor := op.VariableDefinitions.ForName("cursor")
	require.NotNil(t, cursor)
	assert.Equal(t, ast.NullValue, cursor.DefaultValue.Kind)

	model := op.SelectionSet[0].(*ast.Field)
	var conn *ast.Field
	for _, sel := range model.SelectionSet {
		if f, ok := sel.(*ast.Field); ok && f.Alias == FieldAlias {
			conn = f
		}
	}
	require.NotNil(t, conn, "connection field must be selected as %s", FieldAlias)

	edges := conn.SelectionSet[0].(*ast.Field)
	node := edges.SelectionSet[0].(*ast.Field)
	assert.Equal(t, "embedding", node.Alias)
	assert.Equal(t, "node", node.Name)

	drift := node.SelectionSet[2].(*ast.Field)
	assert.Equal(t, "euclideanDistance", drift.Alias)
	assert.Equal(t, "driftMetric", drift.Name)
	assert.Equal(t, "euclideanDistance", drift.Arguments.ForName("metric").Value.Raw)
}

func TestValidate_RejectsUnknownField(t *testing.T) {
	_, err := Validate(`query { model { embeddingDimensions { edges { node { color } } } } }`)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	var list gqlerror.List
	require.True(t, errors.As(err, &list))
	assert.NotEmpty(t, list)
}

func TestHandleAndSlotKey(t *testing.T) {
	assert.Equal(t, "ModelEmbeddingsTable_embeddingDimensions_connection", Handle())

	key, err := SlotKey("model-1")
	require.NoError(t, err)
	assert.Equal(t, "model-1.ModelEmbeddingsTable_embeddingDimensions_connection", key.String())
}

func TestRequest_Variables(t *testing.T) {
	first := Request{ParentID: "m1"}.Variables()
	assert.Equal(t, map[string]any{"id": "m1", "count": 50, "cursor": nil}, first)

	next := Request{ParentID: "m1", Count: 10, Cursor: "YzE="}.Variables()
	assert.Equal(t, map[string]any{"id": "m1", "count": 10, "cursor": "YzE="}, next)
}

func TestDecodeResponse(t *testing.T) {
	body := `{"data":{"model":{"id":"m1","embeddingDimensions":{
		"edges":[
			{"embedding":{"id":"d1","name":"age","euclideanDistance":0.5},"cursor":"c1"},
			{"embedding":{"id":"d2","name":"zip","euclideanDistance":null},"cursor":null}
		],
		"pageInfo":{"endCursor":"c1","hasNextPage":true}}}}}`

	page, err := DecodeResponse([]byte(body))
	require.NoError(t, err)

	require.Len(t, page.Edges, 2)
	assert.Equal(t, "d1", page.Edges[0].Node.ID)
	require.NotNil(t, page.Edges[0].Node.DriftMetric)
	assert.InDelta(t, 0.5, *page.Edges[0].Node.DriftMetric, 1e-12)
	assert.Equal(t, "c1", page.Edges[0].Cursor)

	assert.Nil(t, page.Edges[1].Node.DriftMetric)
	assert.Empty(t, page.Edges[1].Cursor)

	require.NotNil(t, page.PageInfo)
	assert.Equal(t, "c1", page.PageInfo.EndCursor)
	assert.True(t, page.PageInfo.HasNextPage)
}

func TestDecodeResponse_MissingPageInfoIsMalformedOnMerge(t *testing.T) {
	body := `{"data":{"model":{"id":"m1","embeddingDimensions":{"edges":[]}}}}`

	page, err := DecodeResponse([]byte(body))
	require.NoError(t, err)
	assert.Nil(t, page.PageInfo)

	_, err = connection.MergePage(nil, page, connection.Forward)
	assert.True(t, errors.Is(err, connection.ErrMalformedPage))
}

func TestDecodeResponse_Failures(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		transient bool
		target    error
	}{
		{"not json", `{`, false, errors.ErrParsingFailed},
		{"no model", `{"data":{"model":null}}`, false, connection.ErrMalformedPage},
		{"graphql error", `{"errors":[{"message":"boom","path":["model"]}]}`, false, nil},
		{"retryable error", `{"errors":[{"message":"slow","extensions":{"code":"TIMEOUT"}}]}`, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponse([]byte(tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.transient, errors.IsTransient(err))
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target))
			} else {
				var list gqlerror.List
				assert.True(t, errors.As(err, &list))
			}
		})
	}
}

func TestFetcher(t *testing.T) {
	var gotVars map[string]any
	exec := ExecutorFunc(func(_ context.Context, query string, vars map[string]any) ([]byte, error) {
		assert.Equal(t, QueryDocument, query)
		gotVars = vars
		return []byte(`{"data":{"model":{"id":"m1","embeddingDimensions":{"edges":[],"pageInfo":{"endCursor":null,"hasNextPage":false}}}}}`), nil
	})

	f, err := NewFetcher(exec, nil)
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), Request{ParentID: "m1", Count: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Len())
	assert.False(t, page.HasNextPage())
	assert.Equal(t, 5, gotVars["count"])
}

func TestFetcher_ExecutorFailure(t *testing.T) {
	f, err := NewFetcher(ExecutorFunc(func(context.Context, string, map[string]any) ([]byte, error) {
		return nil, fmt.Errorf("connection refused")
	}), nil)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), Request{ParentID: "m1"})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, Request{ParentID: "m1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFetcher_NilExecutor(t *testing.T) {
	_, err := NewFetcher(nil, nil)
	assert.True(t, errors.IsInvalid(err))
}
