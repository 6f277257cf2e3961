package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/drift"
	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/fragment"
)

// Error codes put in the extensions of GraphQL errors.
const (
	CodeValidationFailed = "GRAPHQL_VALIDATION_FAILED"
	CodeBadUserInput     = "BAD_USER_INPUT"
	CodeNotFound         = "NOT_FOUND"
)

type gqlResponse struct {
	Data   any           `json:"data"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// Execute implements fragment.Executor. The document is validated against
// the embedded schema; request problems are reported as GraphQL errors in the
// response body, not as a Go error.
func (m *Memory) Execute(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	schema, err := fragment.Schema()
	if err != nil {
		return nil, err
	}

	doc, errs := gqlparser.LoadQuery(schema, query)
	if len(errs) > 0 {
		for _, e := range errs {
			setCode(e, CodeValidationFailed)
		}
		return encode(gqlResponse{Errors: errs})
	}

	op := doc.Operations.ForName("")
	if op == nil {
		return encode(gqlResponse{Errors: gqlerror.List{
			codedError(CodeValidationFailed, "document must contain exactly one operation"),
		}})
	}
	if op.Operation != ast.Query {
		return encode(gqlResponse{Errors: gqlerror.List{
			codedError(CodeValidationFailed, "only queries are supported"),
		}})
	}

	vars, verr := validator.VariableValues(schema, op, variables)
	if verr != nil {
		return encode(gqlResponse{Errors: asList(verr, CodeBadUserInput)})
	}

	r := &resolver{ctx: ctx, mem: m, vars: vars, fragments: doc.Fragments}
	data := r.object(op.SelectionSet, ast.Path{}, func(f *ast.Field, path ast.Path) (any, bool) {
		if f.Name != "model" {
			return r.typename(f, "Query")
		}
		return r.model(f, path)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.nullData {
		return encode(gqlResponse{Data: nil, Errors: r.errs})
	}
	return encode(gqlResponse{Data: data, Errors: r.errs})
}

type resolver struct {
	ctx       context.Context
	mem       *Memory
	vars      map[string]any
	fragments ast.FragmentDefinitionList
	errs      gqlerror.List
	// nullData is set when a non-null root field failed.
	nullData bool
}

type fieldFunc func(f *ast.Field, path ast.Path) (any, bool)

// object resolves a selection set, expanding fragments. Fields are keyed by
// their response name.
func (r *resolver) object(set ast.SelectionSet, path ast.Path, resolve fieldFunc) map[string]any {
	out := make(map[string]any)
	r.collect(set, path, out, resolve)
	return out
}

func (r *resolver) collect(set ast.SelectionSet, path ast.Path, out map[string]any, resolve fieldFunc) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if _, done := out[s.Alias]; done {
				continue
			}
			v, ok := resolve(s, append(path, ast.PathName(s.Alias)))
			if ok {
				out[s.Alias] = v
			}
		case *ast.InlineFragment:
			r.collect(s.SelectionSet, path, out, resolve)
		case *ast.FragmentSpread:
			if def := r.fragments.ForName(s.Name); def != nil {
				r.collect(def.SelectionSet, path, out, resolve)
			}
		}
	}
}

func (r *resolver) typename(f *ast.Field, typ string) (any, bool) {
	if f.Name == "__typename" {
		return typ, true
	}
	return nil, true
}

func (r *resolver) fail(path ast.Path, code, format string, args ...any) {
	e := codedError(code, format, args...)
	e.Path = append(ast.Path(nil), path...)
	r.errs = append(r.errs, e)
}

func (r *resolver) model(f *ast.Field, path ast.Path) (any, bool) {
	args := f.ArgumentMap(r.vars)
	id, _ := args["id"].(string)

	m := r.mem
	m.mu.RLock()
	if id == "" {
		id = m.defaultModel
	}
	_, found := m.models[id]
	m.mu.RUnlock()
	if !found {
		r.fail(path, CodeNotFound, "model %q not found", id)
		r.nullData = true
		return nil, true
	}

	return r.object(f.SelectionSet, path, func(sub *ast.Field, subPath ast.Path) (any, bool) {
		switch sub.Name {
		case "id":
			return id, true
		case "embeddingDimensions":
			return r.connection(id, sub, subPath)
		default:
			return r.typename(sub, "Model")
		}
	}), true
}

func (r *resolver) connection(modelID string, f *ast.Field, path ast.Path) (any, bool) {
	args := f.ArgumentMap(r.vars)

	var pa pageArgs
	var err error
	if pa.first, err = optionalCount(args["first"]); err != nil {
		r.fail(path, CodeBadUserInput, "first: %v", err)
		r.nullData = true
		return nil, true
	}
	if pa.last, err = optionalCount(args["last"]); err != nil {
		r.fail(path, CodeBadUserInput, "last: %v", err)
		r.nullData = true
		return nil, true
	}
	// first carries a schema default; a last-only request must not be
	// clipped by it.
	if pa.last != nil && f.Arguments.ForName("first") == nil {
		pa.first = nil
	}
	pa.after, _ = args["after"].(string)
	pa.before, _ = args["before"].(string)

	_, page, err := r.mem.page(r.ctx, modelID, pa)
	if err != nil {
		r.fail(path, CodeBadUserInput, "%v", err)
		r.nullData = true
		return nil, true
	}

	return r.object(f.SelectionSet, path, func(sub *ast.Field, subPath ast.Path) (any, bool) {
		switch sub.Name {
		case "edges":
			edges := make([]any, 0, len(page.edges))
			for i, row := range page.edges {
				edges = append(edges, r.edge(row, sub.SelectionSet, append(subPath, ast.PathIndex(i))))
			}
			return edges, true
		case "pageInfo":
			return r.pageInfo(page, sub.SelectionSet, subPath), true
		default:
			return r.typename(sub, "EmbeddingDimensionConnection")
		}
	}), true
}

func (r *resolver) edge(row row, set ast.SelectionSet, path ast.Path) map[string]any {
	return r.object(set, path, func(f *ast.Field, p ast.Path) (any, bool) {
		switch f.Name {
		case "cursor":
			return encodeCursor(row.pos), true
		case "node":
			return r.node(row.node, f.SelectionSet, p), true
		default:
			return r.typename(f, "EmbeddingDimensionEdge")
		}
	})
}

func (r *resolver) node(n connection.Node, set ast.SelectionSet, path ast.Path) map[string]any {
	return r.object(set, path, func(f *ast.Field, p ast.Path) (any, bool) {
		switch f.Name {
		case "id":
			return n.ID, true
		case "name":
			return n.Name, true
		case "driftMetric":
			raw, _ := f.ArgumentMap(r.vars)["metric"].(string)
			if _, err := drift.ParseMetric(raw); err != nil {
				r.fail(p, CodeBadUserInput, "unsupported metric %q", raw)
				return nil, true
			}
			if n.DriftMetric == nil {
				return nil, true
			}
			return *n.DriftMetric, true
		default:
			return r.typename(f, "EmbeddingDimension")
		}
	})
}

func (r *resolver) pageInfo(page pageResult, set ast.SelectionSet, path ast.Path) map[string]any {
	var start, end any
	if len(page.edges) > 0 {
		start = encodeCursor(page.edges[0].pos)
		end = encodeCursor(page.edges[len(page.edges)-1].pos)
	}
	return r.object(set, path, func(f *ast.Field, _ ast.Path) (any, bool) {
		switch f.Name {
		case "hasNextPage":
			return page.hasNextPage, true
		case "hasPreviousPage":
			return page.hasPreviousPage, true
		case "startCursor":
			return start, true
		case "endCursor":
			return end, true
		default:
			return r.typename(f, "PageInfo")
		}
	})
}

// optionalCount converts a coerced Int argument. Nil stays nil.
func optionalCount(v any) (*int, error) {
	var n int64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("%v is not an integer", x)
		}
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", x.String())
		}
		n = i
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
	if n < 0 {
		return nil, fmt.Errorf("must not be negative, got %d", n)
	}
	i := int(n)
	return &i, nil
}

func codedError(code, format string, args ...any) *gqlerror.Error {
	e := gqlerror.Errorf(format, args...)
	setCode(e, code)
	return e
}

func setCode(e *gqlerror.Error, code string) {
	if e == nil {
		return
	}
	if e.Extensions == nil {
		e.Extensions = make(map[string]any)
	}
	if _, ok := e.Extensions["code"]; !ok {
		e.Extensions["code"] = code
	}
}

func asList(err error, code string) gqlerror.List {
	var list gqlerror.List
	if errors.As(err, &list) {
		for _, e := range list {
			setCode(e, code)
		}
		return list
	}
	var one *gqlerror.Error
	if errors.As(err, &one) {
		setCode(one, code)
		return gqlerror.List{one}
	}
	return gqlerror.List{codedError(code, "%v", err)}
}

func encode(resp gqlResponse) ([]byte, error) {
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.WrapFatal(err, "Memory", "Execute", "encode response")
	}
	return body, nil
}
