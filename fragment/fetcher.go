package fragment

import (
	"context"
	"log/slog"

	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
)

// Executor runs a GraphQL document and returns the raw JSON response.
type Executor interface {
	Execute(ctx context.Context, query string, variables map[string]any) ([]byte, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, query string, variables map[string]any) ([]byte, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	return f(ctx, query, variables)
}

// Fetcher requests pages of QueryDocument through an Executor.
type Fetcher struct {
	exec   Executor
	logger *slog.Logger
}

// NewFetcher validates QueryDocument against the schema and returns a Fetcher
// bound to exec.
func NewFetcher(exec Executor, logger *slog.Logger) (*Fetcher, error) {
	if exec == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "fragment", "NewFetcher", "executor is nil")
	}
	if _, err := Validate(QueryDocument); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{exec: exec, logger: logger.With("component", "fragment")}, nil
}

// Fetch executes one page request and decodes it.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*connection.Connection, error) {
	body, err := f.exec.Execute(ctx, QueryDocument, req.Variables())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "Fetcher", "Fetch", "execute "+OperationName)
	}

	page, err := DecodeResponse(body)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("Fetched page", "request", req.String(), "edges", page.Len())
	return page, nil
}
