// Package main implements the driftview command. It seeds an in-process page
// source with synthetic embedding data, pages every model's embedding
// dimensions into cache slots and prints the euclidean drift table.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/driftview/config"
	"github.com/c360/driftview/connection"
	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/fragment"
	"github.com/c360/driftview/metric"
	"github.com/c360/driftview/natsclient"
	"github.com/c360/driftview/pager"
	"github.com/c360/driftview/pkg/embedding"
	"github.com/c360/driftview/slot"
	"github.com/c360/driftview/source"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "driftview"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cli.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(stderr, cli.LogLevel, cli.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.LoadFile(cli.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cli.Validate {
		_, _ = fmt.Fprint(stdout, cfg.String())
		return nil
	}

	logger.Info("Starting driftview",
		"config_path", cli.ConfigPath,
		"store", cfg.Store.Backend,
		"page_size", cfg.PageSize)

	registry := metric.NewMetricsRegistry()
	if cfg.Metrics.Addr != "" {
		server := metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, registry)
		if err := server.Start(); err != nil {
			return err
		}
		logger.Info("Metrics server listening", "address", server.Address())
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	src := source.NewMemory(source.WithLogger(logger))
	if err := source.Seed(src, cfg.Seed); err != nil {
		return fmt.Errorf("seed source: %w", err)
	}
	if len(cfg.TextModels) > 0 {
		emb, err := embedding.NewBM25Embedder(cfg.Embedding)
		if err != nil {
			return err
		}
		for _, m := range cfg.TextModels {
			if err := source.SeedText(ctx, src, m, emb); err != nil {
				return fmt.Errorf("seed text model %s: %w", m.ID, err)
			}
		}
	}

	store, closeStore, err := buildStore(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	pagers, err := buildPagers(cfg, src, store, registry, logger)
	if err != nil {
		return err
	}

	if cli.Refetch {
		for _, p := range pagers {
			if _, err := p.Refetch(ctx); err != nil && !stderrors.Is(err, connection.ErrCursorMismatch) {
				return fmt.Errorf("refetch %s: %w", p.Key(), err)
			}
		}
	}

	start := time.Now()
	results, err := pager.LoadMany(ctx, pagers, cfg.MaxPages)
	if err != nil {
		return err
	}
	logger.Info("Pagination finished", "slots", len(results), "duration", time.Since(start))

	return printTable(stdout, results, cli.ShowRows)
}

// buildStore returns the configured slot store and a function releasing it.
func buildStore(ctx context.Context, cfg *config.Config, registry *metric.MetricsRegistry,
	logger *slog.Logger) (slot.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendNATS:
		return buildKVStore(ctx, cfg, registry, logger)
	default:
		store, err := slot.NewMemoryStore(
			slot.WithLogger(logger),
			slot.WithMetrics(registry),
			slot.WithCache(cfg.Store.Cache),
		)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}

func buildKVStore(ctx context.Context, cfg *config.Config, registry *metric.MetricsRegistry,
	logger *slog.Logger) (slot.Store, func(), error) {
	client, err := natsclient.NewClient(cfg.Store.NATSURL,
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(registry),
		natsclient.WithClientName(appName),
		natsclient.WithTimeout(cfg.Store.Timeout.Std()),
	)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Connecting to NATS", "url", cfg.Store.NATSURL)
	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	closeClient := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Store.Bucket,
		Description: "driftview connection slots",
		History:     uint8(cfg.Store.History),
	})
	if err != nil {
		closeClient()
		return nil, nil, err
	}

	kv := client.NewKVStore(bucket, func(o *natsclient.KVOptions) {
		o.Timeout = cfg.Store.Timeout.Std()
	})
	store := slot.NewKVStore(kv, slot.WithLogger(logger), slot.WithMetrics(registry))
	return store, func() {
		_ = store.Close()
		closeClient()
	}, nil
}

// buildPagers creates one pager per seeded model, sharing one rate limiter.
func buildPagers(cfg *config.Config, src *source.Memory, store slot.Store,
	registry *metric.MetricsRegistry, logger *slog.Logger) ([]*pager.Pager, error) {
	fetcher, err := fragment.NewFetcher(src, logger)
	if err != nil {
		return nil, err
	}
	metrics, err := pager.NewMetrics(registry)
	if err != nil {
		return nil, err
	}
	limiter := cfg.RateLimit.Limiter()

	models := src.Models()
	slices.Sort(models)

	pagers := make([]*pager.Pager, 0, len(models))
	for _, model := range models {
		key, err := connection.NewSlotKey(model, cfg.ParentAlias, cfg.FieldAlias)
		if err != nil {
			return nil, errors.Wrap(err, "main", "buildPagers", "slot key for "+model)
		}
		p, err := pager.New(key, fetcher, store,
			pager.WithPageSize(cfg.PageSize),
			pager.WithFetchTimeout(cfg.FetchTimeout.Std()),
			pager.WithRateLimiter(limiter),
			pager.WithLogger(logger),
			pager.WithMetrics(metrics),
		)
		if err != nil {
			return nil, err
		}
		pagers = append(pagers, p)
	}
	return pagers, nil
}
