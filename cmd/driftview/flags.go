package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	Refetch     bool
	ShowRows    int
	ShowVersion bool
	Validate    bool
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("DRIFTVIEW_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: DRIFTVIEW_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("DRIFTVIEW_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: DRIFTVIEW_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("DRIFTVIEW_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: DRIFTVIEW_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("DRIFTVIEW_LOG_FORMAT", "text"),
		"Log format: json, text (env: DRIFTVIEW_LOG_FORMAT)")

	fs.BoolVar(&cfg.Refetch, "refetch",
		getEnvBool("DRIFTVIEW_REFETCH", false),
		"Reset every slot and load from the first page (env: DRIFTVIEW_REFETCH)")

	fs.IntVar(&cfg.ShowRows, "rows",
		getEnvInt("DRIFTVIEW_ROWS", 10),
		"Rows printed per model, 0 prints all (env: DRIFTVIEW_ROWS)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration, print it and exit")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, `%s - embedding drift table pager

Usage: %s [options]

Options:
`, appName, appName)
		fs.PrintDefaults()
		_, _ = fmt.Fprintf(stderr, `
Examples:
  # Page the demo models with the in-memory store
  %s

  # Keep slots in NATS and start over
  DRIFTVIEW_STORE_BACKEND=nats %s --refetch

Version: %s
`, appName, appName, Version)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion {
		return nil
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShowRows < 0 {
		return fmt.Errorf("invalid rows: %d", cfg.ShowRows)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
