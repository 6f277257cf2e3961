package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/driftview/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DRIFTVIEW"

// Loader merges configuration layers over Default.
type Loader struct {
	layers    []string
	envPrefix string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader reading DRIFTVIEW_* overrides from the process
// environment.
func NewLoader() *Loader {
	return &Loader{envPrefix: EnvPrefix, lookupEnv: os.LookupEnv}
}

// AddLayer adds a file. Later layers override earlier ones key by key.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// LoadFile loads a single file over the defaults.
func LoadFile(path string) (*Config, error) {
	l := NewLoader()
	if path != "" {
		l.AddLayer(path)
	}
	return l.Load()
}

// Load reads all layers, applies environment overrides and validates.
func (l *Loader) Load() (*Config, error) {
	base, err := toMap(Default())
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		layer, err := readLayer(path)
		if err != nil {
			return nil, errors.Wrap(err, "Loader", "Load", "read "+path)
		}
		base = deepMergeMaps(base, layer)
	}

	merged, err := json.Marshal(base)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "encode merged config")
	}
	var cfg Config
	if err := json.Unmarshal(merged, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "decode merged config")
	}

	if err := l.applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// readLayer decodes a JSON or YAML file into a generic map.
func readLayer(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := validateJSONDepth(data); err != nil {
			return nil, errors.WrapInvalid(err, "config", "readLayer", "check JSON structure")
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(errors.ErrParsingFailed, "config", "readLayer", err.Error())
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(errors.ErrParsingFailed, "config", "readLayer", err.Error())
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// deepMergeMaps merges override into base; nested maps merge recursively and
// nil values are ignored.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func (l *Loader) env(name string) (string, bool, error) {
	key := l.envPrefix + "_" + name
	val, ok := l.lookupEnv(key)
	if !ok || val == "" {
		return "", false, nil
	}
	if err := validateEnvVar(key, val); err != nil {
		return "", false, errors.WrapInvalid(err, "Loader", "applyEnvOverrides", key)
	}
	return val, true, nil
}

func (l *Loader) envInt(name string, dst *int) error {
	val, ok, err := l.env(name)
	if err != nil || !ok {
		return err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Loader", "applyEnvOverrides",
			fmt.Sprintf("%s_%s: %q is not an integer", l.envPrefix, name, val))
	}
	*dst = n
	return nil
}

func (l *Loader) envString(name string, dst *string) error {
	val, ok, err := l.env(name)
	if err != nil || !ok {
		return err
	}
	*dst = val
	return nil
}

// applyEnvOverrides applies DRIFTVIEW_* variables.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	for _, apply := range []func() error{
		func() error { return l.envInt("PAGE_SIZE", &cfg.PageSize) },
		func() error { return l.envInt("MAX_PAGES", &cfg.MaxPages) },
		func() error { return l.envString("STORE_BACKEND", &cfg.Store.Backend) },
		func() error { return l.envString("NATS_URL", &cfg.Store.NATSURL) },
		func() error { return l.envString("BUCKET", &cfg.Store.Bucket) },
		func() error { return l.envString("METRICS_ADDR", &cfg.Metrics.Addr) },
	} {
		if err := apply(); err != nil {
			return err
		}
	}

	val, ok, err := l.env("RATE_LIMIT")
	if err != nil {
		return err
	}
	if ok {
		perSecond, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Loader", "applyEnvOverrides",
				fmt.Sprintf("%s_RATE_LIMIT: %q is not a number", l.envPrefix, val))
		}
		cfg.RateLimit.PerSecond = perSecond
	}
	return nil
}
