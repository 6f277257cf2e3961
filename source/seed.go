package source

import (
	"fmt"
	"math/rand/v2"

	"github.com/c360/driftview/drift"
	"github.com/c360/driftview/errors"
)

// SeedConfig shapes synthetic embedding data.
type SeedConfig struct {
	Models     int     `json:"models" yaml:"models"`
	Dimensions int     `json:"dimensions" yaml:"dimensions"`
	Samples    int     `json:"samples" yaml:"samples"`
	VectorSize int     `json:"vector_size" yaml:"vector_size"`
	MaxShift   float64 `json:"max_shift" yaml:"max_shift"`
	// NullEvery leaves every n-th dimension without reference data so its
	// drift metric is null. Zero disables it.
	NullEvery int    `json:"null_every" yaml:"null_every"`
	Seed      uint64 `json:"seed" yaml:"seed"`
}

// DefaultSeedConfig returns a small demo data set.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Models:     3,
		Dimensions: 120,
		Samples:    16,
		VectorSize: 8,
		MaxShift:   2,
		NullEvery:  17,
		Seed:       1,
	}
}

// Validate checks that the shape is usable.
func (c SeedConfig) Validate() error {
	if c.Models <= 0 || c.Dimensions <= 0 || c.Samples <= 0 || c.VectorSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "SeedConfig", "Validate",
			"models, dimensions, samples and vector_size must be positive")
	}
	if c.MaxShift < 0 || c.NullEvery < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "SeedConfig", "Validate",
			"max_shift and null_every must not be negative")
	}
	return nil
}

// ModelID names the i-th synthetic model.
func ModelID(i int) string {
	return fmt.Sprintf("model-%d", i+1)
}

// Seed fills m with deterministic synthetic models. Primary samples are drawn
// around a shifted mean so every dimension drifts by a different amount.
func Seed(m *Memory, cfg SeedConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	for i := 0; i < cfg.Models; i++ {
		dims := make([]drift.Dimension, 0, cfg.Dimensions)
		for d := 0; d < cfg.Dimensions; d++ {
			shift := rng.Float64() * cfg.MaxShift
			dim := drift.Dimension{
				ID:      fmt.Sprintf("%s-dim-%d", ModelID(i), d),
				Name:    fmt.Sprintf("feature_%03d", d),
				Primary: samples(rng, cfg.Samples, cfg.VectorSize, shift),
			}
			if cfg.NullEvery == 0 || (d+1)%cfg.NullEvery != 0 {
				dim.Reference = samples(rng, cfg.Samples, cfg.VectorSize, 0)
			}
			dims = append(dims, dim)
		}
		if err := m.AddModel(ModelID(i), dims); err != nil {
			return errors.Wrap(err, "source", "Seed", "add "+ModelID(i))
		}
	}
	return nil
}

func samples(rng *rand.Rand, n, size int, shift float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		v := make([]float64, size)
		for j := range v {
			v[j] = rng.NormFloat64() + shift
		}
		out[i] = v
	}
	return out
}
