package source

import (
	"context"
	"fmt"

	"github.com/c360/driftview/drift"
	"github.com/c360/driftview/errors"
	"github.com/c360/driftview/pkg/embedding"
)

// TextFeature is a dimension described by text samples instead of vectors.
type TextFeature struct {
	Name      string   `json:"name" yaml:"name"`
	Primary   []string `json:"primary" yaml:"primary"`
	Reference []string `json:"reference,omitempty" yaml:"reference,omitempty"`
}

// TextModel groups text features under one model id.
type TextModel struct {
	ID       string        `json:"id" yaml:"id"`
	Features []TextFeature `json:"features" yaml:"features"`
}

// SeedText embeds every feature of model with emb and adds the result to m.
// A Fitter is first fitted on all texts of the model so that primary and
// reference samples share one vocabulary.
func SeedText(ctx context.Context, m *Memory, model TextModel, emb embedding.Embedder) error {
	if model.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "source", "SeedText", "text model id is empty")
	}
	if emb == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "source", "SeedText", "embedder is nil")
	}

	if fitter, ok := emb.(embedding.Fitter); ok {
		var corpus []string
		for _, f := range model.Features {
			corpus = append(corpus, f.Primary...)
			corpus = append(corpus, f.Reference...)
		}
		if err := fitter.Fit(ctx, corpus); err != nil {
			return errors.Wrap(err, "source", "SeedText", "fit "+emb.Model())
		}
	}

	dims := make([]drift.Dimension, 0, len(model.Features))
	for i, f := range model.Features {
		primary, err := emb.Embed(ctx, f.Primary)
		if err != nil {
			return errors.Wrap(err, "source", "SeedText", "embed primary samples of "+f.Name)
		}
		reference, err := emb.Embed(ctx, f.Reference)
		if err != nil {
			return errors.Wrap(err, "source", "SeedText", "embed reference samples of "+f.Name)
		}
		dims = append(dims, drift.Dimension{
			ID:        fmt.Sprintf("%s-text-%d", model.ID, i),
			Name:      f.Name,
			Primary:   primary,
			Reference: reference,
		})
	}

	if err := m.AddModel(model.ID, dims); err != nil {
		return errors.Wrap(err, "source", "SeedText", "add "+model.ID)
	}
	m.logger.Debug("Text model seeded", "model", model.ID, "embedder", emb.Model(), "features", len(dims))
	return nil
}
