// Package provider holds the HTTP clients for the supported model vendors.
// Each client spends its own retry budget against its vendor; callers above
// it (the fallback orchestrator) never re-invoke a client themselves.
package provider

import (
	"context"

	"github.com/ainqa-health/aigateway/pkg/model"
)

// GenerationClient is a vendor client able to run chat generation for any of
// its models.
type GenerationClient interface {
	Generate(ctx context.Context, modelID string, messages []model.Message, settings map[string]interface{}, retries int) (*model.GenerationResult, error)
	// Stream establishes a streaming generation, spending the retry budget
	// on establishment only. Chunk delivery happens through the returned
	// stream's Consume.
	Stream(ctx context.Context, modelID string, messages []model.Message, settings map[string]interface{}, retries int) (*GenerationStream, error)
}

// EmbeddingClient is a vendor client able to embed text batches.
type EmbeddingClient interface {
	Embed(ctx context.Context, modelID string, input []string, retries int) (*model.EmbeddingResult, error)
}

// GenerationHandle is a GenerationClient bound to one model.
type GenerationHandle struct {
	Client GenerationClient
	Config model.ModelConfig
}

// Generate runs one generation against the bound model.
func (h GenerationHandle) Generate(ctx context.Context, messages []model.Message, settings map[string]interface{}, retries int) (*model.GenerationResult, error) {
	merged := mergeSettings(h.Config.Settings, settings)
	return h.Client.Generate(ctx, h.Config.ModelID, messages, merged, retries)
}

// Stream establishes one streaming generation against the bound model.
func (h GenerationHandle) Stream(ctx context.Context, messages []model.Message, settings map[string]interface{}, retries int) (*GenerationStream, error) {
	merged := mergeSettings(h.Config.Settings, settings)
	return h.Client.Stream(ctx, h.Config.ModelID, messages, merged, retries)
}

// EmbeddingHandle is an EmbeddingClient bound to one model.
type EmbeddingHandle struct {
	Client EmbeddingClient
	Config model.ModelConfig
}

// Embed embeds a batch against the bound model.
func (h EmbeddingHandle) Embed(ctx context.Context, input []string, retries int) (*model.EmbeddingResult, error) {
	return h.Client.Embed(ctx, h.Config.ModelID, input, retries)
}

func mergeSettings(base, override map[string]interface{}) map[string]interface{} {
	if len(base) == 0 {
		return override
	}
	merged := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
