package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ainqa-health/aigateway/pkg/fallback"
	"github.com/ainqa-health/aigateway/pkg/metric"
	"github.com/ainqa-health/aigateway/pkg/model"
	"github.com/ainqa-health/aigateway/pkg/registry"
)

// Embedding answers embedding requests with transparent fallback.
type Embedding struct {
	registry *registry.Registry
	defaults model.Defaults
	retry    model.RetryConfig
	tracker  *metric.Tracker
	logger   *zap.Logger
}

// NewEmbedding wires the embedding gateway. tracker may be nil.
func NewEmbedding(reg *registry.Registry, cfg model.Config, tracker *metric.Tracker, logger *zap.Logger) *Embedding {
	return &Embedding{
		registry: reg,
		defaults: cfg.Defaults,
		retry:    cfg.Retry,
		tracker:  tracker,
		logger:   logger,
	}
}

// Embed embeds one or more inputs. Empty input is a caller mistake, not a
// provider failure.
func (e *Embedding) Embed(ctx context.Context, req model.EmbeddingRequest) (*model.EmbeddingResult, error) {
	if len(req.Input) == 0 {
		return nil, model.NewConfigError("embedding input is empty")
	}

	primaryCfg := e.defaults.EmbeddingPrimary
	if req.Model != nil {
		primaryCfg = *req.Model
	}
	fallbackCfg := e.defaults.EmbeddingFallback

	logger := e.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("operation", "embed"))

	// Fails fast, before any network call, when the provider is unknown or
	// has no embeddings support.
	primaryHandle, err := e.registry.ResolveEmbedding(primaryCfg)
	if err != nil {
		return nil, err
	}

	policy := buildPolicy(e.retry, req.DisableFallback, primaryCfg, fallbackCfg)

	primary := fallback.Func[*model.EmbeddingResult](func(ctx context.Context, retries int) (*model.EmbeddingResult, error) {
		start := time.Now()
		result, err := primaryHandle.Embed(ctx, req.Input, retries)
		observe(ctx, e.tracker, logger, primaryCfg.String(), start, err)
		return result, err
	})

	fb := fallback.Func[*model.EmbeddingResult](func(ctx context.Context, retries int) (*model.EmbeddingResult, error) {
		handle, err := e.registry.ResolveEmbedding(fallbackCfg)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		result, err := handle.Embed(ctx, req.Input, retries)
		observe(ctx, e.tracker, logger, fallbackCfg.String(), start, err)
		return result, err
	})

	return fallback.Run(ctx, logger, policy, primary, fb)
}
