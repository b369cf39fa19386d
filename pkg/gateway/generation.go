// Package gateway exposes the generation and embedding façades. Each call
// builds a fallback policy from process-wide defaults plus per-request
// overrides, binds provider closures through the registry, and delegates the
// primary/fallback decision to the orchestrator.
package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ainqa-health/aigateway/pkg/fallback"
	"github.com/ainqa-health/aigateway/pkg/metric"
	"github.com/ainqa-health/aigateway/pkg/model"
	"github.com/ainqa-health/aigateway/pkg/provider"
	"github.com/ainqa-health/aigateway/pkg/registry"
)

// Generation answers text-generation requests with transparent fallback.
type Generation struct {
	registry *registry.Registry
	defaults model.Defaults
	retry    model.RetryConfig
	tracker  *metric.Tracker
	logger   *zap.Logger
}

// NewGeneration wires the generation gateway. tracker may be nil.
func NewGeneration(reg *registry.Registry, cfg model.Config, tracker *metric.Tracker, logger *zap.Logger) *Generation {
	return &Generation{
		registry: reg,
		defaults: cfg.Defaults,
		retry:    cfg.Retry,
		tracker:  tracker,
		logger:   logger,
	}
}

func buildPolicy(retry model.RetryConfig, disableFallback bool, primary, fb model.ModelConfig) model.FallbackPolicy {
	return model.FallbackPolicy{
		Enabled:            !disableFallback,
		PrimaryMaxRetries:  retry.PrimaryMaxRetries,
		FallbackMaxRetries: retry.FallbackMaxRetries,
		PrimaryLabel:       primary.String(),
		FallbackLabel:      fb.String(),
	}
}

// observe records one provider call's latency and, on failure, its status
// code. Recording failures are logged and swallowed; metrics never affect
// the request path.
func observe(ctx context.Context, tracker *metric.Tracker, logger *zap.Logger, modelName string, start time.Time, callErr error) {
	status := "success"
	if callErr != nil {
		status = "error"
	}
	if err := tracker.RecordLatency(ctx, modelName, time.Since(start).Seconds(), status); err != nil {
		logger.Warn("recording latency", zap.String("model", modelName), zap.Error(err))
	}
	if callErr != nil && !model.IsConfigError(callErr) {
		if err := tracker.RecordErrorCode(ctx, modelName, model.StatusCode(callErr)); err != nil {
			logger.Warn("recording error code", zap.String("model", modelName), zap.Error(err))
		}
	}
}

// Generate runs one generation. A nil req.Model uses the process-wide
// primary; fallback is enabled unless the request disables it.
func (g *Generation) Generate(ctx context.Context, req model.GenerationRequest) (*model.GenerationResult, error) {
	primaryCfg := g.defaults.LLMPrimary
	if req.Model != nil {
		primaryCfg = *req.Model
	}
	fallbackCfg := g.defaults.LLMFallback

	logger := g.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("operation", "generate"))

	// Resolution failures are configuration errors: surfaced synchronously,
	// never classified, never subject to fallback.
	primaryHandle, err := g.registry.ResolveGeneration(primaryCfg)
	if err != nil {
		return nil, err
	}

	policy := buildPolicy(g.retry, req.DisableFallback, primaryCfg, fallbackCfg)

	primary := fallback.Func[*model.GenerationResult](func(ctx context.Context, retries int) (*model.GenerationResult, error) {
		start := time.Now()
		result, err := primaryHandle.Generate(ctx, req.Messages, req.Settings, retries)
		observe(ctx, g.tracker, logger, primaryCfg.String(), start, err)
		return result, err
	})

	fb := fallback.Func[*model.GenerationResult](func(ctx context.Context, retries int) (*model.GenerationResult, error) {
		handle, err := g.registry.ResolveGeneration(fallbackCfg)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		result, err := handle.Generate(ctx, req.Messages, req.Settings, retries)
		observe(ctx, g.tracker, logger, fallbackCfg.String(), start, err)
		return result, err
	})

	return fallback.Run(ctx, logger, policy, primary, fb)
}

// Stream runs one streaming generation. The fallback decision applies to
// stream establishment only: onError is notified of an establishment
// failure before that decision, and once chunks flow any failure is
// surfaced directly to the caller with no further fallback.
func (g *Generation) Stream(ctx context.Context, req model.GenerationRequest, onChunk model.ChunkHandler, onError model.StreamErrorHandler) error {
	primaryCfg := g.defaults.LLMPrimary
	if req.Model != nil {
		primaryCfg = *req.Model
	}
	fallbackCfg := g.defaults.LLMFallback

	logger := g.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("operation", "stream"))

	primaryHandle, err := g.registry.ResolveGeneration(primaryCfg)
	if err != nil {
		return err
	}

	policy := buildPolicy(g.retry, req.DisableFallback, primaryCfg, fallbackCfg)

	establish := func(handle provider.GenerationHandle, label string) fallback.Func[*provider.GenerationStream] {
		return func(ctx context.Context, retries int) (*provider.GenerationStream, error) {
			start := time.Now()
			stream, err := handle.Stream(ctx, req.Messages, req.Settings, retries)
			if err != nil {
				observe(ctx, g.tracker, logger, label, start, err)
				if onError != nil {
					onError(err)
				}
				return nil, err
			}
			return stream, nil
		}
	}

	fb := fallback.Func[*provider.GenerationStream](func(ctx context.Context, retries int) (*provider.GenerationStream, error) {
		handle, err := g.registry.ResolveGeneration(fallbackCfg)
		if err != nil {
			return nil, err
		}
		return establish(handle, fallbackCfg.String())(ctx, retries)
	})

	stream, err := fallback.Run(ctx, logger, policy, establish(primaryHandle, primaryCfg.String()), fb)
	if err != nil {
		return err
	}
	return stream.Consume(onChunk)
}
