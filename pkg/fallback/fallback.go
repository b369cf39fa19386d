// Package fallback implements the two-stage primary/fallback executor used
// by the generation and embedding gateways. The orchestrator itself performs
// no I/O and no retries: retry budgets are spent inside the operations.
package fallback

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ainqa-health/aigateway/pkg/classify"
	"github.com/ainqa-health/aigateway/pkg/model"
)

// Operation is one provider call site. Invoke receives the retry budget it
// is allowed to spend against its provider before reporting failure upward.
type Operation[T any] interface {
	Invoke(ctx context.Context, retries int) (T, error)
}

// Func adapts a closure to Operation.
type Func[T any] func(ctx context.Context, retries int) (T, error)

func (f Func[T]) Invoke(ctx context.Context, retries int) (T, error) {
	return f(ctx, retries)
}

// Run executes primary, classifies any failure, and conditionally executes
// fallback. Exactly one error is ever surfaced per invocation: the
// primary's. A fallback failure is logged and discarded, because the primary
// is the default path and its failure reason is what operators alert on.
func Run[T any](ctx context.Context, logger *zap.Logger, policy model.FallbackPolicy, primary, fallback Operation[T]) (T, error) {
	var zero T

	start := time.Now()
	logger.Debug("primary attempt",
		zap.String("provider", policy.PrimaryLabel),
		zap.Int("max_retries", policy.PrimaryMaxRetries))

	result, primaryErr := primary.Invoke(ctx, policy.PrimaryMaxRetries)
	if primaryErr == nil {
		logger.Debug("primary succeeded",
			zap.String("provider", policy.PrimaryLabel),
			zap.Duration("latency", time.Since(start)))
		return result, nil
	}

	classification := classify.Classify(primaryErr)
	logger.Warn("primary failed",
		zap.String("provider", policy.PrimaryLabel),
		zap.String("kind", string(classification.Kind)),
		zap.Bool("fallback_eligible", classification.ShouldFallback),
		zap.Duration("latency", time.Since(start)),
		zap.Error(primaryErr))

	if !policy.Enabled {
		return zero, primaryErr
	}
	// Unreachable under the current classification rules, which mark every
	// provider failure fallback-eligible. Kept as a guard.
	if !classification.ShouldFallback {
		return zero, primaryErr
	}

	fbStart := time.Now()
	logger.Info("falling back",
		zap.String("from", policy.PrimaryLabel),
		zap.String("to", policy.FallbackLabel),
		zap.Int("max_retries", policy.FallbackMaxRetries))

	fbResult, fbErr := fallback.Invoke(ctx, policy.FallbackMaxRetries)
	if fbErr == nil {
		logger.Info("fallback succeeded",
			zap.String("provider", policy.FallbackLabel),
			zap.Duration("latency", time.Since(fbStart)))
		return fbResult, nil
	}

	logger.Error("fallback failed, surfacing primary error",
		zap.String("provider", policy.FallbackLabel),
		zap.Duration("latency", time.Since(fbStart)),
		zap.NamedError("fallback_error", fbErr),
		zap.Error(primaryErr))
	return zero, primaryErr
}
