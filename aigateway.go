// Package aigateway is the multi-provider AI request gateway. It accepts
// generation and embedding requests, runs them against a primary model with
// a bounded retry budget, classifies failures, and transparently retries
// eligible failures against a configured fallback model.
package aigateway

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ainqa-health/aigateway/pkg/gateway"
	"github.com/ainqa-health/aigateway/pkg/metric"
	"github.com/ainqa-health/aigateway/pkg/model"
	"github.com/ainqa-health/aigateway/pkg/registry"
	"github.com/ainqa-health/aigateway/pkg/validation"
)

// Client is the assembled gateway. Construct it once at process start; it is
// read-only afterwards and safe for concurrent use by any number of
// in-flight requests.
type Client struct {
	Generation *gateway.Generation
	Embedding  *gateway.Embedding
	Registry   *registry.Registry
	Metrics    *metric.Tracker

	logger *zap.Logger
}

// Init validates the configuration, builds the provider registry and the
// optional metrics tracker, and wires both gateways.
func Init(cfg model.Config) (*Client, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if err := validation.ValidateConfig(cfg); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return nil, err
	}

	reg, err := registry.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	var tracker *metric.Tracker
	if cfg.RedisConfig != nil {
		tracker, err = metric.NewTracker(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		logger.Info("metrics tracker connected", zap.String("addr", cfg.RedisConfig.Addr))
	}

	return &Client{
		Generation: gateway.NewGeneration(reg, cfg, tracker, logger),
		Embedding:  gateway.NewEmbedding(reg, cfg, tracker, logger),
		Registry:   reg,
		Metrics:    tracker,
		logger:     logger,
	}, nil
}

// Close releases the metrics tracker connection, if any.
func (c *Client) Close() error {
	return c.Metrics.Close()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, model.NewConfigError("unknown log level %q", level)
		}
		lvl = parsed
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	return zapCfg.Build()
}
