package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/ainqa-health/aigateway/pkg/model"
	"github.com/ainqa-health/aigateway/pkg/registry"
)

func embeddingServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{
			"data": [{"index": 0, "embedding": [0.1, 0.2, 0.3]}],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func newEmbeddingGateway(t *testing.T, cfg model.Config) *Embedding {
	t.Helper()
	reg, err := registry.New(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	return NewEmbedding(reg, cfg, nil, zap.NewNop())
}

func TestEmbedPrimarySucceeds(t *testing.T) {
	var primaryCalls, fallbackCalls atomic.Int32
	primary := embeddingServer(t, &primaryCalls)
	fb := embeddingServer(t, &fallbackCalls)

	e := newEmbeddingGateway(t, gatewayConfig(primary.URL, fb.URL))
	result, err := e.Embed(context.Background(), model.EmbeddingRequest{Input: []string{"fever and cough"}})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(result.Embeddings) != 1 || len(result.Embeddings[0]) != 3 {
		t.Errorf("Embeddings = %v, want one 3-dim vector", result.Embeddings)
	}
	if fallbackCalls.Load() != 0 {
		t.Errorf("fallback saw %d calls, want 0", fallbackCalls.Load())
	}
}

func TestEmbedFallsBackOnPrimaryFailure(t *testing.T) {
	var primaryCalls, fallbackCalls atomic.Int32
	primary := failingServer(t, http.StatusServiceUnavailable, &primaryCalls)
	fb := embeddingServer(t, &fallbackCalls)

	e := newEmbeddingGateway(t, gatewayConfig(primary.URL, fb.URL))
	result, err := e.Embed(context.Background(), model.EmbeddingRequest{Input: []string{"fever"}})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if result.Provider != model.ProviderDeepInfra {
		t.Errorf("Provider = %v, want deepinfra", result.Provider)
	}
	if primaryCalls.Load() != 1 || fallbackCalls.Load() != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", primaryCalls.Load(), fallbackCalls.Load())
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	var primaryCalls, fallbackCalls atomic.Int32
	primary := embeddingServer(t, &primaryCalls)
	fb := embeddingServer(t, &fallbackCalls)

	e := newEmbeddingGateway(t, gatewayConfig(primary.URL, fb.URL))
	_, err := e.Embed(context.Background(), model.EmbeddingRequest{})
	if err == nil {
		t.Fatal("Embed() error = nil, want configuration error")
	}
	if !model.IsConfigError(err) {
		t.Errorf("error = %v, want a configuration error", err)
	}
	if primaryCalls.Load() != 0 {
		t.Error("empty input must not reach any provider")
	}
}

func TestEmbedAnthropicRejectedBeforeNetwork(t *testing.T) {
	var primaryCalls, fallbackCalls atomic.Int32
	primary := embeddingServer(t, &primaryCalls)
	fb := embeddingServer(t, &fallbackCalls)

	cfg := gatewayConfig(primary.URL, fb.URL)
	cfg.Anthropic = model.ProviderCredentials{APIKey: "k3", BaseURL: primary.URL}
	cfg.Defaults.EmbeddingPrimary = model.ModelConfig{Provider: model.ProviderAnthropic, ModelID: "claude-sonnet-4-5"}

	e := newEmbeddingGateway(t, cfg)
	_, err := e.Embed(context.Background(), model.EmbeddingRequest{Input: []string{"x"}})
	if err == nil {
		t.Fatal("Embed() error = nil, want configuration error")
	}
	if !model.IsConfigError(err) {
		t.Errorf("error = %v, want a configuration error", err)
	}
	if primaryCalls.Load() != 0 || fallbackCalls.Load() != 0 {
		t.Error("missing embedding support must fail before any network call")
	}
}
