// Package registry builds one client per configured provider at startup and
// resolves (provider, model) pairs to callable handles. The registry is
// read-only after construction and safe for concurrent use by any number of
// in-flight requests.
package registry

import (
	"go.uber.org/zap"

	"github.com/ainqa-health/aigateway/pkg/model"
	"github.com/ainqa-health/aigateway/pkg/provider"
)

// Registry maps provider ids to constructed clients.
type Registry struct {
	generation map[model.ProviderID]provider.GenerationClient
	embedding  map[model.ProviderID]provider.EmbeddingClient
}

// New constructs the clients for every provider present in cfg. Providers
// with no credential configured are simply absent; resolving them later is a
// configuration error, not a provider error.
func New(cfg model.Config, logger *zap.Logger) (*Registry, error) {
	opts := provider.Options{
		Backoff:        cfg.Retry.Backoff,
		AttemptTimeout: cfg.Retry.AttemptTimeout,
	}

	r := &Registry{
		generation: make(map[model.ProviderID]provider.GenerationClient),
		embedding:  make(map[model.ProviderID]provider.EmbeddingClient),
	}

	if cfg.OpenAI.APIKey != "" {
		c := provider.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, opts)
		r.generation[model.ProviderOpenAI] = c
		r.embedding[model.ProviderOpenAI] = c
	}
	if cfg.Anthropic.APIKey != "" {
		// Anthropic has no embeddings endpoint; generation only.
		r.generation[model.ProviderAnthropic] = provider.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, opts)
	}
	if cfg.Google.APIKey != "" || cfg.Google.UseDefaultCredentials {
		c, err := provider.NewGoogleClient(cfg.Google, opts)
		if err != nil {
			return nil, err
		}
		r.generation[model.ProviderGoogle] = c
		r.embedding[model.ProviderGoogle] = c
	}
	if cfg.DeepInfra.APIKey != "" {
		c := provider.NewDeepInfraClient(cfg.DeepInfra.APIKey, cfg.DeepInfra.BaseURL, opts)
		r.generation[model.ProviderDeepInfra] = c
		r.embedding[model.ProviderDeepInfra] = c
	}
	if cfg.Custom != nil {
		c, err := newCustomClient(cfg.Custom, opts)
		if err != nil {
			return nil, err
		}
		r.generation[model.ProviderCustom] = c
		r.embedding[model.ProviderCustom] = c
	}

	providers := make([]string, 0, len(r.generation))
	for id := range r.generation {
		providers = append(providers, string(id))
	}
	logger.Info("provider registry built", zap.Strings("providers", providers))
	return r, nil
}

func newCustomClient(cfg *model.CustomProviderConfig, opts provider.Options) (*provider.OpenAICompatClient, error) {
	if cfg.BaseURL == "" {
		return nil, model.NewConfigError("custom provider %q requires a base url", cfg.Name)
	}
	var build provider.URLBuilder
	switch cfg.URLStrategy {
	case model.URLStandard, "":
		build = provider.StandardURL
	case model.URLModelInPath:
		build = provider.ModelInPathURL
	case model.URLCustom:
		if cfg.BuildURL == nil {
			return nil, model.NewConfigError("custom provider %q selects a custom url strategy without a builder", cfg.Name)
		}
		build = provider.URLBuilder(cfg.BuildURL)
	default:
		return nil, model.NewConfigError("custom provider %q has unknown url strategy %q", cfg.Name, cfg.URLStrategy)
	}
	return provider.NewOpenAICompatClient(model.ProviderCustom, cfg.APIKey, cfg.BaseURL, build, opts), nil
}

// Providers lists the configured provider ids.
func (r *Registry) Providers() []model.ProviderID {
	ids := make([]model.ProviderID, 0, len(r.generation))
	for id := range r.generation {
		ids = append(ids, id)
	}
	return ids
}

// ResolveGeneration returns a generation handle for mc. An unknown or
// unconfigured provider is a configuration error surfaced synchronously; it
// never counts toward retry or fallback accounting.
func (r *Registry) ResolveGeneration(mc model.ModelConfig) (provider.GenerationHandle, error) {
	client, ok := r.generation[mc.Provider]
	if !ok {
		return provider.GenerationHandle{}, model.NewConfigError("provider %q is not configured for generation", mc.Provider)
	}
	return provider.GenerationHandle{Client: client, Config: mc}, nil
}

// ResolveEmbedding returns an embedding handle for mc. Providers known not
// to support embeddings fail here, before any network call, so the failure
// is distinguishable from a runtime provider failure.
func (r *Registry) ResolveEmbedding(mc model.ModelConfig) (provider.EmbeddingHandle, error) {
	if mc.Provider == model.ProviderAnthropic {
		return provider.EmbeddingHandle{}, model.NewConfigError("provider %q does not support embeddings", mc.Provider)
	}
	client, ok := r.embedding[mc.Provider]
	if !ok {
		return provider.EmbeddingHandle{}, model.NewConfigError("provider %q is not configured for embeddings", mc.Provider)
	}
	return provider.EmbeddingHandle{Client: client, Config: mc}, nil
}
