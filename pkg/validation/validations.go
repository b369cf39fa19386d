// Package validation checks a gateway configuration before any client is
// built. A typo in configuration must fail loudly at startup, not silently
// degrade into runtime fallbacks.
package validation

import (
	"github.com/ainqa-health/aigateway/pkg/model"
)

var knownProviders = map[model.ProviderID]bool{
	model.ProviderOpenAI:    true,
	model.ProviderAnthropic: true,
	model.ProviderGoogle:    true,
	model.ProviderDeepInfra: true,
	model.ProviderCustom:    true,
}

// ValidateConfig verifies the configuration is internally consistent. All
// failures are configuration errors.
func ValidateConfig(cfg model.Config) error {
	if err := validateModelConfig("llm.primary", cfg.Defaults.LLMPrimary); err != nil {
		return err
	}
	if err := validateModelConfig("llm.fallback", cfg.Defaults.LLMFallback); err != nil {
		return err
	}
	if err := validateModelConfig("embedding.primary", cfg.Defaults.EmbeddingPrimary); err != nil {
		return err
	}
	if err := validateModelConfig("embedding.fallback", cfg.Defaults.EmbeddingFallback); err != nil {
		return err
	}

	if cfg.Defaults.EmbeddingPrimary.Provider == model.ProviderAnthropic {
		return model.NewConfigError("embedding.primary: provider %q does not support embeddings", model.ProviderAnthropic)
	}
	if cfg.Defaults.EmbeddingFallback.Provider == model.ProviderAnthropic {
		return model.NewConfigError("embedding.fallback: provider %q does not support embeddings", model.ProviderAnthropic)
	}

	if cfg.Retry.PrimaryMaxRetries < 0 || cfg.Retry.FallbackMaxRetries < 0 {
		return model.NewConfigError("retry counts cannot be negative")
	}
	if cfg.Retry.Backoff < 0 {
		return model.NewConfigError("backoff cannot be negative")
	}

	if err := validateProviderCredentials(cfg); err != nil {
		return err
	}

	if cfg.Custom != nil {
		if cfg.Custom.BaseURL == "" {
			return model.NewConfigError("custom provider requires a base url")
		}
		if cfg.Custom.URLStrategy == model.URLCustom && cfg.Custom.BuildURL == nil {
			return model.NewConfigError("custom provider selects a custom url strategy without a builder")
		}
	}

	return nil
}

func validateModelConfig(name string, mc model.ModelConfig) error {
	if mc.Provider == "" {
		return model.NewConfigError("%s: provider is empty", name)
	}
	if !knownProviders[mc.Provider] {
		return model.NewConfigError("%s: unknown provider %q", name, mc.Provider)
	}
	if mc.ModelID == "" {
		return model.NewConfigError("%s: model id is empty", name)
	}
	return nil
}

// validateProviderCredentials checks every provider referenced by a default
// model has a credential configured.
func validateProviderCredentials(cfg model.Config) error {
	referenced := map[model.ProviderID]string{
		cfg.Defaults.LLMPrimary.Provider:        "llm.primary",
		cfg.Defaults.LLMFallback.Provider:       "llm.fallback",
		cfg.Defaults.EmbeddingPrimary.Provider:  "embedding.primary",
		cfg.Defaults.EmbeddingFallback.Provider: "embedding.fallback",
	}
	for providerID, source := range referenced {
		if !hasCredential(cfg, providerID) {
			return model.NewConfigError("%s references provider %q which has no credential configured", source, providerID)
		}
	}
	return nil
}

func hasCredential(cfg model.Config, id model.ProviderID) bool {
	switch id {
	case model.ProviderOpenAI:
		return cfg.OpenAI.APIKey != ""
	case model.ProviderAnthropic:
		return cfg.Anthropic.APIKey != ""
	case model.ProviderGoogle:
		return cfg.Google.APIKey != "" || cfg.Google.UseDefaultCredentials
	case model.ProviderDeepInfra:
		return cfg.DeepInfra.APIKey != ""
	case model.ProviderCustom:
		return cfg.Custom != nil
	}
	return false
}
