package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainqa-health/aigateway/pkg/model"
)

func validConfig() model.Config {
	return model.Config{
		OpenAI:    model.ProviderCredentials{APIKey: "k1"},
		DeepInfra: model.ProviderCredentials{APIKey: "k2"},
		Defaults: model.Defaults{
			LLMPrimary:        model.ModelConfig{Provider: model.ProviderOpenAI, ModelID: "gpt-4o"},
			LLMFallback:       model.ModelConfig{Provider: model.ProviderDeepInfra, ModelID: "meta-llama/Meta-Llama-3-70B"},
			EmbeddingPrimary:  model.ModelConfig{Provider: model.ProviderOpenAI, ModelID: "text-embedding-3-small"},
			EmbeddingFallback: model.ModelConfig{Provider: model.ProviderDeepInfra, ModelID: "BAAI/bge-large-en-v1.5"},
		},
		Retry: model.RetryConfig{PrimaryMaxRetries: 1, FallbackMaxRetries: 1},
	}
}

func TestValidateConfigAccepts(t *testing.T) {
	assert.NoError(t, ValidateConfig(validConfig()))
}

func TestValidateConfigRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *model.Config)
	}{
		{"empty provider", func(cfg *model.Config) { cfg.Defaults.LLMPrimary.Provider = "" }},
		{"unknown provider", func(cfg *model.Config) { cfg.Defaults.LLMFallback.Provider = "mystery" }},
		{"empty model id", func(cfg *model.Config) { cfg.Defaults.EmbeddingPrimary.ModelID = "" }},
		{"anthropic embedding primary", func(cfg *model.Config) {
			cfg.Anthropic.APIKey = "k3"
			cfg.Defaults.EmbeddingPrimary = model.ModelConfig{Provider: model.ProviderAnthropic, ModelID: "claude-sonnet-4-5"}
		}},
		{"anthropic embedding fallback", func(cfg *model.Config) {
			cfg.Anthropic.APIKey = "k3"
			cfg.Defaults.EmbeddingFallback = model.ModelConfig{Provider: model.ProviderAnthropic, ModelID: "claude-sonnet-4-5"}
		}},
		{"negative retries", func(cfg *model.Config) { cfg.Retry.PrimaryMaxRetries = -1 }},
		{"negative backoff", func(cfg *model.Config) { cfg.Retry.Backoff = -1 }},
		{"missing credential", func(cfg *model.Config) { cfg.OpenAI.APIKey = "" }},
		{"custom without base url", func(cfg *model.Config) {
			cfg.Custom = &model.CustomProviderConfig{Name: "acme"}
		}},
		{"custom strategy without builder", func(cfg *model.Config) {
			cfg.Custom = &model.CustomProviderConfig{
				Name:        "acme",
				BaseURL:     "https://llm.acme.internal",
				URLStrategy: model.URLCustom,
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.True(t, model.IsConfigError(err), "want a configuration error, got %v", err)
		})
	}
}

func TestValidateConfigGoogleCredential(t *testing.T) {
	cfg := validConfig()
	cfg.Defaults.LLMPrimary = model.ModelConfig{Provider: model.ProviderGoogle, ModelID: "gemini-2.0-flash"}

	require.Error(t, ValidateConfig(cfg), "google referenced without credential")

	cfg.Google.UseDefaultCredentials = true
	assert.NoError(t, ValidateConfig(cfg), "application-default credentials satisfy the requirement")
}
