package model

import (
	"time"
)

// ProviderID identifies one of the supported model providers.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderGoogle    ProviderID = "google"
	ProviderDeepInfra ProviderID = "deepinfra"
	// ProviderCustom is a generic OpenAI-compatible endpoint whose URL layout
	// is selected by CustomProviderConfig.URLStrategy.
	ProviderCustom ProviderID = "custom"
)

// ModelConfig identifies one callable model. Immutable once constructed;
// two configs address the same model iff (Provider, ModelID) match.
type ModelConfig struct {
	Provider ProviderID
	ModelID  string
	Settings map[string]interface{}
}

// Equal reports whether two configs address the same model.
func (m ModelConfig) Equal(other ModelConfig) bool {
	return m.Provider == other.Provider && m.ModelID == other.ModelID
}

func (m ModelConfig) String() string {
	return string(m.Provider) + "/" + m.ModelID
}

// Message is a single chat message.
type Message map[string]string

// Usage holds token accounting reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FallbackPolicy fully determines orchestrator behavior for one invocation.
// Constructed per call, never mutated afterwards.
type FallbackPolicy struct {
	Enabled            bool
	PrimaryMaxRetries  int
	FallbackMaxRetries int
	PrimaryLabel       string
	FallbackLabel      string
}

// GenerationRequest is one text-generation call.
type GenerationRequest struct {
	Messages []Message
	// Model overrides the process-wide primary when non-nil.
	Model *ModelConfig
	// DisableFallback surfaces the primary failure without trying the
	// fallback model. Fallback is on by default.
	DisableFallback bool
	Settings        map[string]interface{}
}

// GenerationResult is the unified generation response.
type GenerationResult struct {
	Text     string
	Usage    Usage
	Provider ProviderID
	ModelID  string
}

// StreamChunk is one increment of a streaming generation. Done is set on the
// terminal chunk, which also carries the usage summary when the provider
// reports one.
type StreamChunk struct {
	Text  string
	Done  bool
	Usage *Usage
}

// ChunkHandler receives stream chunks in order. Returning an error aborts
// consumption of the stream.
type ChunkHandler func(chunk StreamChunk) error

// StreamErrorHandler is notified of a stream-establishment failure before
// the fallback decision is applied.
type StreamErrorHandler func(err error)

// EmbeddingRequest is one embedding call; Input may carry a batch.
type EmbeddingRequest struct {
	Input           []string
	Model           *ModelConfig
	DisableFallback bool
}

// EmbeddingResult holds one embedding per input, in input order.
type EmbeddingResult struct {
	Embeddings [][]float64
	Usage      Usage
	Provider   ProviderID
	ModelID    string
}

// ProviderCredentials configures one provider's endpoint and credential,
// read from the environment at process start.
type ProviderCredentials struct {
	APIKey  string
	BaseURL string
	// UseDefaultCredentials selects oauth2 application-default credentials
	// instead of APIKey (google only).
	UseDefaultCredentials bool
	ProjectID             string
	Location              string
}

// URLStrategy selects how the custom OpenAI-compatible adapter builds
// request URLs.
type URLStrategy string

const (
	// URLStandard joins {base}{path}.
	URLStandard URLStrategy = "standard"
	// URLModelInPath joins {base}/{model}/v1{path}.
	URLModelInPath URLStrategy = "model-in-path"
	// URLCustom delegates to CustomProviderConfig.BuildURL.
	URLCustom URLStrategy = "custom"
)

// CustomProviderConfig configures the generic OpenAI-compatible adapter for
// vendors whose API deviates from the common convention only in URL layout.
type CustomProviderConfig struct {
	Name        string
	APIKey      string
	BaseURL     string
	URLStrategy URLStrategy
	// BuildURL is consulted only when URLStrategy is URLCustom.
	BuildURL func(baseURL, modelID, path string) string
}

// RetryConfig bounds low-level attempts inside one provider call.
type RetryConfig struct {
	PrimaryMaxRetries  int
	FallbackMaxRetries int
	// Backoff is slept between attempts within one provider call.
	Backoff time.Duration
	// AttemptTimeout bounds a single HTTP attempt; zero leaves only the
	// request context in charge.
	AttemptTimeout time.Duration
}

// RedisConfig configures the optional metrics tracker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Defaults names the process-wide default models.
type Defaults struct {
	LLMPrimary        ModelConfig
	LLMFallback       ModelConfig
	EmbeddingPrimary  ModelConfig
	EmbeddingFallback ModelConfig
}

// Config is the gateway configuration, assembled once at startup and treated
// as read-only afterwards.
type Config struct {
	OpenAI    ProviderCredentials
	Anthropic ProviderCredentials
	Google    ProviderCredentials
	DeepInfra ProviderCredentials
	Custom    *CustomProviderConfig

	Defaults Defaults
	Retry    RetryConfig

	// RedisConfig enables latency/error tracking when non-nil.
	RedisConfig *RedisConfig

	LogLevel string
}
