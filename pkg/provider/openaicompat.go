package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ainqa-health/aigateway/pkg/model"
)

const (
	openAIBaseURL    = "https://api.openai.com/v1"
	deepInfraBaseURL = "https://api.deepinfra.com/v1/openai"
)

// URLBuilder produces the full request URL for one call against an
// OpenAI-compatible vendor.
type URLBuilder func(baseURL, modelID, path string) string

// StandardURL joins {base}{path}; the common OpenAI convention.
func StandardURL(baseURL, _ string, path string) string {
	return strings.TrimSuffix(baseURL, "/") + path
}

// ModelInPathURL joins {base}/{model}/v1{path}, for vendors that scope the
// whole API under the model identifier.
func ModelInPathURL(baseURL, modelID, path string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + modelID + "/v1" + path
}

// OpenAICompatClient speaks the OpenAI wire shape against any base URL. It
// exists so that vendors who deviate from the convention only in URL layout
// do not need a bespoke client.
type OpenAICompatClient struct {
	id       model.ProviderID
	apiKey   string
	baseURL  string
	buildURL URLBuilder
	opts     callOptions
}

// NewOpenAICompatClient builds the generic adapter. buildURL may be nil, in
// which case the standard layout is used.
func NewOpenAICompatClient(id model.ProviderID, apiKey, baseURL string, buildURL URLBuilder, opts Options) *OpenAICompatClient {
	if buildURL == nil {
		buildURL = StandardURL
	}
	return &OpenAICompatClient{
		id:       id,
		apiKey:   apiKey,
		baseURL:  baseURL,
		buildURL: buildURL,
		opts:     opts.call(),
	}
}

// NewOpenAIClient builds the client for api.openai.com.
func NewOpenAIClient(apiKey, baseURL string, opts Options) *OpenAICompatClient {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return NewOpenAICompatClient(model.ProviderOpenAI, apiKey, baseURL, StandardURL, opts)
}

// NewDeepInfraClient builds the client for DeepInfra's OpenAI-compatible
// endpoint.
func NewDeepInfraClient(apiKey, baseURL string, opts Options) *OpenAICompatClient {
	if baseURL == "" {
		baseURL = deepInfraBaseURL
	}
	return NewOpenAICompatClient(model.ProviderDeepInfra, apiKey, baseURL, StandardURL, opts)
}

// Options carries the shared HTTP knobs for a client.
type Options struct {
	HTTPClient     *http.Client
	Backoff        time.Duration
	AttemptTimeout time.Duration
}

func (o Options) call() callOptions {
	return callOptions{httpClient: o.HTTPClient, backoff: o.Backoff, attemptTimeout: o.AttemptTimeout}
}

func (c *OpenAICompatClient) jsonRequest(ctx context.Context, url string, payload interface{}) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *OpenAICompatClient) chatPayload(modelID string, messages []model.Message, settings map[string]interface{}) map[string]interface{} {
	payload := map[string]interface{}{
		"model":    modelID,
		"messages": messages,
	}
	for k, v := range settings {
		payload[k] = v
	}
	return payload
}

// Generate implements GenerationClient.
func (c *OpenAICompatClient) Generate(ctx context.Context, modelID string, messages []model.Message, settings map[string]interface{}, retries int) (*model.GenerationResult, error) {
	url := c.buildURL(c.baseURL, modelID, "/chat/completions")
	payload := c.chatPayload(modelID, messages, settings)

	body, err := doWithRetries(ctx, c.opts, c.id, modelID, func(ctx context.Context) (*http.Request, error) {
		return c.jsonRequest(ctx, url, payload)
	}, retries)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage model.Usage `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &model.ProviderError{Provider: c.id, ModelID: modelID, Message: "decoding response", Cause: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &model.ProviderError{Provider: c.id, ModelID: modelID, Message: "response contained no choices"}
	}
	return &model.GenerationResult{
		Text:     parsed.Choices[0].Message.Content,
		Usage:    parsed.Usage,
		Provider: c.id,
		ModelID:  modelID,
	}, nil
}

// Stream implements GenerationClient. The retry budget covers establishment
// only; once the stream is live, chunk failures surface to the caller.
func (c *OpenAICompatClient) Stream(ctx context.Context, modelID string, messages []model.Message, settings map[string]interface{}, retries int) (*GenerationStream, error) {
	url := c.buildURL(c.baseURL, modelID, "/chat/completions")
	payload := c.chatPayload(modelID, messages, settings)
	payload["stream"] = true
	payload["stream_options"] = map[string]interface{}{"include_usage": true}

	body, err := openStream(ctx, c.opts, c.id, modelID, func(ctx context.Context) (*http.Request, error) {
		return c.jsonRequest(ctx, url, payload)
	}, retries)
	if err != nil {
		return nil, err
	}

	return newGenerationStream(body, func(onChunk model.ChunkHandler) error {
		var usage *model.Usage
		err := scanSSE(body, func(data []byte) error {
			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
				Usage *model.Usage `json:"usage"`
			}
			if err := json.Unmarshal(data, &chunk); err != nil {
				return &model.ProviderError{Provider: c.id, ModelID: modelID, Message: "decoding stream chunk", Cause: err}
			}
			if chunk.Usage != nil {
				usage = chunk.Usage
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				return onChunk(model.StreamChunk{Text: chunk.Choices[0].Delta.Content})
			}
			return nil
		})
		if err != nil {
			return err
		}
		return onChunk(model.StreamChunk{Done: true, Usage: usage})
	}), nil
}

// Embed implements EmbeddingClient.
func (c *OpenAICompatClient) Embed(ctx context.Context, modelID string, input []string, retries int) (*model.EmbeddingResult, error) {
	url := c.buildURL(c.baseURL, modelID, "/embeddings")
	payload := map[string]interface{}{
		"model": modelID,
		"input": input,
	}

	body, err := doWithRetries(ctx, c.opts, c.id, modelID, func(ctx context.Context) (*http.Request, error) {
		return c.jsonRequest(ctx, url, payload)
	}, retries)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
		Usage model.Usage `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &model.ProviderError{Provider: c.id, ModelID: modelID, Message: "decoding response", Cause: err}
	}
	if len(parsed.Data) != len(input) {
		return nil, &model.ProviderError{Provider: c.id, ModelID: modelID, Message: "embedding count does not match input count"}
	}

	embeddings := make([][]float64, len(input))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(input) {
			return nil, &model.ProviderError{Provider: c.id, ModelID: modelID, Message: "embedding index out of range"}
		}
		embeddings[d.Index] = d.Embedding
	}
	return &model.EmbeddingResult{
		Embeddings: embeddings,
		Usage:      parsed.Usage,
		Provider:   c.id,
		ModelID:    modelID,
	}, nil
}
