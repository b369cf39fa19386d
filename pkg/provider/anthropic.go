package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/ainqa-health/aigateway/pkg/model"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"
	// The messages API requires max_tokens; used when settings omit it.
	anthropicDefaultMaxTokens = 4096
)

// AnthropicClient speaks the Anthropic messages API. Anthropic offers no
// embeddings endpoint; the registry rejects embedding resolution for this
// provider before any call reaches here.
type AnthropicClient struct {
	apiKey  string
	baseURL string
	opts    callOptions
}

func NewAnthropicClient(apiKey, baseURL string, opts Options) *AnthropicClient {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &AnthropicClient{apiKey: apiKey, baseURL: baseURL, opts: opts.call()}
}

// splitSystem separates system messages from the conversation, since the
// messages API carries the system prompt as a top-level field.
func splitSystem(messages []model.Message) (string, []map[string]string) {
	var system string
	converted := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		if m["role"] == "system" {
			if system != "" {
				system += "\n"
			}
			system += m["content"]
			continue
		}
		converted = append(converted, map[string]string{
			"role":    m["role"],
			"content": m["content"],
		})
	}
	return system, converted
}

func (c *AnthropicClient) payload(modelID string, messages []model.Message, settings map[string]interface{}) map[string]interface{} {
	system, converted := splitSystem(messages)
	payload := map[string]interface{}{
		"model":      modelID,
		"messages":   converted,
		"max_tokens": anthropicDefaultMaxTokens,
	}
	if system != "" {
		payload["system"] = system
	}
	for k, v := range settings {
		payload[k] = v
	}
	return payload
}

func (c *AnthropicClient) request(ctx context.Context, payload interface{}) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	return req, nil
}

// Generate implements GenerationClient.
func (c *AnthropicClient) Generate(ctx context.Context, modelID string, messages []model.Message, settings map[string]interface{}, retries int) (*model.GenerationResult, error) {
	payload := c.payload(modelID, messages, settings)

	body, err := doWithRetries(ctx, c.opts, model.ProviderAnthropic, modelID, func(ctx context.Context) (*http.Request, error) {
		return c.request(ctx, payload)
	}, retries)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &model.ProviderError{Provider: model.ProviderAnthropic, ModelID: modelID, Message: "decoding response", Cause: err}
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return &model.GenerationResult{
		Text: text,
		Usage: model.Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
		Provider: model.ProviderAnthropic,
		ModelID:  modelID,
	}, nil
}

// Stream implements GenerationClient via the messages API SSE protocol.
func (c *AnthropicClient) Stream(ctx context.Context, modelID string, messages []model.Message, settings map[string]interface{}, retries int) (*GenerationStream, error) {
	payload := c.payload(modelID, messages, settings)
	payload["stream"] = true

	body, err := openStream(ctx, c.opts, model.ProviderAnthropic, modelID, func(ctx context.Context) (*http.Request, error) {
		return c.request(ctx, payload)
	}, retries)
	if err != nil {
		return nil, err
	}

	return newGenerationStream(body, func(onChunk model.ChunkHandler) error {
		usage := model.Usage{}
		err := scanSSE(body, func(data []byte) error {
			var event struct {
				Type  string `json:"type"`
				Delta struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"delta"`
				Message struct {
					Usage struct {
						InputTokens int `json:"input_tokens"`
					} `json:"usage"`
				} `json:"message"`
				Usage struct {
					OutputTokens int `json:"output_tokens"`
				} `json:"usage"`
			}
			if err := json.Unmarshal(data, &event); err != nil {
				return &model.ProviderError{Provider: model.ProviderAnthropic, ModelID: modelID, Message: "decoding stream event", Cause: err}
			}
			switch event.Type {
			case "message_start":
				usage.PromptTokens = event.Message.Usage.InputTokens
			case "content_block_delta":
				if event.Delta.Text != "" {
					return onChunk(model.StreamChunk{Text: event.Delta.Text})
				}
			case "message_delta":
				usage.CompletionTokens = event.Usage.OutputTokens
			}
			return nil
		})
		if err != nil {
			return err
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		return onChunk(model.StreamChunk{Done: true, Usage: &usage})
	}), nil
}
