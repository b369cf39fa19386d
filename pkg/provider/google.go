package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ainqa-health/aigateway/pkg/model"
)

const (
	googleGenerativeBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	cloudPlatformScope      = "https://www.googleapis.com/auth/cloud-platform"
)

// Swapped out in tests to avoid hitting real application-default credentials.
var findDefaultCredentials = google.FindDefaultCredentials

// GoogleClient speaks the Gemini generateContent/embedContent API, either
// through the Generative Language endpoint with an API key or through a
// Vertex AI endpoint with application-default credentials.
type GoogleClient struct {
	apiKey      string
	baseURL     string
	tokenSource oauth2.TokenSource
	opts        callOptions
}

// NewGoogleClient builds the client. When creds.UseDefaultCredentials is set,
// an oauth2 token source is resolved from the environment at construction
// time and the Vertex URL layout is used.
func NewGoogleClient(creds model.ProviderCredentials, opts Options) (*GoogleClient, error) {
	c := &GoogleClient{
		apiKey:  creds.APIKey,
		baseURL: creds.BaseURL,
		opts:    opts.call(),
	}
	if creds.UseDefaultCredentials {
		if creds.ProjectID == "" || creds.Location == "" {
			return nil, model.NewConfigError("google provider with default credentials requires project id and location")
		}
		credentials, err := findDefaultCredentials(context.Background(), cloudPlatformScope)
		if err != nil {
			return nil, &model.ConfigError{Message: "resolving google application-default credentials", Cause: err}
		}
		c.tokenSource = credentials.TokenSource
		if c.baseURL == "" {
			c.baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google",
				creds.Location, creds.ProjectID, creds.Location)
		}
	} else if c.baseURL == "" {
		c.baseURL = googleGenerativeBaseURL
	}
	return c, nil
}

func (c *GoogleClient) request(ctx context.Context, url string, payload interface{}) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokenSource != nil {
		token, err := c.tokenSource.Token()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	} else if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}
	return req, nil
}

// contents converts chat messages to the Gemini contents shape. Gemini has
// no system role in contents; system messages ride along as user turns.
func contents(messages []model.Message) []map[string]interface{} {
	converted := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		role := m["role"]
		switch role {
		case "assistant":
			role = "model"
		case "system":
			role = "user"
		}
		converted = append(converted, map[string]interface{}{
			"role":  role,
			"parts": []map[string]string{{"text": m["content"]}},
		})
	}
	return converted
}

type googleGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (r googleGenerateResponse) usage() model.Usage {
	return model.Usage{
		PromptTokens:     r.UsageMetadata.PromptTokenCount,
		CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      r.UsageMetadata.TotalTokenCount,
	}
}

func (r googleGenerateResponse) text() string {
	var text string
	for _, cand := range r.Candidates {
		for _, part := range cand.Content.Parts {
			text += part.Text
		}
		break
	}
	return text
}

// Generate implements GenerationClient.
func (c *GoogleClient) Generate(ctx context.Context, modelID string, messages []model.Message, settings map[string]interface{}, retries int) (*model.GenerationResult, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, modelID)
	payload := map[string]interface{}{
		"contents": contents(messages),
	}
	if len(settings) > 0 {
		payload["generationConfig"] = settings
	}

	body, err := doWithRetries(ctx, c.opts, model.ProviderGoogle, modelID, func(ctx context.Context) (*http.Request, error) {
		return c.request(ctx, url, payload)
	}, retries)
	if err != nil {
		return nil, err
	}

	var parsed googleGenerateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &model.ProviderError{Provider: model.ProviderGoogle, ModelID: modelID, Message: "decoding response", Cause: err}
	}
	if len(parsed.Candidates) == 0 {
		return nil, &model.ProviderError{Provider: model.ProviderGoogle, ModelID: modelID, Message: "response contained no candidates"}
	}
	return &model.GenerationResult{
		Text:     parsed.text(),
		Usage:    parsed.usage(),
		Provider: model.ProviderGoogle,
		ModelID:  modelID,
	}, nil
}

// Stream implements GenerationClient via streamGenerateContent with SSE.
func (c *GoogleClient) Stream(ctx context.Context, modelID string, messages []model.Message, settings map[string]interface{}, retries int) (*GenerationStream, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.baseURL, modelID)
	payload := map[string]interface{}{
		"contents": contents(messages),
	}
	if len(settings) > 0 {
		payload["generationConfig"] = settings
	}

	body, err := openStream(ctx, c.opts, model.ProviderGoogle, modelID, func(ctx context.Context) (*http.Request, error) {
		return c.request(ctx, url, payload)
	}, retries)
	if err != nil {
		return nil, err
	}

	return newGenerationStream(body, func(onChunk model.ChunkHandler) error {
		var usage model.Usage
		err := scanSSE(body, func(data []byte) error {
			var chunk googleGenerateResponse
			if err := json.Unmarshal(data, &chunk); err != nil {
				return &model.ProviderError{Provider: model.ProviderGoogle, ModelID: modelID, Message: "decoding stream chunk", Cause: err}
			}
			if chunk.UsageMetadata.TotalTokenCount > 0 {
				usage = chunk.usage()
			}
			if text := chunk.text(); text != "" {
				return onChunk(model.StreamChunk{Text: text})
			}
			return nil
		})
		if err != nil {
			return err
		}
		return onChunk(model.StreamChunk{Done: true, Usage: &usage})
	}), nil
}

// Embed implements EmbeddingClient via batchEmbedContents.
func (c *GoogleClient) Embed(ctx context.Context, modelID string, input []string, retries int) (*model.EmbeddingResult, error) {
	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", c.baseURL, modelID)

	requests := make([]map[string]interface{}, len(input))
	for i, text := range input {
		requests[i] = map[string]interface{}{
			"model":   "models/" + modelID,
			"content": map[string]interface{}{"parts": []map[string]string{{"text": text}}},
		}
	}
	payload := map[string]interface{}{"requests": requests}

	body, err := doWithRetries(ctx, c.opts, model.ProviderGoogle, modelID, func(ctx context.Context) (*http.Request, error) {
		return c.request(ctx, url, payload)
	}, retries)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Embeddings []struct {
			Values []float64 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &model.ProviderError{Provider: model.ProviderGoogle, ModelID: modelID, Message: "decoding response", Cause: err}
	}
	if len(parsed.Embeddings) != len(input) {
		return nil, &model.ProviderError{Provider: model.ProviderGoogle, ModelID: modelID, Message: "embedding count does not match input count"}
	}

	embeddings := make([][]float64, len(input))
	for i, e := range parsed.Embeddings {
		embeddings[i] = e.Values
	}
	return &model.EmbeddingResult{
		Embeddings: embeddings,
		Provider:   model.ProviderGoogle,
		ModelID:    modelID,
	}, nil
}
