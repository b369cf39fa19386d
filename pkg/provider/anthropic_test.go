package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ainqa-health/aigateway/pkg/model"
)

func TestAnthropicGenerate(t *testing.T) {
	var gotBody map[string]interface{}
	var gotVersion, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		fmt.Fprint(w, `{
			"content": [{"type": "text", "text": "diagnosis pending"}],
			"usage": {"input_tokens": 12, "output_tokens": 8}
		}`)
	}))
	defer server.Close()

	client := NewAnthropicClient("secret", server.URL, Options{})
	result, err := client.Generate(context.Background(), "claude-sonnet-4-5",
		[]model.Message{
			{"role": "system", "content": "be careful"},
			{"role": "user", "content": "what is it"},
		}, nil, 1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if result.Text != "diagnosis pending" {
		t.Errorf("Text = %q, want %q", result.Text, "diagnosis pending")
	}
	if result.Usage.TotalTokens != 20 {
		t.Errorf("TotalTokens = %d, want 20", result.Usage.TotalTokens)
	}
	if gotKey != "secret" {
		t.Errorf("x-api-key = %q, want %q", gotKey, "secret")
	}
	if gotVersion == "" {
		t.Error("anthropic-version header not set")
	}

	// The system message rides as a top-level field, not in messages.
	if gotBody["system"] != "be careful" {
		t.Errorf("system = %v, want %q", gotBody["system"], "be careful")
	}
	messages, ok := gotBody["messages"].([]interface{})
	if !ok || len(messages) != 1 {
		t.Fatalf("messages = %v, want exactly the user turn", gotBody["messages"])
	}
	if gotBody["max_tokens"] == nil {
		t.Error("max_tokens not set; the messages API requires it")
	}
}

func TestAnthropicStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":7}}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"ok\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_delta\",\"usage\":{\"output_tokens\":2}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	client := NewAnthropicClient("secret", server.URL, Options{})
	stream, err := client.Stream(context.Background(), "claude-sonnet-4-5",
		[]model.Message{{"role": "user", "content": "hi"}}, nil, 1)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var text string
	var usage *model.Usage
	err = stream.Consume(func(chunk model.StreamChunk) error {
		if chunk.Done {
			usage = chunk.Usage
			return nil
		}
		text += chunk.Text
		return nil
	})
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if text != "ok" {
		t.Errorf("streamed text = %q, want %q", text, "ok")
	}
	if usage == nil || usage.TotalTokens != 9 {
		t.Errorf("usage = %+v, want total 9", usage)
	}
}
