package classify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ainqa-health/aigateway/pkg/model"
)

func statusErr(status int) error {
	return &model.ProviderError{Provider: model.ProviderOpenAI, StatusCode: status, Message: "boom"}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantKind     ErrorKind
		wantFallback bool
	}{
		{"500", 500, KindTransient, true},
		{"502", 502, KindTransient, true},
		{"503", 503, KindTransient, true},
		{"599", 599, KindTransient, true},
		{"429", 429, KindRateLimit, true},
		{"401", 401, KindAuth, true},
		{"403", 403, KindAuth, true},
		{"400", 400, KindPermanent, true},
		{"404", 404, KindModelUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(statusErr(tt.status))
			if got.Kind != tt.wantKind {
				t.Errorf("Classify(%d).Kind = %v, want %v", tt.status, got.Kind, tt.wantKind)
			}
			if got.ShouldFallback != tt.wantFallback {
				t.Errorf("Classify(%d).ShouldFallback = %v, want %v", tt.status, got.ShouldFallback, tt.wantFallback)
			}
		})
	}
}

func TestClassifyWrappedStatus(t *testing.T) {
	wrapped := fmt.Errorf("calling provider: %w", statusErr(503))
	got := Classify(wrapped)
	if got.Kind != KindTransient {
		t.Errorf("wrapped 503 classified as %v, want %v", got.Kind, KindTransient)
	}
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantKind ErrorKind
	}{
		{"connection timeout", "Connection timeout", KindTransient},
		{"connection reset", "read tcp: connection reset by peer", KindTransient},
		{"network", "network unreachable", KindTransient},
		{"api key", "invalid API key provided", KindAuth},
		{"unauthorized", "request was Unauthorized", KindAuth},
		{"authentication", "authentication failed", KindAuth},
		{"model not found", "the model gpt-99 was not found", KindModelUnavailable},
		{"model unavailable", "model is currently unavailable", KindModelUnavailable},
		{"rate limit", "rate limit reached for requests", KindRateLimit},
		{"quota", "quota exceeded for this billing period", KindRateLimit},
		{"unknown", "something inexplicable happened", KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(errors.New(tt.message))
			if got.Kind != tt.wantKind {
				t.Errorf("Classify(%q).Kind = %v, want %v", tt.message, got.Kind, tt.wantKind)
			}
			if !got.ShouldFallback {
				t.Errorf("Classify(%q).ShouldFallback = false, want true", tt.message)
			}
		})
	}
}

func TestClassifyKeywordPriority(t *testing.T) {
	// Timeout wording wins over auth wording; the network check runs first.
	got := Classify(errors.New("timeout while refreshing api key"))
	if got.Kind != KindTransient {
		t.Errorf("Kind = %v, want %v", got.Kind, KindTransient)
	}
}

func TestShouldFallbackImmediately(t *testing.T) {
	immediate := []ErrorKind{KindAuth, KindRateLimit, KindPermanent, KindModelUnavailable}
	for _, kind := range immediate {
		if !ShouldFallbackImmediately(kind) {
			t.Errorf("ShouldFallbackImmediately(%v) = false, want true", kind)
		}
	}
	if ShouldFallbackImmediately(KindTransient) {
		t.Error("ShouldFallbackImmediately(transient) = true, want false")
	}
}
