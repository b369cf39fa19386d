// Package classify maps raw provider failures to a named error kind plus a
// fallback-eligibility verdict. Classification is pure and total: any error,
// including one of unknown shape, yields a usable verdict.
package classify

import (
	"strings"

	"github.com/ainqa-health/aigateway/pkg/model"
)

// ErrorKind is the failure taxonomy consulted by the fallback orchestrator.
type ErrorKind string

const (
	KindTransient        ErrorKind = "transient"
	KindPermanent        ErrorKind = "permanent"
	KindRateLimit        ErrorKind = "rate_limit"
	KindAuth             ErrorKind = "auth"
	KindModelUnavailable ErrorKind = "model_unavailable"
)

// Classification is derived fresh from each failure, never persisted.
type Classification struct {
	ShouldFallback bool
	Kind           ErrorKind
	Description    string
}

// Classify maps an arbitrary failure to a Classification. HTTP status takes
// priority over message matching; an unrecognized failure is treated as
// transient so a configured fallback path still gets its chance.
func Classify(err error) Classification {
	if err == nil {
		return Classification{ShouldFallback: false, Kind: KindTransient, Description: "no error"}
	}

	if status := model.StatusCode(err); status > 0 {
		switch {
		case status >= 500 && status <= 599:
			return Classification{ShouldFallback: true, Kind: KindTransient, Description: "server error, transient"}
		case status == 429:
			return Classification{ShouldFallback: true, Kind: KindRateLimit, Description: "rate limited"}
		case status == 401 || status == 403:
			return Classification{ShouldFallback: true, Kind: KindAuth, Description: "authentication or authorization failure"}
		case status == 400:
			return Classification{ShouldFallback: true, Kind: KindPermanent, Description: "likely malformed or unsupported request"}
		case status == 404:
			return Classification{ShouldFallback: true, Kind: KindModelUnavailable, Description: "model not found"}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "network", "timeout", "connection reset", "connection refused", "timed out"):
		return Classification{ShouldFallback: true, Kind: KindTransient, Description: "network failure"}
	case containsAny(msg, "api key", "api-key", "unauthorized", "authentication"):
		return Classification{ShouldFallback: true, Kind: KindAuth, Description: "credential failure"}
	case strings.Contains(msg, "model") && containsAny(msg, "not found", "unavailable"):
		return Classification{ShouldFallback: true, Kind: KindModelUnavailable, Description: "model unavailable"}
	case containsAny(msg, "rate limit", "quota exceeded"):
		return Classification{ShouldFallback: true, Kind: KindRateLimit, Description: "rate limited"}
	}

	return Classification{ShouldFallback: true, Kind: KindTransient, Description: "unrecognized failure, treated as transient"}
}

// ShouldFallbackImmediately reports whether the failure will not self-heal on
// the primary, so retry budget there is wasted. The orchestrator currently
// runs the primary with its full budget regardless; this predicate is kept
// for callers that want to pre-empt.
func ShouldFallbackImmediately(kind ErrorKind) bool {
	switch kind {
	case KindAuth, KindRateLimit, KindPermanent, KindModelUnavailable:
		return true
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
