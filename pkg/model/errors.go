package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is the single error shape surfaced for a failed provider
// call. StatusCode is zero when the failure never produced an HTTP response.
type ProviderError struct {
	Provider   ProviderID
	ModelID    string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %d (%s): %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ConfigError marks a deployment or programming mistake: unknown provider,
// missing credential, malformed embedding input. It bypasses classification
// and is never subject to retry or fallback.
type ConfigError struct {
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Message, e.Cause)
	}
	return "configuration: " + e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// StatusCode extracts the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}
