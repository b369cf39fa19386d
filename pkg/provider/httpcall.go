package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ainqa-health/aigateway/pkg/model"
)

// callOptions bounds the low-level attempt loop shared by all clients.
type callOptions struct {
	httpClient     *http.Client
	backoff        time.Duration
	attemptTimeout time.Duration
}

func (o callOptions) client() *http.Client {
	if o.httpClient != nil {
		return o.httpClient
	}
	return http.DefaultClient
}

// buildRequest produces a fresh request per attempt; bodies are not reusable
// across attempts.
type buildRequest func(ctx context.Context) (*http.Request, error)

// doWithRetries runs the attempt loop for one provider call. retries is the
// total number of attempts allowed; values below one still get a single
// attempt. A non-2xx response or transport failure consumes an attempt and,
// when budget remains, sleeps the backoff before the next try. The last
// failure is returned as a ProviderError.
func doWithRetries(ctx context.Context, opts callOptions, providerID model.ProviderID, modelID string, build buildRequest, retries int) ([]byte, error) {
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 && opts.backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, &model.ProviderError{Provider: providerID, ModelID: modelID, Message: "request canceled", Cause: ctx.Err()}
			case <-time.After(opts.backoff):
			}
		}

		body, err := doOnce(ctx, opts, providerID, modelID, build)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func doOnce(ctx context.Context, opts callOptions, providerID model.ProviderID, modelID string, build buildRequest) ([]byte, error) {
	attemptCtx := ctx
	if opts.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, opts.attemptTimeout)
		defer cancel()
	}

	req, err := build(attemptCtx)
	if err != nil {
		return nil, &model.ProviderError{Provider: providerID, ModelID: modelID, Message: "building request", Cause: err}
	}

	resp, err := opts.client().Do(req)
	if err != nil {
		return nil, &model.ProviderError{Provider: providerID, ModelID: modelID, Message: "transport failure", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.ProviderError{Provider: providerID, ModelID: modelID, Message: "reading response", Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, statusError(providerID, modelID, resp.StatusCode, body)
}

// statusError builds a ProviderError from a non-2xx response, preferring the
// vendor's structured error message over the raw body.
func statusError(providerID model.ProviderID, modelID string, status int, body []byte) *model.ProviderError {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}
	return &model.ProviderError{Provider: providerID, ModelID: modelID, StatusCode: status, Message: msg}
}

// openStream establishes a streaming response, retrying establishment within
// the given budget. The returned body is live; the caller owns closing it.
func openStream(ctx context.Context, opts callOptions, providerID model.ProviderID, modelID string, build buildRequest, retries int) (io.ReadCloser, error) {
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 && opts.backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, &model.ProviderError{Provider: providerID, ModelID: modelID, Message: "request canceled", Cause: ctx.Err()}
			case <-time.After(opts.backoff):
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, &model.ProviderError{Provider: providerID, ModelID: modelID, Message: "building request", Cause: err}
		}

		resp, err := opts.client().Do(req)
		if err != nil {
			lastErr = &model.ProviderError{Provider: providerID, ModelID: modelID, Message: "transport failure", Cause: err}
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.Body, nil
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = &model.ProviderError{Provider: providerID, ModelID: modelID, StatusCode: resp.StatusCode, Message: "reading error response", Cause: readErr}
			continue
		}
		lastErr = statusError(providerID, modelID, resp.StatusCode, body)
	}
	return nil, lastErr
}

// scanSSE reads server-sent events and hands each data payload to handle.
// A "[DONE]" sentinel ends the stream.
func scanSSE(body io.Reader, handle func(data []byte) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			return nil
		}
		if err := handle(data); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading stream")
	}
	return nil
}
