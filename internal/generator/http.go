package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	renderMaxElapsed   = 30 * time.Second
	maxErrorBody       = 512
)

// HTTPRenderer posts render specs to a remote backend. Transport errors,
// 429 and 5xx responses are retried with exponential backoff inside a
// single Render call; other failures return at once.
type HTTPRenderer struct {
	endpoint   string
	apiKey     string
	client     *http.Client
	newBackOff func() backoff.BackOff
}

// HTTPOption configures an HTTPRenderer.
type HTTPOption func(*HTTPRenderer)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPRenderer) {
		r.client = c
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) HTTPOption {
	return func(r *HTTPRenderer) {
		r.apiKey = key
	}
}

// WithBackOff replaces the retry policy. newBackOff is called once per
// Render because BackOff values are stateful.
func WithBackOff(newBackOff func() backoff.BackOff) HTTPOption {
	return func(r *HTTPRenderer) {
		r.newBackOff = newBackOff
	}
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = renderMaxElapsed
	return bo
}

// NewHTTPRenderer returns a renderer posting to endpoint.
func NewHTTPRenderer(endpoint string, opts ...HTTPOption) *HTTPRenderer {
	r := &HTTPRenderer{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: defaultHTTPTimeout},
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("render backend returned %d: %s", e.StatusCode, e.Body)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Render implements Renderer.
func (r *HTTPRenderer) Render(ctx context.Context, spec RenderSpec) (Rendering, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return Rendering{}, fmt.Errorf("encode render spec: %w", err)
	}

	var out Rendering
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if r.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+r.apiKey)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			serr := &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
			if retryable(resp.StatusCode) {
				return serr
			}
			return backoff.Permanent(serr)
		}

		var rendering Rendering
		if err := json.NewDecoder(resp.Body).Decode(&rendering); err != nil {
			return backoff.Permanent(fmt.Errorf("decode render response: %w", err))
		}
		if rendering.SVG == "" {
			return backoff.Permanent(errors.New("render response has no svg"))
		}
		out = rendering
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(r.newBackOff(), ctx)); err != nil {
		return Rendering{}, err
	}
	return out, nil
}
