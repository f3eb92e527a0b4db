// Package client talks to the TrustPlay HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/malbeclabs/trustplay/api/handlers"
	"github.com/malbeclabs/trustplay/program/pkg/processor"
	"github.com/malbeclabs/trustplay/utils/pkg/retry"
)

// DefaultURL is used when TRUSTPLAY_API_URL is unset.
const DefaultURL = "http://localhost:8080"

// URLFromEnv returns the configured API URL.
func URLFromEnv() string {
	if u := os.Getenv("TRUSTPLAY_API_URL"); u != "" {
		return u
	}
	return DefaultURL
}

// ErrNotFound is matched by APIErrors with status 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the API.
type APIError struct {
	Status   int
	Response handlers.ErrorResponse
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api: %d", e.Status)
	if r := e.Response; r.Instruction != "" && r.Index != nil {
		fmt.Fprintf(&b, " instruction %d (%s)", *r.Index, r.Instruction)
	}
	fmt.Fprintf(&b, ": %s", e.Response.Error)
	return b.String()
}

// StatusCode lets retry.IsRetryable inspect the status.
func (e *APIError) StatusCode() int {
	return e.Status
}

// Unwrap exposes the program error code, so callers can match it with
// errors.Is.
func (e *APIError) Unwrap() error {
	if e.Response.Name == "" {
		return nil
	}
	return processor.ErrorCode(e.Response.Code)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type Config struct {
	Logger     *slog.Logger
	BaseURL    string
	HTTPClient *http.Client
	Retry      retry.Config
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = URLFromEnv()
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return nil
}

type Client struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{log: cfg.Logger, cfg: cfg}, nil
}

// do sends one request, retrying transient failures, and decodes a 2xx JSON
// body into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return retry.Do(ctx, c.cfg.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		c.log.Debug("client: request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode}
			if err := json.Unmarshal(respBody, &apiErr.Response); err != nil || apiErr.Response.Error == "" {
				apiErr.Response.Error = strings.TrimSpace(string(respBody))
			}
			return apiErr
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}
