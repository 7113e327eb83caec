// Package api is the typed client for the backend REST contract.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	xerrors "soulchat-agent/internal/pkg/errors"
	"soulchat-agent/internal/pkg/response"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// TokenSource yields the current access token. It is consulted on every
// request so a token invalidated by a concurrent sign-out is never reused.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps auth statuses onto the shared sentinels.
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return xerrors.ErrUnauthorized
	case http.StatusNotFound:
		return xerrors.ErrNotFound
	}
	if e.StatusCode >= 500 {
		return xerrors.ErrNetwork
	}
	return nil
}

// Client is the backend API client.
type Client struct {
	baseURL    string
	tokens     TokenSource
	deviceID   string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default 30s-timeout client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDeviceID sets the X-Device-Id header value.
func WithDeviceID(id string) Option {
	return func(c *Client) { c.deviceID = id }
}

// New creates a new API client. tokens may be nil for unauthenticated use.
func New(baseURL string, tokens TokenSource, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out, true)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out, true)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any, withAuth bool) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := ulid.Make().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}
	if withAuth && c.tokens != nil {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("do request: %w: %w", xerrors.ErrNetwork, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w: %w", xerrors.ErrNetwork, err)
	}

	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode >= 400 {
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if err := response.Unwrap(respBody, out); err != nil {
		var failure *response.Failure
		if errors.As(err, &failure) {
			return err
		}
		return fmt.Errorf("decode response: %w: %w", xerrors.ErrMalformedResponse, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	return string(body)
}
