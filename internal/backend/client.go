// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"pkt.systems/pslog"

	"github.com/jeranaias/rigrun-overlay/internal/config"
	"github.com/jeranaias/rigrun-overlay/internal/logx"
)

// Paths on the backend server.
const (
	ChatPath     = "/v1/chat"
	ContinuePath = "/v1/continue"
)

// userAgent identifies the overlay to the backend.
const userAgent = "rigrun-overlay/0.1.0"

// sharedStreamingClient is used for streaming requests (no timeout,
// context-controlled).
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// =============================================================================
// CLIENT
// =============================================================================

// Client streams answers from the assistant backend over HTTP + SSE.
type Client struct {
	baseURL          string
	apiKey           string
	http             *http.Client
	limiter          *rate.Limiter
	supportsContinue bool
	log              pslog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the shared streaming HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client logger.
func WithLogger(log pslog.Logger) Option {
	return func(c *Client) { c.log = logx.WithComponent(log, "backend") }
}

// NewClient creates a backend client from configuration. Requests are paced
// by a token bucket of RequestsPerSecond with Burst.
func NewClient(cfg config.BackendConfig, supportsContinue bool, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	c := &Client{
		baseURL:          strings.TrimRight(cfg.URL, "/"),
		apiKey:           cfg.APIKey,
		http:             sharedStreamingClient,
		limiter:          rate.NewLimiter(limit, burst),
		supportsContinue: supportsContinue,
		log:              logx.WithComponent(logx.Discard(), "backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConfigured reports whether a backend URL is set.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// SupportsContinue reports whether Continue is enabled for this backend.
func (c *Client) SupportsContinue() bool {
	return c.supportsContinue
}

// Send implements Backend.
func (c *Client) Send(ctx context.Context, req Request, onEvent func(Event)) error {
	return c.stream(ctx, ChatPath, req, onEvent)
}

// Continue implements Continuer. It fails with ErrContinueUnsupported when
// the deployment does not offer continuation.
func (c *Client) Continue(ctx context.Context, req ContinueRequest, onEvent func(Event)) error {
	if !c.supportsContinue {
		return ErrContinueUnsupported
	}
	return c.stream(ctx, ContinuePath, req, onEvent)
}

// ErrContinueUnsupported is returned by Continue on backends without
// continuation support.
var ErrContinueUnsupported = errors.New("backend: continue not supported")

func (c *Client) stream(ctx context.Context, path string, body any, onEvent func(Event)) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug("backend response", "status", resp.StatusCode, "path", path, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, MaxChunkSize))
		return handleErrorResponse(resp.StatusCode, data)
	}
	return c.processStream(ctx, resp.Body, onEvent)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)
}

// processStream reads the SSE body until the final event, [DONE], EOF or
// cancellation.
func (c *Client) processStream(ctx context.Context, body io.Reader, onEvent func(Event)) error {
	reader := NewSSEReader(body)
	var partial strings.Builder

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &StreamError{Partial: partial.String(), Err: err}
		}

		if bytes.Equal(data, []byte("[DONE]")) {
			return nil
		}

		ev, err := ParseEvent(data)
		if err != nil {
			// Skip malformed chunks
			c.log.Trace("skipping malformed event", "err", err)
			continue
		}
		if ev.Type == EventError {
			return &RemoteError{Message: ev.Error}
		}
		if ev.Type == EventToken {
			partial.WriteString(ev.Token)
		}

		onEvent(ev)

		if ev.Type == EventFinal {
			return nil
		}
	}
}

// apiErrorResponse is the JSON error body the backend returns.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// handleErrorResponse maps a non-200 response to an error.
func handleErrorResponse(statusCode int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg == "" {
			return ErrAuthFailed
		}
		return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
	case http.StatusTooManyRequests:
		if msg == "" {
			return ErrRateLimited
		}
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	default:
		return &HTTPError{Status: statusCode, Message: msg}
	}
}
