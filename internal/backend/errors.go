// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrAuthFailed is returned for 401/403 responses.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited is returned for 429 responses.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotConfigured is returned when the backend URL is empty.
	ErrNotConfigured = errors.New("backend URL not configured")
)

// HTTPError is a non-success HTTP response.
type HTTPError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend: HTTP %d", e.Status)
}

// RemoteError is an error event sent by the backend inside the stream.
type RemoteError struct {
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return "backend: " + e.Message
}

// StreamError is a failure part way through a stream, preserving whatever
// answer text arrived before it.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Kind is the user-facing class of a generation failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindAuth
	KindRateLimit
	KindServer
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Message returns the text shown to the user for this kind.
func (k Kind) Message() string {
	switch k {
	case KindNetwork:
		return "Can't reach the assistant. Check your connection and try again."
	case KindTimeout:
		return "The assistant took too long to respond. Please try again."
	case KindAuth:
		return "Your session has expired. Please sign in again."
	case KindRateLimit:
		return "Too many requests. Wait a moment before sending another message."
	case KindServer:
		return "The assistant ran into a problem. Please try again shortly."
	default:
		return "Something went wrong. Please try again."
	}
}

// IsAbort reports whether err is a caller cancellation rather than a
// failure.
func IsAbort(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Classify maps an error from Send to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, ErrAuthFailed) {
		return KindAuth
	}
	if errors.Is(err, ErrRateLimited) {
		return KindRateLimit
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == http.StatusUnauthorized || httpErr.Status == http.StatusForbidden:
			return KindAuth
		case httpErr.Status == http.StatusTooManyRequests:
			return KindRateLimit
		case httpErr.Status == http.StatusRequestTimeout || httpErr.Status == http.StatusGatewayTimeout:
			return KindTimeout
		case httpErr.Status >= 500:
			return KindServer
		}
		return KindUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var remote *RemoteError
	if errors.As(err, &remote) {
		return KindServer
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var urlErr *url.Error
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return KindNetwork
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return KindNetwork
	case errors.As(err, &urlErr):
		return KindNetwork
	}
	return KindUnknown
}
