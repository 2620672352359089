// Package providers holds what the hosted AI API clients share: the error
// taxonomy callers branch on and network-failure classification.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind classifies provider failures by how the caller should react.
type Kind string

const (
	// KindAuth is a rejected or missing credential. Never retried.
	KindAuth Kind = "auth"
	// KindQuota is an exhausted provider-side balance. Never retried.
	KindQuota Kind = "quota"
	// KindTransient covers rate limiting, 5xx and network failures.
	KindTransient Kind = "transient"
	// KindInvalid is a request the provider refused or a response we could not use.
	KindInvalid Kind = "invalid"
)

// Error is returned by every provider client for remote failures.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Provider, msg, e.Code)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

// KindForStatus maps an HTTP status to a failure kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusPaymentRequired:
		return KindQuota
	case status == http.StatusTooManyRequests || status >= 500:
		return KindTransient
	default:
		return KindInvalid
	}
}

// FromResponse builds an Error from a non-2xx response body. It understands
// the {"code","message"} shape of DashScope and the {"title","detail"} shape
// of Replicate, and falls back to the trimmed raw body.
func FromResponse(provider string, status int, body []byte) *Error {
	var detail struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Title   string `json:"title"`
		Detail  string `json:"detail"`
	}
	e := &Error{Provider: provider, Kind: KindForStatus(status), StatusCode: status}
	if err := json.Unmarshal(body, &detail); err == nil {
		e.Code = detail.Code
		e.Message = firstNonEmpty(detail.Message, detail.Detail, detail.Title)
	}
	if e.Message == "" {
		e.Message = truncate(strings.TrimSpace(string(body)), 200)
	}
	return e
}

// Transport wraps a failed round trip. Network-class failures are transient;
// cancellation and anything else are not.
func Transport(provider string, err error) *Error {
	kind := KindInvalid
	if IsNetwork(err) {
		kind = KindTransient
	}
	return &Error{Provider: provider, Kind: kind, Err: err}
}

// Invalid reports an unusable response or a rejected request.
func Invalid(provider, format string, args ...any) *Error {
	return &Error{Provider: provider, Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind, or "" for non-provider errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// IsNetwork reports connection resets, timeouts and DNS failures. Context
// cancellation by the caller is never network-class.
func IsNetwork(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
