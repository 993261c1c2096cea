package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Kind classifies a StreamError.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidInput is a rejected question (HTTP 400), raised before any
	// network call when validation happens locally.
	KindInvalidInput
	// KindRateLimited is HTTP 429.
	KindRateLimited
	// KindPaymentRequired is HTTP 402, an exhausted upstream quota.
	KindPaymentRequired
	// KindUpstreamFailure is any other non-2xx status.
	KindUpstreamFailure
	// KindNoBody means the response had nothing to read.
	KindNoBody
	// KindTransportFailure is a read error once streaming has begun.
	KindTransportFailure
	// KindMalformed means the pending buffer outgrew its bound.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindRateLimited:
		return "rate_limited"
	case KindPaymentRequired:
		return "payment_required"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindNoBody:
		return "no_body"
	case KindTransportFailure:
		return "transport_failure"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Matching compares kinds only.
var (
	ErrInvalidInput     = &StreamError{Kind: KindInvalidInput}
	ErrRateLimited      = &StreamError{Kind: KindRateLimited}
	ErrPaymentRequired  = &StreamError{Kind: KindPaymentRequired}
	ErrUpstreamFailure  = &StreamError{Kind: KindUpstreamFailure}
	ErrNoBody           = &StreamError{Kind: KindNoBody}
	ErrTransportFailure = &StreamError{Kind: KindTransportFailure}
	ErrMalformed        = &StreamError{Kind: KindMalformed}

	// ErrCanceled is returned by Stream.Wait after Cancel.
	ErrCanceled = errors.New("sse: stream canceled")
)

// StreamError is the error type for everything that can go wrong opening or
// reading an answer stream.
type StreamError struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *StreamError) Error() string {
	var b strings.Builder
	b.WriteString("sse: ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Is matches any *StreamError of the same kind.
func (e *StreamError) Is(target error) bool {
	t, ok := target.(*StreamError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *StreamError in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// KindForStatus maps an HTTP status to the error kind it represents.
// Success statuses map to KindUnknown.
func KindForStatus(status int) Kind {
	switch {
	case status >= 200 && status < 300:
		return KindUnknown
	case status == http.StatusBadRequest:
		return KindInvalidInput
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusPaymentRequired:
		return KindPaymentRequired
	default:
		return KindUpstreamFailure
	}
}

// StatusForKind is the inverse of KindForStatus for the kinds an endpoint
// reports to its clients.
func StatusForKind(k Kind) int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// DefaultMessage is the user-facing text for a kind when the upstream did
// not supply one.
func DefaultMessage(k Kind) string {
	switch k {
	case KindInvalidInput:
		return "Invalid request"
	case KindRateLimited:
		return "Rate limit exceeded, please try again later."
	case KindPaymentRequired:
		return "AI usage limit reached, please add credits to continue."
	case KindNoBody:
		return "Response had no body"
	case KindTransportFailure:
		return "Connection lost while streaming the answer"
	case KindMalformed:
		return "Malformed answer stream"
	default:
		return "AI service error"
	}
}

// ErrorFromResponse classifies a non-2xx response. The body is read (up to
// 64 KiB) for an {"error": "..."} message and closed. It returns nil for a
// 2xx response and leaves the body untouched.
func ErrorFromResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	kind := KindForStatus(resp.StatusCode)
	msg := ""
	if resp.Body != nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		msg = errorMessage(body)
	}
	if msg == "" {
		msg = DefaultMessage(kind)
	}

	return &StreamError{
		Kind:    kind,
		Status:  resp.StatusCode,
		Message: msg,
	}
}

// errorMessage pulls a message out of {"error": "..."} or
// {"error": {"message": "..."}} bodies.
func errorMessage(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Error, &s); err == nil {
		return s
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &nested); err == nil {
		return nested.Message
	}
	return ""
}
