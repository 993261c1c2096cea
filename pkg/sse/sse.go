// Package sse reads streamed assistant answers from an OpenAI-compatible
// Server-Sent Events response. It is the one streaming parser used by every
// infobase call site: the assistant proxy observes the upstream stream with
// it while forwarding bytes verbatim, and the CLI renders answers from it
// token by token.
//
// Only "data:" fields are consumed. Each data payload is a JSON chat delta
// whose choices[0].delta.content fragment is appended to the answer, and the
// literal payload "[DONE]" ends the stream.
//
// Event stream format:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"encoding/json"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// DefaultMaxPending is the default bound on bytes held back waiting for
	// a line to complete or a pushed-back payload to parse.
	DefaultMaxPending = 1024 * 1024
)

// EmitFunc receives every appended content fragment together with the full
// answer accumulated so far.
type EmitFunc func(delta, answer string)

// ChatDelta is the provider's streaming chunk. Only the content path is
// modelled; everything else is ignored.
type ChatDelta struct {
	Choices []struct {
		Delta struct {
			Content json.RawMessage `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// extractContent reports whether payload is valid JSON and, if so, the
// choices[0].delta.content string it carries. A payload that parses but has
// no string at that path yields "" with ok set.
func extractContent(payload []byte) (string, bool) {
	if !json.Valid(payload) {
		return "", false
	}

	var delta ChatDelta
	if err := json.Unmarshal(payload, &delta); err != nil {
		// Valid JSON of an unexpected shape, e.g. choices as an object.
		return "", true
	}
	if len(delta.Choices) == 0 || len(delta.Choices[0].Delta.Content) == 0 {
		return "", true
	}

	var content string
	if err := json.Unmarshal(delta.Choices[0].Delta.Content, &content); err != nil {
		return "", true
	}
	return content, true
}

type options struct {
	maxPending int
	emit       EmitFunc
}

// Option configures a State or Stream.
type Option func(*options)

// WithMaxPending bounds the bytes the reader holds back. Exceeding it fails
// the stream with KindMalformed. Zero or a negative value disables the
// bound.
func WithMaxPending(n int) Option {
	return func(o *options) {
		o.maxPending = n
	}
}

// WithEmit sets the fragment sink on a State created with NewState.
func WithEmit(fn EmitFunc) Option {
	return func(o *options) {
		o.emit = fn
	}
}

func newOptions(opts []Option) *options {
	o := &options{maxPending: DefaultMaxPending}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
