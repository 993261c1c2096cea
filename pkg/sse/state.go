package sse

import (
	"bytes"
	"fmt"
	"strings"
)

type lineResult int

const (
	lineSkipped lineResult = iota
	lineAppended
	lineDone
	lineIncomplete
)

// State is the incremental parser behind a Stream. It accepts arbitrary
// chunks through Write and splits them into lines itself, so the same
// logical stream yields the same answer however the transport chunks it.
//
// A State is owned by one reader and is not safe for concurrent use.
type State struct {
	rawBuffer  []byte
	answer     strings.Builder
	terminated bool

	maxPending int
	emit       EmitFunc
}

// NewState returns an empty State.
func NewState(opts ...Option) *State {
	o := newOptions(opts)
	return &State{
		maxPending: o.maxPending,
		emit:       o.emit,
	}
}

// Write feeds a chunk of the response body. It always consumes all of p.
// Once the state has terminated further chunks are ignored. The only error
// is a *StreamError of KindMalformed when more than the configured maximum
// is held back.
func (s *State) Write(p []byte) (int, error) {
	if s.terminated {
		return len(p), nil
	}

	s.rawBuffer = append(s.rawBuffer, p...)

	for {
		idx := bytes.IndexByte(s.rawBuffer, '\n')
		if idx < 0 {
			break
		}

		line := strings.TrimSuffix(string(s.rawBuffer[:idx]), "\r")
		rest := s.rawBuffer[idx+1:]
		s.rawBuffer = rest

		result := s.processLine(line, false)
		if result == lineDone {
			s.terminated = true
			s.rawBuffer = nil
			return len(p), nil
		}
		if result == lineIncomplete {
			// Re-queue only this line and the unread tail. Lines already
			// committed above stay committed.
			pushed := make([]byte, 0, len(line)+1+len(rest))
			pushed = append(pushed, line...)
			pushed = append(pushed, '\n')
			pushed = append(pushed, rest...)
			s.rawBuffer = pushed
			break
		}
	}

	if s.maxPending > 0 && len(s.rawBuffer) > s.maxPending {
		pending := len(s.rawBuffer)
		s.rawBuffer = nil
		return len(p), &StreamError{
			Kind:    KindMalformed,
			Message: fmt.Sprintf("%d bytes pending without a parsable line", pending),
		}
	}

	return len(p), nil
}

// Close flushes whatever is left in the buffer once the body is exhausted
// and marks the state terminated. Lines that still do not parse are
// dropped.
func (s *State) Close() error {
	if s.terminated {
		return nil
	}

	remaining := s.rawBuffer
	s.rawBuffer = nil

	for raw := range strings.SplitSeq(string(remaining), "\n") {
		line := strings.TrimSuffix(raw, "\r")
		if s.processLine(line, true) == lineDone {
			break
		}
	}

	s.terminated = true
	return nil
}

// Answer returns the text accumulated so far.
func (s *State) Answer() string {
	return s.answer.String()
}

// Terminated reports whether [DONE] or the end of the body was seen.
func (s *State) Terminated() bool {
	return s.terminated
}

// Pending returns the number of buffered bytes not yet committed.
func (s *State) Pending() int {
	return len(s.rawBuffer)
}

func (s *State) processLine(line string, flushing bool) lineResult {
	if line == "" || strings.HasPrefix(line, ":") {
		return lineSkipped
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return lineSkipped
	}

	payload := strings.TrimSpace(line[len(dataPrefix):])
	switch payload {
	case "":
		return lineSkipped
	case doneSentinel:
		return lineDone
	}

	content, ok := extractContent([]byte(payload))
	if !ok {
		if flushing {
			return lineSkipped
		}
		return lineIncomplete
	}
	if content == "" {
		return lineSkipped
	}

	s.answer.WriteString(content)
	if s.emit != nil {
		s.emit(content, s.answer.String())
	}
	return lineAppended
}
