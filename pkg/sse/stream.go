package sse

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
)

const readBufferSize = 32 * 1024

// Stream is a handle on one answer being read from a response body.
type Stream struct {
	body  io.ReadCloser
	state *State
	emit  EmitFunc

	answer     atomic.Pointer[string]
	canceled   atomic.Bool
	terminated atomic.Bool

	// emitMu orders deliveries against Cancel.
	emitMu     sync.Mutex
	cancelOnce sync.Once
	stopCtx    func() bool

	done chan struct{}
	err  error
}

// Open classifies resp and begins reading its body. A non-2xx status fails
// with the matching *StreamError before any byte is read as a stream, and a
// response without a readable body fails with KindNoBody.
//
// The read loop runs on its own goroutine. emit is called on that goroutine
// for every appended fragment. Canceling ctx cancels the stream.
func Open(ctx context.Context, resp *http.Response, emit EmitFunc, opts ...Option) (*Stream, error) {
	if resp == nil {
		return nil, &StreamError{Kind: KindNoBody, Message: "nil response"}
	}
	if err := ErrorFromResponse(resp); err != nil {
		return nil, err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, &StreamError{Kind: KindNoBody, Status: resp.StatusCode, Message: DefaultMessage(KindNoBody)}
	}

	return Start(ctx, resp.Body, emit, opts...), nil
}

// Start reads body as an answer stream without any status handling. The
// proxy uses it on a tee of the upstream body.
func Start(ctx context.Context, body io.ReadCloser, emit EmitFunc, opts ...Option) *Stream {
	s := &Stream{
		body: body,
		emit: emit,
		done: make(chan struct{}),
	}
	empty := ""
	s.answer.Store(&empty)

	o := newOptions(opts)
	s.state = NewState(WithMaxPending(o.maxPending), WithEmit(s.deliver))

	s.stopCtx = context.AfterFunc(ctx, s.Cancel)
	go s.run()
	return s
}

// Cancel stops the stream and closes the body, aborting a blocked read. An
// update already being delivered finishes before Cancel returns, and none is
// delivered afterwards. It is safe to call more than once and after the
// stream has finished. emit must not call Cancel; cancel the context passed
// to Open instead.
func (s *Stream) Cancel() {
	s.cancelOnce.Do(func() {
		s.canceled.Store(true)
		_ = s.body.Close()
	})
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
}

// Done is closed when the read loop exits.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the read loop exits and returns the accumulated answer.
// The answer is returned even when err is non-nil.
func (s *Stream) Wait() (string, error) {
	<-s.done
	return s.Answer(), s.err
}

// Answer returns a snapshot of the text accumulated so far. It is safe to
// call from any goroutine.
func (s *Stream) Answer() string {
	return *s.answer.Load()
}

// Terminated reports whether the stream ended on [DONE] or end of body.
func (s *Stream) Terminated() bool {
	return s.terminated.Load()
}

func (s *Stream) deliver(delta, answer string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.canceled.Load() {
		return
	}
	s.answer.Store(&answer)
	if s.emit != nil {
		s.emit(delta, answer)
	}
}

func (s *Stream) run() {
	defer close(s.done)
	defer s.stopCtx()
	defer s.Cancel()

	buf := make([]byte, readBufferSize)
	for {
		n, readErr := s.body.Read(buf)

		if s.canceled.Load() {
			s.err = ErrCanceled
			return
		}

		if n > 0 {
			if _, err := s.state.Write(buf[:n]); err != nil {
				s.err = err
				return
			}
			if s.state.Terminated() {
				s.terminated.Store(true)
				return
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			_ = s.state.Close()
			s.terminated.Store(true)
			return
		}

		s.err = &StreamError{
			Kind:    KindTransportFailure,
			Message: DefaultMessage(KindTransportFailure),
			Err:     readErr,
		}
		return
	}
}
