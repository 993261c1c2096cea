package sse

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func response(status int, body io.ReadCloser) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       body,
	}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// recorder collects emissions from the read loop goroutine.
type recorder struct {
	mu     sync.Mutex
	deltas []string
}

func (r *recorder) emit(delta, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas = append(r.deltas, delta)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deltas)
}

var _ = Describe("Stream", func() {
	var (
		ctx context.Context
		rec *recorder
	)

	BeforeEach(func() {
		ctx = context.Background()
		rec = &recorder{}
	})

	Describe("Open", func() {
		It("reads the Hello world stream from a piped body", func() {
			pr, pw := io.Pipe()
			s, err := Open(ctx, response(http.StatusOK, pr), rec.emit)
			Expect(err).NotTo(HaveOccurred())

			go func() {
				defer GinkgoRecover()
				_, err := pw.Write([]byte(`data: {"choices":[{"delta":{"content":"He`))
				Expect(err).NotTo(HaveOccurred())
				_, err = pw.Write([]byte("llo\"}}]}\n\ndata: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\ndata: [DONE]\n"))
				Expect(err).NotTo(HaveOccurred())
			}()

			answer, err := s.Wait()
			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal("Hello world"))
			Expect(s.Terminated()).To(BeTrue())
			Expect(rec.deltas).To(Equal([]string{"Hello", " world"}))
		})

		It("terminates at end of body without [DONE]", func() {
			body := io.NopCloser(strings.NewReader(deltaLine("no sentinel")))
			s, err := Open(ctx, response(http.StatusOK, body), nil)
			Expect(err).NotTo(HaveOccurred())

			answer, err := s.Wait()
			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal("no sentinel"))
			Expect(s.Terminated()).To(BeTrue())
		})

		It("fails with no body", func() {
			_, err := Open(ctx, response(http.StatusOK, http.NoBody), nil)
			Expect(errors.Is(err, ErrNoBody)).To(BeTrue())

			_, err = Open(ctx, response(http.StatusOK, nil), nil)
			Expect(KindOf(err)).To(Equal(KindNoBody))

			_, err = Open(ctx, nil, nil)
			Expect(KindOf(err)).To(Equal(KindNoBody))
		})
	})

	Describe("status classification", func() {
		It("distinguishes 429, 402 and 500 by kind", func() {
			_, rateErr := Open(ctx, jsonResponse(http.StatusTooManyRequests, `{"error":"Rate limits exceeded"}`), rec.emit)
			_, payErr := Open(ctx, jsonResponse(http.StatusPaymentRequired, `{"error":"Payment required"}`), rec.emit)
			_, failErr := Open(ctx, jsonResponse(http.StatusInternalServerError, `{"error":"AI gateway error"}`), rec.emit)

			Expect(KindOf(rateErr)).To(Equal(KindRateLimited))
			Expect(KindOf(payErr)).To(Equal(KindPaymentRequired))
			Expect(KindOf(failErr)).To(Equal(KindUpstreamFailure))

			Expect(KindOf(rateErr)).NotTo(Equal(KindOf(payErr)))
			Expect(KindOf(rateErr)).NotTo(Equal(KindOf(failErr)))
			Expect(KindOf(payErr)).NotTo(Equal(KindOf(failErr)))

			Expect(errors.Is(rateErr, ErrRateLimited)).To(BeTrue())
			Expect(errors.Is(rateErr, ErrPaymentRequired)).To(BeFalse())
			Expect(rec.count()).To(BeZero())
		})

		It("keeps the upstream message and status", func() {
			_, err := Open(ctx, jsonResponse(http.StatusBadRequest, `{"error":"Question is required"}`), nil)

			var se *StreamError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Kind).To(Equal(KindInvalidInput))
			Expect(se.Status).To(Equal(http.StatusBadRequest))
			Expect(se.Message).To(Equal("Question is required"))
		})

		It("falls back to a default message for unreadable bodies", func() {
			_, err := Open(ctx, jsonResponse(http.StatusBadGateway, `<html>bad gateway</html>`), nil)

			var se *StreamError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Kind).To(Equal(KindUpstreamFailure))
			Expect(se.Message).To(Equal(DefaultMessage(KindUpstreamFailure)))
		})

		It("reads nested provider error messages", func() {
			_, err := Open(ctx, jsonResponse(http.StatusTooManyRequests, `{"error":{"message":"slow down","code":429}}`), nil)

			var se *StreamError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Message).To(Equal("slow down"))
		})
	})

	Describe("Cancel", func() {
		It("aborts a blocked read", func() {
			pr, _ := io.Pipe()
			s, err := Open(ctx, response(http.StatusOK, pr), rec.emit)
			Expect(err).NotTo(HaveOccurred())

			s.Cancel()
			Eventually(s.Done()).Should(BeClosed())

			_, err = s.Wait()
			Expect(err).To(MatchError(ErrCanceled))
			Expect(s.Terminated()).To(BeFalse())
		})

		It("is idempotent", func() {
			pr, _ := io.Pipe()
			s, err := Open(ctx, response(http.StatusOK, pr), rec.emit)
			Expect(err).NotTo(HaveOccurred())

			Expect(func() {
				s.Cancel()
				s.Cancel()
				s.Cancel()
			}).NotTo(Panic())
			Eventually(s.Done()).Should(BeClosed())
		})

		It("is a no-op after natural termination", func() {
			body := io.NopCloser(strings.NewReader(deltaLine("done") + "data: [DONE]\n"))
			s, err := Open(ctx, response(http.StatusOK, body), rec.emit)
			Expect(err).NotTo(HaveOccurred())

			answer, err := s.Wait()
			Expect(err).NotTo(HaveOccurred())

			Expect(func() {
				s.Cancel()
				s.Cancel()
			}).NotTo(Panic())
			Expect(s.Answer()).To(Equal(answer))
			Expect(rec.count()).To(Equal(1))
		})

		It("keeps the partial answer and stops emitting", func() {
			pr, pw := io.Pipe()
			s, err := Open(ctx, response(http.StatusOK, pr), rec.emit)
			Expect(err).NotTo(HaveOccurred())

			_, err = pw.Write([]byte(deltaLine("partial")))
			Expect(err).NotTo(HaveOccurred())
			Eventually(rec.count).Should(Equal(1))

			s.Cancel()
			Eventually(s.Done()).Should(BeClosed())

			_, err = pw.Write([]byte(deltaLine("late")))
			Expect(err).To(HaveOccurred())
			Expect(s.Answer()).To(Equal("partial"))
			Expect(rec.count()).To(Equal(1))
		})

		It("waits for an update in flight and delivers none after", func() {
			entered := make(chan struct{})
			release := make(chan struct{})
			var calls atomic.Int32
			emit := func(string, string) {
				if calls.Add(1) == 1 {
					close(entered)
					<-release
				}
			}

			pr, pw := io.Pipe()
			s, err := Open(ctx, response(http.StatusOK, pr), emit)
			Expect(err).NotTo(HaveOccurred())

			go func() { _, _ = pw.Write([]byte(deltaLine("first") + deltaLine("second"))) }()
			Eventually(entered).Should(BeClosed())

			var returned atomic.Bool
			go func() {
				s.Cancel()
				returned.Store(true)
			}()
			Consistently(returned.Load, 50*time.Millisecond).Should(BeFalse())

			close(release)
			Eventually(returned.Load).Should(BeTrue())
			Eventually(s.Done()).Should(BeClosed())
			Expect(calls.Load()).To(Equal(int32(1)))
			Expect(s.Answer()).To(Equal("first"))
		})

		It("follows context cancellation", func() {
			cctx, cancel := context.WithCancel(ctx)
			pr, _ := io.Pipe()
			s, err := Open(cctx, response(http.StatusOK, pr), nil)
			Expect(err).NotTo(HaveOccurred())

			cancel()
			Eventually(s.Done()).Should(BeClosed())
			_, err = s.Wait()
			Expect(err).To(MatchError(ErrCanceled))
		})
	})

	Describe("transport failures", func() {
		It("surfaces a transport failure and retains the partial answer", func() {
			pr, pw := io.Pipe()
			s, err := Open(ctx, response(http.StatusOK, pr), rec.emit)
			Expect(err).NotTo(HaveOccurred())

			go func() {
				_, _ = pw.Write([]byte(deltaLine("so far")))
				_ = pw.CloseWithError(errors.New("connection reset by peer"))
			}()

			answer, err := s.Wait()
			Expect(KindOf(err)).To(Equal(KindTransportFailure))
			Expect(err).To(MatchError(ContainSubstring("connection reset by peer")))
			Expect(answer).To(Equal("so far"))
		})
	})

	Describe("Start", func() {
		It("reads an arbitrary body with the same rules", func() {
			body := io.NopCloser(strings.NewReader(": hi\n" + deltaLine("tee") + "data: [DONE]\n"))
			s := Start(ctx, body, nil)

			answer, err := s.Wait()
			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal("tee"))
		})

		It("fails when the pending bound is exceeded", func() {
			body := io.NopCloser(strings.NewReader("data: {bad\n" + strings.Repeat("y", 256)))
			s := Start(ctx, body, nil, WithMaxPending(32))

			_, err := s.Wait()
			Expect(errors.Is(err, ErrMalformed)).To(BeTrue())
		})
	})
})
