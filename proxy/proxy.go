// Package proxy provides the assistant endpoint: it validates questions,
// forwards them to the AI gateway and streams the answer back as SSE.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/nrashid7/infobase/pkg/assistant"
	"github.com/nrashid7/infobase/pkg/eventstream"
	"github.com/nrashid7/infobase/pkg/llm"
	"github.com/nrashid7/infobase/pkg/sse"
	"github.com/nrashid7/infobase/proxy/header"
	"github.com/nrashid7/infobase/proxy/worker"
)

// legacyAskPath keeps the hosted function route working for older clients.
const legacyAskPath = "/functions/v1/ai-assistant"

// Proxy is the assistant endpoint. It is transparent for the answer body:
// upstream SSE bytes are forwarded verbatim while the stream is read on the
// side to report what was answered.
type Proxy struct {
	config        Config
	client        *llm.Client
	workerPool    *worker.Pool
	logger        *slog.Logger
	server        *fiber.App
	headerHandler *header.Handler

	// streams tracks answer goroutines so Close can drain them before the
	// worker pool stops accepting events.
	streams sync.WaitGroup
}

// New creates a new Proxy. Answered events are published through publisher
// by a background worker pool.
func New(config Config, publisher eventstream.Publisher, logger *slog.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		config.UpstreamURL = llm.DefaultGatewayURL
	}
	if config.Model == "" {
		config.Model = llm.DefaultModel
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	// Add compression middleware to handle responses
	app.Use(compress.New())

	wp, err := worker.NewPool(&worker.Config{
		Publisher:  publisher,
		NumWorkers: config.Workers,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	p := &Proxy{
		config:        config,
		client:        llm.NewClient(config.clientConfig()),
		workerPool:    wp,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
	}

	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	handlers := []fiber.Handler{}
	if config.RateLimit > 0 {
		handlers = append(handlers, p.rateLimiter())
	}
	handlers = append(handlers, p.handleAssistant)

	app.Post(assistant.AskPath, handlers...)
	app.Post(legacyAskPath, handlers...)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting assistant proxy",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
		"model", p.config.Model,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting assistant proxy",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy and waits for the worker pool to drain
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.streams.Wait()
	p.workerPool.Close()
	return err
}

func (p *Proxy) rateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        p.config.RateLimit,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(llm.ErrorResponse{
				Error: sse.DefaultMessage(sse.KindRateLimited),
			})
		},
	})
}

// handleAssistant validates the question and streams the gateway's answer.
func (p *Proxy) handleAssistant(c *fiber.Ctx) error {
	startTime := time.Now()

	var req assistant.AskRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "Invalid JSON body"})
	}
	if err := req.Validate(); err != nil {
		return p.sendError(c, err)
	}
	req = req.Normalize()

	chatReq := llm.ChatRequest{
		Model:    p.config.Model,
		Messages: assistant.Messages(req),
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the streaming goroutine
	// keeps reading the upstream body after that.
	httpResp, err := p.client.Stream(context.Background(), chatReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err)
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "AI service is not configured"})
		}
		return p.sendError(c, err)
	}

	if err := sse.ErrorFromResponse(httpResp); err != nil {
		p.logger.Error("upstream returned error",
			"status", httpResp.StatusCode,
			"error", err,
		)
		p.enqueueAnswered(req, "", httpResp.StatusCode, false, err, startTime)
		return p.sendError(c, upstreamError(err))
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter.
	// With io.Pipe, pw.Write blocks until fasthttp's chunked body writer has
	// consumed the data, which flushes to TCP after every chunk and gives
	// direct backpressure from the client to the upstream read.
	pr, pw := io.Pipe()
	p.streams.Add(1)
	go p.streamToPipe(httpResp, pw, req, startTime)

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// streamToPipe forwards the upstream body to pw byte for byte while reading
// the answer out of the same bytes.
func (p *Proxy) streamToPipe(httpResp *http.Response, pw *io.PipeWriter, req assistant.AskRequest, startTime time.Time) {
	defer p.streams.Done()
	defer httpResp.Body.Close()
	defer pw.Close()

	tee := io.TeeReader(httpResp.Body, pw)
	stream := sse.Start(context.Background(), io.NopCloser(tee), nil)
	answer, err := stream.Wait()

	if err != nil {
		p.logger.Warn("answer stream ended early",
			"error", err,
			"answer_length", len(answer),
		)
	}

	// Whatever the reader did not consume still belongs to the client: the
	// tail after [DONE], or the rest of a stream the reader gave up on.
	if sse.KindOf(err) != sse.KindTransportFailure {
		if _, copyErr := io.Copy(pw, httpResp.Body); copyErr != nil {
			p.logger.Debug("error forwarding stream tail", "error", copyErr)
		}
	}
	p.logger.Debug("streaming complete",
		"answer_length", len(answer),
		"duration", time.Since(startTime),
	)

	p.enqueueAnswered(req, answer, httpResp.StatusCode, stream.Terminated(), err, startTime)
}

func (p *Proxy) enqueueAnswered(req assistant.AskRequest, answer string, status int, terminated bool, streamErr error, startTime time.Time) {
	event := &eventstream.AssistantAnsweredEvent{
		Envelope:     eventstream.NewEnvelope(eventstream.EventTypeAssistantAnswered),
		Language:     req.Language,
		Question:     req.Question,
		AnswerLength: len([]rune(answer)),
		Model:        p.config.Model,
		HTTPStatus:   status,
		Terminated:   terminated,
		DurationMs:   time.Since(startTime).Milliseconds(),
	}
	if streamErr != nil {
		event.ErrorKind = sse.KindOf(streamErr).String()
	}

	// Non-blocking enqueue for async publishing
	p.workerPool.Enqueue(worker.Job{Event: event})
}

// upstreamError narrows gateway failures to the statuses the endpoint
// reports: 429 and 402 pass through, anything else becomes a 500.
func upstreamError(err error) error {
	var se *sse.StreamError
	if !errors.As(err, &se) {
		return &sse.StreamError{Kind: sse.KindUpstreamFailure, Err: err}
	}
	switch se.Kind {
	case sse.KindRateLimited, sse.KindPaymentRequired:
		return se
	default:
		return &sse.StreamError{
			Kind:    sse.KindUpstreamFailure,
			Status:  se.Status,
			Message: sse.DefaultMessage(sse.KindUpstreamFailure),
		}
	}
}

// sendError writes err as a {error} body with the status for its kind.
func (p *Proxy) sendError(c *fiber.Ctx, err error) error {
	kind := sse.KindOf(err)
	msg := sse.DefaultMessage(kind)

	var se *sse.StreamError
	if errors.As(err, &se) && se.Message != "" {
		msg = se.Message
	}

	return c.Status(sse.StatusForKind(kind)).JSON(llm.ErrorResponse{Error: msg})
}
