package testutils

import (
	"context"
	"sync"

	"github.com/nrashid7/infobase/pkg/eventstream"
)

// RecordingPublisher is an eventstream.Publisher that keeps every event.
type RecordingPublisher struct {
	mu      sync.Mutex
	scraped []eventstream.SiteScrapedEvent
	answers []eventstream.AssistantAnsweredEvent

	// Err is returned from every publish call when set.
	Err error
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (r *RecordingPublisher) PublishSiteScraped(_ context.Context, e *eventstream.SiteScrapedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scraped = append(r.scraped, *e)
	return r.Err
}

func (r *RecordingPublisher) PublishAssistantAnswered(_ context.Context, e *eventstream.AssistantAnsweredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, *e)
	return r.Err
}

func (r *RecordingPublisher) Close() error {
	return nil
}

// Scraped returns a copy of the site scraped events so far.
func (r *RecordingPublisher) Scraped() []eventstream.SiteScrapedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]eventstream.SiteScrapedEvent(nil), r.scraped...)
}

// Answered returns a copy of the answered events so far.
func (r *RecordingPublisher) Answered() []eventstream.AssistantAnsweredEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]eventstream.AssistantAnsweredEvent(nil), r.answers...)
}
