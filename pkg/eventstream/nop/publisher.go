package nop

import (
	"context"

	"github.com/nrashid7/infobase/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishSiteScraped validates input and otherwise does nothing.
func (p *Publisher) PublishSiteScraped(_ context.Context, event *eventstream.SiteScrapedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return nil
}

// PublishAssistantAnswered validates input and otherwise does nothing.
func (p *Publisher) PublishAssistantAnswered(_ context.Context, event *eventstream.AssistantAnsweredEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
