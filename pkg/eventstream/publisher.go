package eventstream

import "context"

// Publisher publishes infobase events to an event stream backend.
type Publisher interface {
	PublishSiteScraped(ctx context.Context, event *SiteScrapedEvent) error
	PublishAssistantAnswered(ctx context.Context, event *AssistantAnsweredEvent) error
	Close() error
}
