// Package eventstream defines the events infobase publishes when sites are
// scraped and questions are answered, and the Publisher they go through.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSiteScraped is emitted after a scrape attempt is stored,
	// whether it succeeded or failed.
	EventTypeSiteScraped = "infobase.site.scraped"

	// EventTypeAssistantAnswered is emitted after an answer stream ends.
	EventTypeAssistantAnswered = "infobase.assistant.answered"
)

// Envelope carries the fields shared by every event.
type Envelope struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
}

// NewEnvelope stamps a new envelope of the given type.
func NewEnvelope(eventType string) Envelope {
	return Envelope{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
	}
}

// SiteScrapedEvent reports the outcome of one scrape.
type SiteScrapedEvent struct {
	Envelope

	SiteID       string `json:"site_id"`
	URL          string `json:"url"`
	Name         string `json:"name"`
	CategoryID   string `json:"category_id,omitempty"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	ServiceCount int    `json:"service_count"`
}

// AssistantAnsweredEvent reports one finished answer stream.
type AssistantAnsweredEvent struct {
	Envelope

	Language     string `json:"language"`
	Question     string `json:"question"`
	AnswerLength int    `json:"answer_length"`
	Model        string `json:"model"`
	HTTPStatus   int    `json:"http_status"`
	Terminated   bool   `json:"terminated"`
	ErrorKind    string `json:"error_kind,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
}
