package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/scholarship-tracker/finder/pkg/scholarship"
)

// EventType represents the type of pipeline event
type EventType string

const (
	EventSourceDiscovered EventType = "source.discovered"
	EventPageCrawled      EventType = "page.crawled"
	EventRecordExtracted  EventType = "record.extracted"
	EventRecordPersisted  EventType = "record.persisted"
	EventRecordDuplicate  EventType = "record.duplicate"
	EventStageFailed      EventType = "stage.failed"
	EventRunCompleted     EventType = "run.completed"
)

// AllEventTypes returns every event type a run can emit, for subscribers
// that observe the whole pipeline.
func AllEventTypes() []EventType {
	return []EventType{
		EventSourceDiscovered,
		EventPageCrawled,
		EventRecordExtracted,
		EventRecordPersisted,
		EventRecordDuplicate,
		EventStageFailed,
		EventRunCompleted,
	}
}

// Event represents one observable step of a discovery run
type Event struct {
	ID          string                   `json:"id"`
	Type        EventType                `json:"type"`
	Timestamp   time.Time                `json:"timestamp"`
	Category    string                   `json:"category,omitempty"`
	URL         string                   `json:"url,omitempty"`
	Scholarship *scholarship.Scholarship `json:"scholarship,omitempty"`
	Metadata    map[string]interface{}   `json:"metadata,omitempty"`
	Error       string                   `json:"error,omitempty"`
}

// NewEvent creates a new pipeline event
func NewEvent(eventType EventType, category, url string) *Event {
	return &Event{
		ID:        "evt_" + uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Category:  category,
		URL:       url,
		Metadata:  make(map[string]interface{}),
	}
}
