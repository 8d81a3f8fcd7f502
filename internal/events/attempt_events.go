package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAttemptCompleted EventType = "attempt.completed"
	EventConcernFlagged   EventType = "pupil.concern_flagged"
)

const eventSource = "times-tables-service"

// AttemptEvent is the envelope published for every quiz lifecycle event.
type AttemptEvent struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// AttemptCompletedEvent is emitted when an attempt is finalized, whichever
// submission flow finished it.
type AttemptCompletedEvent struct {
	AttemptID  uint    `json:"attempt_id"`
	StudentID  uint    `json:"student_id"`
	ClassLabel string  `json:"class_label"`
	Score      float64 `json:"score"`
	MaxScore   int     `json:"max_score"`
	Percent    float64 `json:"percent"`
}

// ConcernFlaggedEvent is emitted when a pupil enters the concern list during
// an attainment sweep.
type ConcernFlaggedEvent struct {
	StudentID  uint    `json:"student_id"`
	ClassLabel string  `json:"class_label"`
	RecentAvg  float64 `json:"recent_avg"`
	WindowDays int     `json:"window_days"`
}

// NewAttemptEvent wraps a payload in the standard envelope.
func NewAttemptEvent(eventType EventType, data interface{}) *AttemptEvent {
	return &AttemptEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
