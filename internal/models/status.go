package models

import "time"

// Status event constants.
const (
	StatusEventSent            = "sent"
	StatusEventFailed          = "failed"
	StatusEventSkippedTemplate = "skipped_template_failed"
	StatusEventSummary         = "summary"
)

// StatusEvent is published for every recipient outcome and once for the run
// summary. Recipient is always masked.
type StatusEvent struct {
	RunID       string    `json:"run_id"`
	EventType   string    `json:"event_type"`
	Recipient   string    `json:"recipient,omitempty"`
	MessageID   string    `json:"message_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	FailureType string    `json:"failure_type,omitempty"`
	Attempted   int       `json:"attempted,omitempty"`
	Succeeded   int       `json:"succeeded,omitempty"`
	Failed      int       `json:"failed,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
