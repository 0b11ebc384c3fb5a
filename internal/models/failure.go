package models

import "time"

// Failure types attached to failed outcomes.
const (
	FailureTypePermanent = "permanent"
	FailureTypeTransient = "transient"
	FailureTypeCanceled  = "canceled"
	FailureTypeUnknown   = "unknown"
)

// FailureRecord is one row of the failure report.
type FailureRecord struct {
	PhoneNumber  string
	ErrorMessage string
	Timestamp    time.Time
}

// Outcome is the result of processing a single recipient.
type Outcome struct {
	Recipient   string
	MessageID   string
	Err         error
	FailureType string
	// TemplateFailed is set when the template send failed and the document
	// was never attempted.
	TemplateFailed bool
}

// Succeeded reports whether the document was delivered to the provider.
func (o Outcome) Succeeded() bool { return o.Err == nil }
