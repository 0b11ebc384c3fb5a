package whatsapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/example/wa-broadcast/internal/adapters/common"
)

// ErrUpload and ErrSend are the two provider failure kinds. Every error
// returned by a Provider matches exactly one of them with errors.Is.
var (
	ErrUpload = errors.New("media upload failed")
	ErrSend   = errors.New("message send failed")
)

// APIError describes a failed provider round trip. StatusCode is zero when no
// HTTP response was received. Err carries the transient/permanent
// classification from the common adapter package.
type APIError struct {
	Op         Op
	StatusCode int
	Code       int
	Message    string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "whatsapp %s failed", e.Op)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.Code > 0 {
		fmt.Fprintf(&b, ": code %d", e.Code)
	}
	switch {
	case e.Message != "":
		b.WriteString(": " + e.Message)
	case e.Body != "":
		b.WriteString(": " + e.Body)
	case e.Err != nil:
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the failure kind and the classified cause.
func (e *APIError) Unwrap() []error {
	kind := ErrSend
	if e.Op == OpUpload {
		kind = ErrUpload
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

func transportError(op Op, err error) *APIError {
	return &APIError{Op: op, Err: common.WrapTransient(err)}
}

// statusError builds the error for a non-2xx response, pulling the Graph
// error message out of body when it has one.
func statusError(op Op, status int, body string) *APIError {
	apiErr := &APIError{
		Op:         op,
		StatusCode: status,
		Body:       common.TruncateRaw(strings.TrimSpace(body), common.DefaultRawBodyLimit),
	}

	var parsed errorResponse
	if err := json.Unmarshal([]byte(body), &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Code = parsed.Error.Code
		apiErr.Message = parsed.Error.Message
	}

	cause := apiErr.Message
	if cause == "" {
		cause = apiErr.Body
	}
	if cause == "" {
		cause = "empty response body"
	}
	apiErr.Err = common.WrapStatus(status, errors.New(cause))
	return apiErr
}
