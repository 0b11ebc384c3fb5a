package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/example/wa-broadcast/internal/models"
)

// ErrTransient and ErrPermanent classify provider failures. A transient
// failure may succeed on a later run; a permanent one will not.
var (
	ErrTransient = errors.New("transient error")
	ErrPermanent = errors.New("permanent error")
)

// WrapTransient annotates an error so callers can detect transient failures.
// The original error stays in the chain.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// WrapPermanent annotates an error as permanent.
func WrapPermanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// WrapStatus classifies err by the HTTP status the provider answered with:
// 429 and 5xx are transient, every other non-2xx is permanent.
func WrapStatus(status int, err error) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return WrapTransient(err)
	}
	return WrapPermanent(err)
}

// Kind names the failure class of err for logs and status events.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return models.FailureTypeCanceled
	case errors.Is(err, ErrTransient):
		return models.FailureTypeTransient
	case errors.Is(err, ErrPermanent):
		return models.FailureTypePermanent
	default:
		return models.FailureTypeUnknown
	}
}
