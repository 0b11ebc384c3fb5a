package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/example/wa-broadcast/internal/models"
)

func TestWrapTransient(t *testing.T) {
	base := errors.New("temporary failure")
	wrapped := WrapTransient(base)

	if !errors.Is(wrapped, ErrTransient) {
		t.Fatalf("expected wrapped error to be transient: %v", wrapped)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected original error to stay in the chain")
	}
	if !strings.Contains(wrapped.Error(), base.Error()) {
		t.Fatalf("expected wrapped error message to include original message")
	}
}

func TestWrapPermanent(t *testing.T) {
	base := errors.New("invalid recipient")
	wrapped := WrapPermanent(base)

	if !errors.Is(wrapped, ErrPermanent) {
		t.Fatalf("expected wrapped error to be permanent: %v", wrapped)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected original error to stay in the chain")
	}
}

func TestWrapNil(t *testing.T) {
	if !errors.Is(WrapTransient(nil), ErrTransient) {
		t.Fatalf("expected nil transient wrap to fall back to ErrTransient")
	}
	if !errors.Is(WrapPermanent(nil), ErrPermanent) {
		t.Fatalf("expected nil permanent wrap to fall back to ErrPermanent")
	}
}

func TestWrapStatus(t *testing.T) {
	cases := map[int]string{
		http.StatusBadRequest:          "permanent",
		http.StatusUnauthorized:        "permanent",
		http.StatusNotFound:            "permanent",
		http.StatusTooManyRequests:     "transient",
		http.StatusInternalServerError: "transient",
		http.StatusBadGateway:          "transient",
	}
	for status, want := range cases {
		if got := Kind(WrapStatus(status, errors.New("boom"))); got != want {
			t.Fatalf("status %d: got %s, want %s", status, got, want)
		}
	}
}

func TestKind(t *testing.T) {
	if Kind(nil) != "" {
		t.Fatalf("expected empty kind for nil error")
	}
	if Kind(fmt.Errorf("send: %w", context.Canceled)) != models.FailureTypeCanceled {
		t.Fatalf("expected canceled kind")
	}
	if Kind(context.DeadlineExceeded) != models.FailureTypeUnknown {
		t.Fatalf("expected a bare deadline to stay unclassified")
	}
	if Kind(WrapTransient(context.DeadlineExceeded)) != models.FailureTypeTransient {
		t.Fatalf("expected wrapped timeout to be transient")
	}
	if Kind(errors.New("plain")) != models.FailureTypeUnknown {
		t.Fatalf("expected unknown kind for unclassified error")
	}
}

func TestTruncateRaw(t *testing.T) {
	if got := TruncateRaw("héllo world", 5); got != "héllo" {
		t.Fatalf("expected rune-aware truncation, got %q", got)
	}
	if got := TruncateRaw("short", 100); got != "short" {
		t.Fatalf("expected untouched string, got %q", got)
	}
	if got := TruncateRaw("anything", 0); got != "" {
		t.Fatalf("expected empty string for zero limit, got %q", got)
	}
}
