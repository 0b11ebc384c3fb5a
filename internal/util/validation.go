package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidPhone is returned when a raw line does not sanitize into a usable
	// phone number.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrInvalidTemplate indicates a template spec is not of the form name:lang.
	ErrInvalidTemplate = errors.New("invalid template spec")
)

// MinPhoneDigits is the shortest digit string accepted as a recipient.
const MinPhoneDigits = 8

var (
	nonDigitPattern   = regexp.MustCompile(`\D`)
	templateIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// SanitizePhone strips every non-digit character from raw. A leading '+' is
// removed like any other punctuation.
func SanitizePhone(raw string) string {
	return nonDigitPattern.ReplaceAllString(raw, "")
}

// NormalizePhone sanitizes raw and validates the resulting digit string.
// Sanitizing an already normalized value returns it unchanged.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidPhone)
	}

	digits := SanitizePhone(trimmed)
	if digits == "" {
		return "", fmt.Errorf("%w: %q contains no digits", ErrInvalidPhone, trimmed)
	}
	if len(digits) < MinPhoneDigits {
		return "", fmt.Errorf("%w: %q has %d digits, need at least %d", ErrInvalidPhone, trimmed, len(digits), MinPhoneDigits)
	}

	return digits, nil
}

// TemplateSpec names a pre-approved provider template and its language tag.
type TemplateSpec struct {
	Name     string
	Language string
}

// String renders the spec back into its name:lang form.
func (t TemplateSpec) String() string {
	return t.Name + ":" + t.Language
}

// ParseTemplateSpec parses exactly one name:languageTag pair. Both halves must
// be non-empty and neither may contain another ':'.
func ParseTemplateSpec(value string) (TemplateSpec, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return TemplateSpec{}, fmt.Errorf("%w: value is empty", ErrInvalidTemplate)
	}

	parts := strings.Split(trimmed, ":")
	if len(parts) != 2 {
		return TemplateSpec{}, fmt.Errorf("%w: %q must be name:lang (e.g. hello_world:en_US)", ErrInvalidTemplate, trimmed)
	}

	spec := TemplateSpec{
		Name:     strings.TrimSpace(parts[0]),
		Language: strings.TrimSpace(parts[1]),
	}
	if spec.Name == "" || spec.Language == "" {
		return TemplateSpec{}, fmt.Errorf("%w: %q has an empty name or language", ErrInvalidTemplate, trimmed)
	}
	if !templateIDPattern.MatchString(spec.Name) || !templateIDPattern.MatchString(spec.Language) {
		return TemplateSpec{}, fmt.Errorf("%w: %q contains unsupported characters", ErrInvalidTemplate, trimmed)
	}

	return spec, nil
}

// EnsureMaxBytes reports whether size fits under max. A non-positive max
// disables the check.
func EnsureMaxBytes(field string, size int64, max int64) error {
	if max <= 0 {
		return nil
	}
	if size > max {
		return fmt.Errorf("%s is %d bytes, exceeds maximum of %d bytes", field, size, max)
	}
	return nil
}
