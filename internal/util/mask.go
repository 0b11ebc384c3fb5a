package util

import "strings"

const (
	secretPrefixLen = 6
	phoneKeepHead   = 3
	phoneKeepTail   = 3
	elision         = "..."
)

// MaskSecret keeps a short prefix of a credential and elides the rest.
// Values too short to reveal anything are fully replaced.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= secretPrefixLen*2 {
		return "***"
	}
	return secret[:secretPrefixLen] + elision
}

// MaskPhone keeps the first and last few digits of a phone number visible and
// stars out the middle.
func MaskPhone(digits string) string {
	if digits == "" {
		return ""
	}
	if len(digits) <= phoneKeepHead+phoneKeepTail {
		return strings.Repeat("*", len(digits))
	}
	middle := len(digits) - phoneKeepHead - phoneKeepTail
	return digits[:phoneKeepHead] + strings.Repeat("*", middle) + digits[len(digits)-phoneKeepTail:]
}
