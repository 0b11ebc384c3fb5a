package common

import "unicode/utf8"

// DefaultRawBodyLimit is the number of characters kept from a provider
// response body when it is attached to an error or log line.
const DefaultRawBodyLimit = 1024

// TruncateRaw trims raw to at most limit runes. A zero or negative limit
// yields an empty string.
func TruncateRaw(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}
