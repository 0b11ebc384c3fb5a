// Package recipients reads the broadcast target list: a delimited file whose
// first column holds a raw phone number with arbitrary punctuation.
package recipients

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/wa-broadcast/internal/util"
)

// ErrNoRecipients is returned by callers that require at least one valid
// recipient and got none.
var ErrNoRecipients = errors.New("no valid recipients")

// Result is the ordered list of sanitized recipients plus the number of lines
// that were rejected. Duplicates are kept.
type Result struct {
	Recipients []string
	Rejected   int
}

// Load reads and validates the recipient file at path.
func Load(path string, logger zerolog.Logger) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recipients: open %q: %w", path, err)
	}
	defer f.Close()

	res, err := Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("recipients: read %q: %w", path, err)
	}
	return res, nil
}

// Parse validates the first field of every row of r in order. Other columns
// are ignored, so a failure report can be fed back in as-is. Blank rows are
// skipped silently; rows whose first field does not sanitize into a valid
// number are logged and counted.
func Parse(r io.Reader, logger zerolog.Logger) (*Result, error) {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	res := &Result{}
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			res.Rejected++
			logger.Warn().
				Int("line", parseErr.StartLine).
				Err(err).
				Msg("skipping unreadable recipient row")
			continue
		}
		if err != nil {
			return nil, err
		}

		line, _ := reader.FieldPos(0)
		raw := record[0]
		if first {
			raw = strings.TrimPrefix(raw, "\uFEFF")
			first = false
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		phone, err := util.NormalizePhone(raw)
		if err != nil {
			res.Rejected++
			logger.Warn().
				Int("line", line).
				Str("raw", raw).
				Err(err).
				Msg("skipping invalid recipient")
			continue
		}
		res.Recipients = append(res.Recipients, phone)
	}

	logger.Info().
		Int("valid", len(res.Recipients)).
		Int("rejected", res.Rejected).
		Msg("recipients loaded")
	return res, nil
}
