// Package report writes the per-run failure file.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/wa-broadcast/internal/logger"
	"github.com/example/wa-broadcast/internal/models"
)

// TimestampLayout is the ISO-8601 form used in the timestamp column.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Header is the first row of every failure file.
var Header = []string{"phone_number", "error_message", "timestamp"}

// WriteFailures replaces the file at path with one row per record. An empty
// record list still produces a header-only file so a stale report from an
// earlier run is never mistaken for this one.
func WriteFailures(path string, records []models.FailureRecord, log zerolog.Logger) error {
	if reflect.ValueOf(log).IsZero() {
		log = zerolog.Nop()
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		_ = f.Close()
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.PhoneNumber, rec.ErrorMessage, rec.Timestamp.UTC().Format(TimestampLayout)}
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("report: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("report: flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close %q: %w", path, err)
	}

	if len(records) == 0 {
		log.Info().Str("path", path).Msg("no failures recorded")
		return nil
	}
	for _, rec := range records {
		log.Debug().
			Str("to", logger.Phone(log, rec.PhoneNumber)).
			Str("error", rec.ErrorMessage).
			Msg("failure recorded")
	}
	log.Warn().
		Str("path", path).
		Int("failures", len(records)).
		Msg("failure report written")
	return nil
}
