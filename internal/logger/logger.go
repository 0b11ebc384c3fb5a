package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/wa-broadcast/internal/util"
)

const simpleTimeFormat = "02-01-2006 15:04:05"

// Options selects the severity filter and sinks of a logger. Console defaults
// to stdout; File, when set, receives the same events as JSON lines.
type Options struct {
	Level   string
	File    string
	Console io.Writer
}

// New constructs a zerolog logger writing human readable lines to the console
// and, optionally, JSON lines to a file. Both sinks share one level filter.
// The returned closer releases the file sink and is never nil.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	writers := []io.Writer{consoleWriter(console)}

	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(opts.File); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("logger: open log file %q: %w", path, err)
		}
		writers = append(writers, zerolog.SyncWriter(f))
		closer = f
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger().Level(lvl)
	return logger, closer, nil
}

// Bootstrap returns a console logger for use before configuration is resolved.
func Bootstrap(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(consoleWriter(w)).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// consoleWriter colours output only when w is a terminal.
func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	noColor := true
	if f, ok := w.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			noColor = false
		}
	}
	return zerolog.ConsoleWriter{Out: w, TimeFormat: simpleTimeFormat, NoColor: noColor}
}

// ParseLevel maps the four supported severities onto zerolog levels. WARN is
// accepted as an alias of WARNING; an empty value means INFO.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "":
		return zerolog.InfoLevel, nil
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "INFO":
		return zerolog.InfoLevel, nil
	case "WARNING", "WARN":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("logger: unknown level %q (want DEBUG, INFO, WARNING or ERROR)", level)
	}
}

// Phone renders a recipient for log output: in full when the logger emits
// DEBUG, partially masked otherwise.
func Phone(l zerolog.Logger, digits string) string {
	if l.GetLevel() <= zerolog.DebugLevel {
		return digits
	}
	return util.MaskPhone(digits)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
