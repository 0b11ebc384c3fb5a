package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/example/wa-broadcast/internal/logger"
	"github.com/example/wa-broadcast/internal/util"
)

// Recognised setting keys. The same names are used in the process
// environment and in the settings file.
const (
	KeyPhoneNumberID = "WA_PHONE_NUMBER_ID"
	KeyAccessToken   = "WA_ACCESS_TOKEN"
	KeyGraphVersion  = "WA_GRAPH_VERSION"
	KeyAPIBaseURL    = "WA_API_BASE_URL"
	KeyProvider      = "WA_PROVIDER"
	KeyCSVPath       = "CSV_PATH"
	KeyPDFPath       = "PDF_PATH"
	KeyCaption       = "CAPTION"
	KeyFilename      = "FILENAME"
	KeyRate          = "RATE"
	KeyTemplate      = "TEMPLATE"
	KeyDryRun        = "DRY_RUN"
	KeyLogLevel      = "LOG_LEVEL"
	KeyLogFile       = "LOG_FILE"
	KeyFailedCSVPath = "FAILED_CSV_PATH"
	KeyHTTPTimeout   = "HTTP_TIMEOUT_SECONDS"
	KeyStatusBrokers = "STATUS_KAFKA_BROKERS"
	KeyStatusTopic   = "STATUS_KAFKA_TOPIC"
)

// Defaults applied when a key is absent from every source.
const (
	DefaultGraphVer   = "v20.0"
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultRate       = "0.5"
	DefaultFailedCSV  = "failed.csv"
	DefaultTimeoutSec = 30
)

var knownKeys = map[string]struct{}{
	KeyPhoneNumberID: {}, KeyAccessToken: {}, KeyGraphVersion: {}, KeyAPIBaseURL: {},
	KeyProvider: {}, KeyCSVPath: {}, KeyPDFPath: {}, KeyCaption: {}, KeyFilename: {},
	KeyRate: {}, KeyTemplate: {}, KeyDryRun: {}, KeyLogLevel: {}, KeyLogFile: {},
	KeyFailedCSVPath: {}, KeyHTTPTimeout: {}, KeyStatusBrokers: {}, KeyStatusTopic: {},
}

func isKnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}

// maxRateSeconds is the largest delay a time.Duration can hold.
const maxRateSeconds = float64(math.MaxInt64) / float64(time.Second)

// ErrConfig is the sentinel every resolution failure unwraps to.
var ErrConfig = errors.New("invalid configuration")

// FieldError names the setting that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match any FieldError with errors.Is(err, ErrConfig).
func (e *FieldError) Unwrap() error { return ErrConfig }

// Config is the effective, validated configuration of one run. It is built
// once by Resolve and not modified afterwards.
type Config struct {
	Provider  ProviderConfig
	Broadcast BroadcastConfig
	Log       LogConfig
	Status    StatusConfig
}

// ProviderConfig holds the messaging provider credentials and transport knobs.
type ProviderConfig struct {
	Backend       string
	PhoneNumberID string
	AccessToken   string
	GraphVersion  string
	BaseURL       string
	Timeout       time.Duration
}

// BroadcastConfig describes what gets sent, to whom and how fast.
type BroadcastConfig struct {
	CSVPath       string
	PDFPath       string
	Caption       string
	Filename      string
	Rate          time.Duration
	Template      *util.TemplateSpec
	DryRun        bool
	FailedCSVPath string
}

// LogConfig selects the severity filter and optional file sink.
type LogConfig struct {
	Level string
	File  string
}

// StatusConfig enables the optional Kafka status-event stream.
type StatusConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether both brokers and topic are configured.
func (s StatusConfig) Enabled() bool {
	return len(s.Brokers) > 0 && s.Topic != ""
}

// Resolve folds sources left to right, later values overwriting earlier ones,
// and validates the merged result in a single pass. Validation problems are
// reported together, each as a *FieldError.
func Resolve(sources ...Source) (*Config, error) {
	merged := make(map[string]string)
	for _, src := range sources {
		if src == nil {
			continue
		}
		vals, err := src.Values()
		if err != nil {
			return nil, &FieldError{Field: src.Name(), Reason: err.Error()}
		}
		for k, v := range vals {
			merged[k] = v
		}
	}

	ldr := &loader{values: merged}
	cfg := &Config{}

	cfg.Provider.Backend = strings.ToLower(ldr.getString(KeyProvider, "cloud", false))
	if cfg.Provider.Backend != "cloud" && cfg.Provider.Backend != "mock" {
		ldr.addError(KeyProvider, fmt.Sprintf("unsupported provider backend %q (want cloud or mock)", cfg.Provider.Backend))
	}
	cfg.Provider.PhoneNumberID = ldr.getString(KeyPhoneNumberID, "", true)
	cfg.Provider.AccessToken = ldr.getString(KeyAccessToken, "", true)
	cfg.Provider.GraphVersion = ldr.getString(KeyGraphVersion, DefaultGraphVer, false)
	cfg.Provider.BaseURL = strings.TrimRight(ldr.getString(KeyAPIBaseURL, DefaultBaseURL, false), "/")
	cfg.Provider.Timeout = time.Duration(ldr.getPositiveInt(KeyHTTPTimeout, DefaultTimeoutSec)) * time.Second

	cfg.Broadcast.CSVPath = ldr.getString(KeyCSVPath, "", true)
	cfg.Broadcast.PDFPath = ldr.getString(KeyPDFPath, "", true)
	cfg.Broadcast.Caption = ldr.getString(KeyCaption, "", true)
	cfg.Broadcast.Filename = ldr.getString(KeyFilename, "", false)
	if cfg.Broadcast.Filename == "" && cfg.Broadcast.PDFPath != "" {
		cfg.Broadcast.Filename = filepath.Base(cfg.Broadcast.PDFPath)
	}
	cfg.Broadcast.Rate = ldr.getRate(KeyRate, DefaultRate)
	if raw := ldr.getString(KeyTemplate, "", false); raw != "" {
		spec, err := util.ParseTemplateSpec(raw)
		if err != nil {
			ldr.addError(KeyTemplate, err.Error())
		} else {
			cfg.Broadcast.Template = &spec
		}
	}
	cfg.Broadcast.DryRun = ldr.getBool(KeyDryRun)
	cfg.Broadcast.FailedCSVPath = ldr.getString(KeyFailedCSVPath, DefaultFailedCSV, false)

	cfg.Log.Level = strings.ToUpper(ldr.getString(KeyLogLevel, "INFO", false))
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		ldr.addError(KeyLogLevel, err.Error())
	}
	cfg.Log.File = ldr.getString(KeyLogFile, "", false)

	cfg.Status.Brokers = ldr.getStringSlice(KeyStatusBrokers)
	cfg.Status.Topic = ldr.getString(KeyStatusTopic, "", false)
	if (len(cfg.Status.Brokers) > 0) != (cfg.Status.Topic != "") {
		ldr.addError(KeyStatusTopic, fmt.Sprintf("%s and %s must be set together", KeyStatusBrokers, KeyStatusTopic))
	}

	ldr.checkReadableFile(KeyPDFPath, cfg.Broadcast.PDFPath)
	ldr.checkReadableFile(KeyCSVPath, cfg.Broadcast.CSVPath)

	if err := ldr.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type loader struct {
	values map[string]string
	errs   []error
}

func (l *loader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return errors.Join(l.errs...)
}

func (l *loader) addError(field, reason string) {
	l.errs = append(l.errs, &FieldError{Field: field, Reason: reason})
}

func (l *loader) getString(key, def string, required bool) string {
	val := strings.TrimSpace(l.values[key])
	if val == "" {
		if required {
			l.addError(key, "is required")
		}
		return def
	}
	return val
}

func (l *loader) getBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(l.values[key])) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func (l *loader) getPositiveInt(key string, def int) int {
	raw := strings.TrimSpace(l.values[key])
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		l.addError(key, fmt.Sprintf("must be a positive integer, got %q", raw))
		return def
	}
	return n
}

func (l *loader) getRate(key, def string) time.Duration {
	raw := strings.TrimSpace(l.values[key])
	if raw == "" {
		raw = def
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		l.addError(key, fmt.Sprintf("must be a number of seconds, got %q", raw))
		return 0
	}
	if secs < 0 {
		l.addError(key, fmt.Sprintf("must not be negative, got %q", raw))
		return 0
	}
	if secs >= maxRateSeconds {
		l.addError(key, fmt.Sprintf("must be below %.0f seconds, got %q", maxRateSeconds, raw))
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func (l *loader) getStringSlice(key string) []string {
	raw := strings.TrimSpace(l.values[key])
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l *loader) checkReadableFile(key, path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		l.addError(key, fmt.Sprintf("file %q not found: %v", path, err))
		return
	}
	if info.IsDir() {
		l.addError(key, fmt.Sprintf("%q is a directory", path))
		return
	}
	f, err := os.Open(path)
	if err != nil {
		l.addError(key, fmt.Sprintf("file %q is not readable: %v", path, err))
		return
	}
	_ = f.Close()
}
