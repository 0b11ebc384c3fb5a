package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/example/wa-broadcast/internal/config"
)

type fixture struct {
	dir string
	pdf string
	csv string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir: dir,
		pdf: filepath.Join(dir, "Offer.pdf"),
		csv: filepath.Join(dir, "numbers.csv"),
	}
	if err := os.WriteFile(f.pdf, []byte("%PDF-1.4\n"), 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if err := os.WriteFile(f.csv, []byte("+27821234567\n"), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return f
}

func (f fixture) required() map[string]string {
	return map[string]string{
		config.KeyPhoneNumberID: "1234567890",
		config.KeyAccessToken:   "EAAGm0PX4ZCpsBAabcdefghijkl",
		config.KeyCSVPath:       f.csv,
		config.KeyPDFPath:       f.pdf,
		config.KeyCaption:       "Monthly offer",
	}
}

func (f fixture) writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestResolveDefaults(t *testing.T) {
	f := newFixture(t)

	cfg, err := config.Resolve(config.MapSource("test", f.required()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider.GraphVersion != "v20.0" {
		t.Fatalf("expected default graph version v20.0, got %s", cfg.Provider.GraphVersion)
	}
	if cfg.Provider.BaseURL != "https://graph.facebook.com" {
		t.Fatalf("unexpected base url %s", cfg.Provider.BaseURL)
	}
	if cfg.Provider.Backend != "cloud" {
		t.Fatalf("expected cloud backend by default, got %s", cfg.Provider.Backend)
	}
	if cfg.Provider.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", cfg.Provider.Timeout)
	}
	if cfg.Broadcast.Filename != "Offer.pdf" {
		t.Fatalf("expected filename to default to pdf base name, got %s", cfg.Broadcast.Filename)
	}
	if cfg.Broadcast.Rate != 500*time.Millisecond {
		t.Fatalf("expected default rate 0.5s, got %s", cfg.Broadcast.Rate)
	}
	if cfg.Broadcast.FailedCSVPath != "failed.csv" {
		t.Fatalf("expected default failed csv path, got %s", cfg.Broadcast.FailedCSVPath)
	}
	if cfg.Broadcast.Template != nil {
		t.Fatalf("expected no template, got %+v", cfg.Broadcast.Template)
	}
	if cfg.Broadcast.DryRun {
		t.Fatalf("expected dry run to default to false")
	}
	if cfg.Log.Level != "INFO" {
		t.Fatalf("expected INFO log level, got %s", cfg.Log.Level)
	}
	if cfg.Status.Enabled() {
		t.Fatalf("expected status stream disabled")
	}
}

func TestResolvePrecedence(t *testing.T) {
	f := newFixture(t)
	envPath := f.writeEnvFile(t, strings.Join([]string{
		"# broadcast settings",
		"",
		"CAPTION=\"From file\"",
		"RATE=2",
		"FILENAME='file-name.pdf'",
		"TEMPLATE=from_file:en_US",
	}, "\n"))

	environ := []string{
		"WA_PHONE_NUMBER_ID=1234567890",
		"WA_ACCESS_TOKEN=EAAGm0PX4ZCpsBAabcdefghijkl",
		"CSV_PATH=" + f.csv,
		"PDF_PATH=" + f.pdf,
		"CAPTION=From env",
		"RATE=5",
		"WA_GRAPH_VERSION=v19.0",
		"UNRELATED=ignored",
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rate", "", "")
	flags.String("caption", "", "")
	flags.String("template", "", "")
	if err := flags.Parse([]string{"--rate=0", "--template=from_cli:pt_BR"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	bindings := map[string]string{"rate": config.KeyRate, "caption": config.KeyCaption, "template": config.KeyTemplate}

	cfg, err := config.Resolve(
		config.EnvSource(environ),
		config.FileSource(envPath, true),
		config.FlagSource(flags, bindings),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Broadcast.Rate != 0 {
		t.Fatalf("expected CLI rate to win, got %s", cfg.Broadcast.Rate)
	}
	if cfg.Broadcast.Template == nil || cfg.Broadcast.Template.Name != "from_cli" || cfg.Broadcast.Template.Language != "pt_BR" {
		t.Fatalf("expected CLI template to win, got %+v", cfg.Broadcast.Template)
	}
	if cfg.Broadcast.Caption != "From file" {
		t.Fatalf("expected file caption to override env (unset flag), got %q", cfg.Broadcast.Caption)
	}
	if cfg.Broadcast.Filename != "file-name.pdf" {
		t.Fatalf("expected quoted file value to be unquoted, got %q", cfg.Broadcast.Filename)
	}
	if cfg.Provider.GraphVersion != "v19.0" {
		t.Fatalf("expected env-only value to survive, got %s", cfg.Provider.GraphVersion)
	}
}

func TestResolveMissingRequired(t *testing.T) {
	f := newFixture(t)
	required := f.required()

	for key := range required {
		key := key
		t.Run(key, func(t *testing.T) {
			vals := f.required()
			vals[key] = "   "

			_, err := config.Resolve(config.MapSource("test", vals))
			if err == nil {
				t.Fatalf("expected error when %s is blank", key)
			}
			if !errors.Is(err, config.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
			var fieldErr *config.FieldError
			if !errors.As(err, &fieldErr) || fieldErr.Field != key {
				t.Fatalf("expected field error naming %s, got %v", key, err)
			}
		})
	}
}

func TestResolveInvalidValues(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		key   string
		value string
	}{
		{config.KeyRate, "fast"},
		{config.KeyRate, "-1"},
		{config.KeyRate, "NaN"},
		{config.KeyRate, "1e10"},
		{config.KeyTemplate, "hello_world"},
		{config.KeyTemplate, "hello_world:"},
		{config.KeyLogLevel, "TRACE"},
		{config.KeyHTTPTimeout, "0"},
		{config.KeyProvider, "twilio"},
		{config.KeyPDFPath, filepath.Join(f.dir, "missing.pdf")},
		{config.KeyCSVPath, f.dir},
		{config.KeyStatusBrokers, "localhost:9092"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			vals := f.required()
			vals[tc.key] = tc.value

			_, err := config.Resolve(config.MapSource("test", vals))
			if err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
			if !errors.Is(err, config.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestResolveDryRunValues(t *testing.T) {
	f := newFixture(t)
	cases := map[string]bool{"true": true, "TRUE": true, "1": true, "yes": true, "false": false, "no": false, "": false}

	for raw, want := range cases {
		vals := f.required()
		vals[config.KeyDryRun] = raw
		cfg, err := config.Resolve(config.MapSource("test", vals))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
		if cfg.Broadcast.DryRun != want {
			t.Fatalf("DRY_RUN=%q: got %v, want %v", raw, cfg.Broadcast.DryRun, want)
		}
	}
}

func TestResolveStatusStream(t *testing.T) {
	f := newFixture(t)
	vals := f.required()
	vals[config.KeyStatusBrokers] = "broker-a:9092, broker-b:9093"
	vals[config.KeyStatusTopic] = "wa.broadcast.status"

	cfg, err := config.Resolve(config.MapSource("test", vals))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Status.Enabled() {
		t.Fatalf("expected status stream enabled")
	}
	if len(cfg.Status.Brokers) != 2 || cfg.Status.Brokers[1] != "broker-b:9093" {
		t.Fatalf("unexpected brokers %v", cfg.Status.Brokers)
	}
}

func TestFileSourceMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), ".env")

	vals, err := config.FileSource(missing, false).Values()
	if err != nil {
		t.Fatalf("expected optional missing file to be ignored, got %v", err)
	}
	if len(vals) != 0 {
		t.Fatalf("expected no values, got %v", vals)
	}

	if _, err := config.FileSource(missing, true).Values(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error for required missing file, got %v", err)
	}

	_, err = config.Resolve(config.FileSource(missing, true))
	if !errors.Is(err, config.ErrConfig) {
		t.Fatalf("expected ErrConfig from Resolve, got %v", err)
	}
	var fieldErr *config.FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "settings file "+missing {
		t.Fatalf("expected error naming the settings file, got %v", err)
	}
}

func TestFileSourceKeepsDollarSigns(t *testing.T) {
	f := newFixture(t)
	t.Setenv("HOME_CURRENCY", "ZAR")
	path := f.writeEnvFile(t, strings.Join([]string{
		"CAPTION=Pay $100 by Friday",
		`FILENAME="Price: $5 off.pdf"`,
		"TEMPLATE='promo_$HOME_CURRENCY:en'",
	}, "\n"))

	vals, err := config.FileSource(path, true).Values()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{
		config.KeyCaption:  "Pay $100 by Friday",
		config.KeyFilename: "Price: $5 off.pdf",
		config.KeyTemplate: "promo_$HOME_CURRENCY:en",
	}
	for key, value := range want {
		if vals[key] != value {
			t.Fatalf("%s = %q, want %q", key, vals[key], value)
		}
	}
}

func TestTextSourceSkipsMalformedLines(t *testing.T) {
	text := strings.Join([]string{
		"just some words",
		"CAPTION=\"first line",
		"second line\"",
		"bad-key=1",
		"RATE=1.5",
		"=orphan",
	}, "\n")

	vals, err := config.TextSource("inline", text).Values()
	if err != nil {
		t.Fatalf("expected malformed lines to be skipped, got %v", err)
	}
	if vals[config.KeyRate] != "1.5" {
		t.Fatalf("expected RATE=1.5, got %v", vals)
	}
	if vals[config.KeyCaption] != "first line\nsecond line" {
		t.Fatalf("expected multi-line caption to survive, got %q", vals[config.KeyCaption])
	}
}

func TestTextSource(t *testing.T) {
	vals, err := config.TextSource("inline", "# comment\nRATE=0.75\n\nNOT_A_KEY=1\nCAPTION=\"Price: $5 off\"\n").Values()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vals[config.KeyRate] != "0.75" {
		t.Fatalf("expected RATE=0.75, got %v", vals)
	}
	if vals[config.KeyCaption] != "Price: $5 off" {
		t.Fatalf("expected dollar sign kept in quoted value, got %q", vals[config.KeyCaption])
	}
	if _, ok := vals["NOT_A_KEY"]; ok {
		t.Fatalf("expected unknown keys to be dropped, got %v", vals)
	}
}

func TestFlagSourceIgnoresUnsetFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("csv", "default.csv", "")
	flags.Bool("dry-run", false, "")
	if err := flags.Parse([]string{"--dry-run"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	vals, err := config.FlagSource(flags, map[string]string{"csv": config.KeyCSVPath, "dry-run": config.KeyDryRun}).Values()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := vals[config.KeyCSVPath]; ok {
		t.Fatalf("expected unset flag default to be ignored, got %v", vals)
	}
	if vals[config.KeyDryRun] != "true" {
		t.Fatalf("expected dry run flag value true, got %v", vals)
	}
}
