package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/example/wa-broadcast/internal/broadcast"
	"github.com/example/wa-broadcast/internal/config"
	"github.com/example/wa-broadcast/internal/kafka/producer"
	kafkapublisher "github.com/example/wa-broadcast/internal/kafka/publisher"
	"github.com/example/wa-broadcast/internal/logger"
	"github.com/example/wa-broadcast/internal/providers/factory"
	waprovider "github.com/example/wa-broadcast/internal/providers/whatsapp"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

// flagBindings maps CLI flags onto setting keys.
var flagBindings = map[string]string{
	"csv":        config.KeyCSVPath,
	"pdf":        config.KeyPDFPath,
	"caption":    config.KeyCaption,
	"filename":   config.KeyFilename,
	"rate":       config.KeyRate,
	"template":   config.KeyTemplate,
	"dry-run":    config.KeyDryRun,
	"log-level":  config.KeyLogLevel,
	"log-file":   config.KeyLogFile,
	"failed-csv": config.KeyFailedCSVPath,
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Environ(), os.Stdout, os.Stderr))
}

func run(parent context.Context, args, environ []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := exitOK
	cmd := newRootCommand(environ, stdout, stderr, &code)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailure
	}
	return code
}

func newRootCommand(environ []string, stdout, stderr io.Writer, code *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wa-broadcast",
		Short: "Upload a PDF once and send it to every number in a CSV over the WhatsApp Cloud API",
		Long: `wa-broadcast uploads one PDF to the WhatsApp Cloud API media endpoint and
sends it as a document message to each recipient listed in a CSV file,
optionally preceded by a pre-approved template message.

Settings are read from the process environment, then the settings file
(--env, default ./.env), then CLI flags; later sources win. A value in the
settings file therefore replaces the same variable exported in the shell.
Settings file values keep "$" literally, and lines without KEY=VALUE are
skipped.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			*code = execute(cmd, environ, stdout, stderr)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("env", ".env", "settings file with KEY=VALUE lines")
	flags.String("csv", "", "recipient file, one phone number per line")
	flags.String("pdf", "", "PDF document to upload")
	flags.String("caption", "", "document caption")
	flags.String("filename", "", "filename shown to recipients (default: PDF base name)")
	flags.String("rate", "", "seconds to wait between recipients (default 0.5)")
	flags.String("template", "", "template to send before the document, as name:lang")
	flags.Bool("dry-run", false, "log what would be sent without calling the API")
	flags.String("log-level", "", "DEBUG, INFO, WARNING or ERROR (default INFO)")
	flags.String("log-file", "", "also write log lines to this file")
	flags.String("failed-csv", "", "failure report path (default failed.csv)")
	return cmd
}

func execute(cmd *cobra.Command, environ []string, stdout, stderr io.Writer) int {
	ctx := cmd.Context()
	flags := cmd.Flags()
	boot := logger.Bootstrap(stderr)

	envPath, _ := flags.GetString("env")
	cfg, err := config.Resolve(
		config.EnvSource(environ),
		config.FileSource(envPath, flags.Changed("env")),
		config.FlagSource(flags, flagBindings),
	)
	if err != nil {
		logConfigError(boot, err)
		return exitFailure
	}

	log, closer, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Console: stdout})
	if err != nil {
		boot.Error().Err(err).Msg("logger init failed")
		return exitFailure
	}
	defer closer.Close()

	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Msg("starting broadcast")
	cfg.LogSummary(log)

	var provider waprovider.Provider
	if !cfg.Broadcast.DryRun {
		provider, err = factory.WhatsApp(cfg.Provider, log.With().Str("component", "whatsapp-provider").Logger())
		if err != nil {
			log.Error().Err(err).Msg("failed to initialise whatsapp provider")
			return exitFailure
		}
	}

	var events broadcast.EventSink
	if cfg.Status.Enabled() && !cfg.Broadcast.DryRun {
		kafkaLogger := log.With().Str("component", "kafka").Logger()
		prod, err := producer.New(cfg.Status.Brokers, kafkaLogger)
		if err != nil {
			log.Warn().Err(err).Msg("status stream unavailable, continuing without it")
		} else {
			defer func() {
				if err := prod.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close kafka producer")
				}
			}()
			events = kafkapublisher.NewStatusPublisher(prod, cfg.Status.Topic, log.With().Str("component", "status-publisher").Logger())
		}
	}

	driver, err := broadcast.NewDriver(broadcast.Config{
		CSVPath:       cfg.Broadcast.CSVPath,
		PDFPath:       cfg.Broadcast.PDFPath,
		Caption:       cfg.Broadcast.Caption,
		Filename:      cfg.Broadcast.Filename,
		Template:      cfg.Broadcast.Template,
		DryRun:        cfg.Broadcast.DryRun,
		FailedCSVPath: cfg.Broadcast.FailedCSVPath,
	}, broadcast.Dependencies{
		Provider: provider,
		Pacer:    broadcast.FixedDelay(cfg.Broadcast.Rate),
		Events:   events,
		Logger:   log.With().Str("component", "broadcast").Logger(),
		Now:      time.Now,
		RunID:    runID,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialise broadcast")
		return exitFailure
	}

	summary, err := driver.Run(ctx)
	code := exitCode(summary, err)
	switch code {
	case exitInterrupted:
		log.Warn().Msg("interrupted")
	case exitFailure:
		log.Error().Int("exit_code", code).Msg("broadcast finished with errors")
	default:
		log.Info().Msg("broadcast finished")
	}
	return code
}

func exitCode(summary *broadcast.Summary, err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case err != nil:
		return exitFailure
	case summary != nil && summary.Failed > 0:
		return exitFailure
	default:
		return exitOK
	}
}

// logConfigError writes one line per invalid setting.
func logConfigError(log zerolog.Logger, err error) {
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var fieldErr *config.FieldError
		if errors.As(e, &fieldErr) {
			log.Error().Str("field", fieldErr.Field).Msg(fieldErr.Reason)
			continue
		}
		log.Error().Err(e).Msg("configuration error")
	}
}
