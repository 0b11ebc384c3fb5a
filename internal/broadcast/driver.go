// Package broadcast drives one run: load recipients, upload the document
// once, then deliver it to every recipient in file order.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/wa-broadcast/internal/adapters/common"
	"github.com/example/wa-broadcast/internal/logger"
	"github.com/example/wa-broadcast/internal/models"
	waprovider "github.com/example/wa-broadcast/internal/providers/whatsapp"
	"github.com/example/wa-broadcast/internal/recipients"
	"github.com/example/wa-broadcast/internal/report"
	"github.com/example/wa-broadcast/internal/util"
)

// Placeholder identifiers synthesized in dry-run mode.
const (
	DryRunMediaID   = "DRY_RUN_MEDIA_ID"
	DryRunMessageID = "DRY_RUN_MESSAGE_ID"
)

// State is a step of the run. Transitions only move forward.
type State string

const (
	StateInit           State = "init"
	StateConfigResolved State = "config_resolved"
	StateMediaUploaded  State = "media_uploaded"
	StateBroadcasting   State = "broadcasting"
	StateComplete       State = "complete"
	StateAborted        State = "aborted"
)

// Config is the slice of the resolved configuration the driver needs.
type Config struct {
	CSVPath       string
	PDFPath       string
	Caption       string
	Filename      string
	Template      *util.TemplateSpec
	DryRun        bool
	FailedCSVPath string
}

// EventSink receives a status event per recipient outcome and one for the
// run summary. Publish failures are logged and otherwise ignored.
type EventSink interface {
	Publish(ctx context.Context, event models.StatusEvent) error
}

// Dependencies collects the runtime collaborators required by the driver.
type Dependencies struct {
	Provider waprovider.Provider
	Pacer    Pacer
	Events   EventSink
	Logger   zerolog.Logger
	Now      func() time.Time
	RunID    string
}

// Summary holds the counters of a finished or interrupted run.
type Summary struct {
	RunID       string
	MediaID     string
	Total       int
	Rejected    int
	Attempted   int
	Succeeded   int
	Failed      int
	Failures    []models.FailureRecord
	Elapsed     time.Duration
	Interrupted bool
}

// SuccessRate is the percentage of attempted recipients that succeeded.
func (s *Summary) SuccessRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.Succeeded) * 100 / float64(s.Attempted)
}

// Driver runs a single broadcast. It is not safe for concurrent use and is
// meant to be run once.
type Driver struct {
	cfg      Config
	provider waprovider.Provider
	pacer    Pacer
	events   EventSink
	logger   zerolog.Logger
	now      func() time.Time
	runID    string

	state State
}

// NewDriver validates the collaborators and returns a driver in StateInit.
func NewDriver(cfg Config, deps Dependencies) (*Driver, error) {
	if cfg.CSVPath == "" {
		return nil, errors.New("broadcast: recipient file path is required")
	}
	if cfg.PDFPath == "" {
		return nil, errors.New("broadcast: document path is required")
	}
	if deps.Provider == nil && !cfg.DryRun {
		return nil, errors.New("broadcast: provider dependency is required")
	}

	log := deps.Logger
	if reflect.ValueOf(log).IsZero() {
		log = zerolog.Nop()
	}
	if deps.RunID != "" {
		log = log.With().Str("run_id", deps.RunID).Logger()
	}

	pacer := deps.Pacer
	if pacer == nil {
		pacer = FixedDelay(0)
	}

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	return &Driver{
		cfg:      cfg,
		provider: deps.Provider,
		pacer:    pacer,
		events:   deps.Events,
		logger:   log,
		now:      nowFunc,
		runID:    deps.RunID,
		state:    StateInit,
	}, nil
}

// State returns the current step of the run.
func (d *Driver) State() State { return d.state }

func (d *Driver) transition(next State) {
	d.logger.Debug().
		Str("from", string(d.state)).
		Str("to", string(next)).
		Msg("broadcast: state transition")
	d.state = next
}

// Run executes the broadcast. Fatal errors (no recipients, upload failure)
// abort before any send and are returned. Per-recipient failures never stop
// the run; they are counted and written to the failure report. An interrupted
// run returns the partial summary together with the context error.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	if d.state != StateInit {
		return nil, fmt.Errorf("broadcast: run already started (state %s)", d.state)
	}
	start := d.now()
	summary := &Summary{RunID: d.runID}
	d.transition(StateConfigResolved)

	loaded, err := recipients.Load(d.cfg.CSVPath, d.logger)
	if err != nil {
		d.logger.Error().Err(err).Msg("broadcast: could not read recipient file")
		d.transition(StateAborted)
		return summary, err
	}
	summary.Rejected = loaded.Rejected
	summary.Total = len(loaded.Recipients)
	if summary.Total == 0 {
		d.logger.Error().
			Str("path", d.cfg.CSVPath).
			Int("rejected", loaded.Rejected).
			Msg("broadcast: no valid recipients found")
		d.transition(StateAborted)
		return summary, recipients.ErrNoRecipients
	}

	mediaID, err := d.uploadDocument(ctx)
	if err != nil {
		d.transition(StateAborted)
		if ctx.Err() != nil {
			summary.Interrupted = true
			return summary, ctx.Err()
		}
		return summary, err
	}
	summary.MediaID = mediaID
	d.transition(StateMediaUploaded)

	d.transition(StateBroadcasting)
	last := len(loaded.Recipients) - 1
	for i, to := range loaded.Recipients {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		outcome := d.deliver(ctx, to, mediaID)
		if outcome.FailureType == models.FailureTypeCanceled && ctx.Err() != nil {
			summary.Interrupted = true
			d.logger.Warn().
				Str("to", logger.Phone(d.logger, to)).
				Msg("broadcast: interrupted during send, recipient not counted")
			break
		}
		d.record(ctx, summary, outcome)

		if i == last {
			break
		}
		if err := d.pacer.Wait(ctx); err != nil {
			summary.Interrupted = true
			break
		}
	}

	summary.Elapsed = d.now().Sub(start)
	reportErr := report.WriteFailures(d.cfg.FailedCSVPath, summary.Failures, d.logger)
	if reportErr != nil {
		d.logger.Error().
			Str("path", d.cfg.FailedCSVPath).
			Err(reportErr).
			Msg("broadcast: could not write failure report")
	}
	d.logSummary(summary)

	if summary.Interrupted {
		d.transition(StateAborted)
		d.logger.Warn().
			Int("remaining", summary.Total-summary.Attempted).
			Msg("broadcast: interrupted before all recipients were processed")
		return summary, ctx.Err()
	}

	d.publish(ctx, models.StatusEvent{
		EventType: models.StatusEventSummary,
		Attempted: summary.Attempted,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
	})
	d.transition(StateComplete)
	return summary, reportErr
}

func (d *Driver) uploadDocument(ctx context.Context) (string, error) {
	mimeType := detectMIME(d.cfg.PDFPath, d.logger)
	checkDocumentSize(d.cfg.PDFPath, d.logger)

	if d.cfg.DryRun {
		d.logger.Info().
			Str("path", d.cfg.PDFPath).
			Str("filename", d.cfg.Filename).
			Str("mime", mimeType).
			Msg("broadcast: dry run, would upload document")
		return DryRunMediaID, nil
	}

	d.logger.Info().Str("path", d.cfg.PDFPath).Msg("broadcast: uploading document")
	start := d.now()
	mediaID, err := d.provider.UploadMedia(ctx, d.cfg.PDFPath, mimeType)
	if err != nil {
		d.logger.Error().
			Str("path", d.cfg.PDFPath).
			Str("failure_type", common.Kind(err)).
			Err(err).
			Msg("broadcast: document upload failed, aborting")
		return "", err
	}
	d.logger.Info().
		Str("media_id", mediaID).
		Dur("duration", d.now().Sub(start)).
		Msg("broadcast: document uploaded")
	return mediaID, nil
}

func (d *Driver) deliver(ctx context.Context, to, mediaID string) models.Outcome {
	outcome := models.Outcome{Recipient: to}
	masked := logger.Phone(d.logger, to)

	if d.cfg.DryRun {
		action := "DOC"
		if d.cfg.Template != nil {
			action = "TEMPLATE+DOC"
		}
		d.logger.Info().
			Str("to", masked).
			Str("action", action).
			Str("filename", d.cfg.Filename).
			Str("caption", d.cfg.Caption).
			Str("media_id", mediaID).
			Msg("broadcast: dry run, would send")
		outcome.MessageID = DryRunMessageID
		return outcome
	}

	if tpl := d.cfg.Template; tpl != nil {
		id, err := d.provider.SendTemplate(ctx, to, tpl.Name, tpl.Language)
		if err != nil {
			outcome.Err = err
			outcome.FailureType = common.Kind(err)
			outcome.TemplateFailed = true
			d.logger.Error().
				Str("to", masked).
				Str("template", tpl.String()).
				Str("failure_type", outcome.FailureType).
				Err(err).
				Msg("broadcast: template send failed, skipping document")
			return outcome
		}
		d.logger.Info().
			Str("to", masked).
			Str("message_id", id).
			Msg("broadcast: template sent")
	}

	id, err := d.provider.SendDocument(ctx, to, waprovider.Document{
		MediaID:  mediaID,
		Caption:  d.cfg.Caption,
		Filename: d.cfg.Filename,
	})
	if err != nil {
		outcome.Err = err
		outcome.FailureType = common.Kind(err)
		d.logger.Error().
			Str("to", masked).
			Str("failure_type", outcome.FailureType).
			Err(err).
			Msg("broadcast: document send failed")
		return outcome
	}
	outcome.MessageID = id
	d.logger.Info().
		Str("to", masked).
		Str("message_id", id).
		Msg("broadcast: document sent")
	return outcome
}

func (d *Driver) record(ctx context.Context, summary *Summary, outcome models.Outcome) {
	summary.Attempted++
	event := models.StatusEvent{
		Recipient: util.MaskPhone(outcome.Recipient),
		MessageID: outcome.MessageID,
	}

	if outcome.Succeeded() {
		summary.Succeeded++
		event.EventType = models.StatusEventSent
		d.publish(ctx, event)
		return
	}

	now := d.now()
	summary.Failed++
	summary.Failures = append(summary.Failures, models.FailureRecord{
		PhoneNumber:  outcome.Recipient,
		ErrorMessage: outcome.Err.Error(),
		Timestamp:    now,
	})

	event.EventType = models.StatusEventFailed
	if outcome.TemplateFailed {
		event.EventType = models.StatusEventSkippedTemplate
	}
	event.Error = outcome.Err.Error()
	event.FailureType = outcome.FailureType
	event.Timestamp = now
	d.publish(ctx, event)
}

func (d *Driver) publish(ctx context.Context, event models.StatusEvent) {
	if d.events == nil || d.cfg.DryRun || ctx.Err() != nil {
		return
	}
	event.RunID = d.runID
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now()
	}
	if err := d.events.Publish(ctx, event); err != nil {
		d.logger.Warn().
			Str("event", event.EventType).
			Err(err).
			Msg("broadcast: failed to publish status event")
	}
}

func (d *Driver) logSummary(s *Summary) {
	ev := d.logger.Info()
	if s.Failed > 0 {
		ev = d.logger.Warn()
	}
	ev.Int("attempted", s.Attempted).
		Int("succeeded", s.Succeeded).
		Int("failed", s.Failed).
		Int("rejected", s.Rejected).
		Str("success_rate", fmt.Sprintf("%.1f%%", s.SuccessRate())).
		Dur("elapsed", s.Elapsed).
		Bool("dry_run", d.cfg.DryRun).
		Msg("broadcast: run finished")
}
