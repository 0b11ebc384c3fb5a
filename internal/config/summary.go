package config

import (
	"github.com/rs/zerolog"

	"github.com/example/wa-broadcast/internal/util"
)

// LogSummary writes the resolved settings. The access token is always masked;
// the phone number id is masked at INFO and shown in full at DEBUG.
func (c *Config) LogSummary(log zerolog.Logger) {
	template := ""
	if c.Broadcast.Template != nil {
		template = c.Broadcast.Template.String()
	}

	log.Info().
		Str("backend", c.Provider.Backend).
		Str("phone_number_id", util.MaskPhone(c.Provider.PhoneNumberID)).
		Str("access_token", util.MaskSecret(c.Provider.AccessToken)).
		Str("graph_version", c.Provider.GraphVersion).
		Str("csv", c.Broadcast.CSVPath).
		Str("pdf", c.Broadcast.PDFPath).
		Str("filename", c.Broadcast.Filename).
		Dur("rate", c.Broadcast.Rate).
		Str("template", template).
		Bool("dry_run", c.Broadcast.DryRun).
		Str("failed_csv", c.Broadcast.FailedCSVPath).
		Bool("status_stream", c.Status.Enabled()).
		Msg("configuration resolved")

	log.Debug().
		Str("phone_number_id", c.Provider.PhoneNumberID).
		Str("access_token", util.MaskSecret(c.Provider.AccessToken)).
		Str("base_url", c.Provider.BaseURL).
		Dur("http_timeout", c.Provider.Timeout).
		Str("caption", c.Broadcast.Caption).
		Str("log_level", c.Log.Level).
		Str("log_file", c.Log.File).
		Strs("status_brokers", c.Status.Brokers).
		Str("status_topic", c.Status.Topic).
		Msg("configuration detail")
}
