package factory

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/wa-broadcast/internal/config"
	waprovider "github.com/example/wa-broadcast/internal/providers/whatsapp"
)

// WhatsApp constructs the configured WhatsApp provider. Supports the Cloud API
// and mock backends.
func WhatsApp(cfg config.ProviderConfig, logger zerolog.Logger) (waprovider.Provider, error) {
	backend := normalize(cfg.Backend, "cloud")
	switch backend {
	case "cloud":
		provider, err := waprovider.NewCloudProvider(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("factory: cloud whatsapp provider init: %w", err)
		}
		logger.Info().
			Str("backend", "cloud").
			Str("graph_version", cfg.GraphVersion).
			Msg("whatsapp provider initialised")
		return provider, nil
	case "mock":
		provider := waprovider.NewMockProvider(logger)
		logger.Info().
			Str("backend", "mock").
			Msg("whatsapp provider initialised")
		return provider, nil
	default:
		return nil, fmt.Errorf("factory: unsupported whatsapp provider backend %q", cfg.Backend)
	}
}

func normalize(value, def string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return def
	}
	return value
}
