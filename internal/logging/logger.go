package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/animxo/mailpanel/internal/config"
)

const serviceName = "mailpanel-api"

// NewLogger creates a structured zerolog.Logger writing JSON to stdout, tagged
// with the service name and the configured mail domain.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp().Str("service", serviceName)

	if cfg.MailDomain != "" {
		ctx = ctx.Str("domain", cfg.MailDomain)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
