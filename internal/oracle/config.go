package oracle

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/slidesmith-dev/slidesmith/internal/config"
)

// FromConfig builds the configured backend wrapped in a Retrying policy.
func FromConfig(cfg config.OracleConfig, logger *slog.Logger) (Oracle, error) {
	var next Oracle
	switch cfg.Backend {
	case "http":
		next = NewHTTP(HTTPConfig{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			APIKey:   os.Getenv(cfg.APIKeyEnv),
		})
	case "command":
		next = &Command{Binary: cfg.Command, Model: cfg.Model}
	default:
		return nil, fmt.Errorf("unknown oracle backend %q", cfg.Backend)
	}

	return &Retrying{
		Next:       next,
		Timeout:    time.Duration(cfg.Timeout) * time.Second,
		MaxRetries: cfg.MaxRetries,
		Backoff:    time.Duration(cfg.RetryBackoffMs) * time.Millisecond,
		Logger:     logger,
	}, nil
}
