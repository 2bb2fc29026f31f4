package workflow

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/slidesmith-dev/slidesmith/internal/compiler"
	"github.com/slidesmith-dev/slidesmith/internal/config"
	"github.com/slidesmith-dev/slidesmith/internal/log"
	"github.com/slidesmith-dev/slidesmith/internal/oracle"
	"github.com/slidesmith-dev/slidesmith/internal/store"
	"github.com/slidesmith-dev/slidesmith/internal/theme"
	"github.com/slidesmith-dev/slidesmith/internal/validate"
)

// Open builds a Service for the project at root from its configuration:
// the SQLite store, the LaTeX compiler, the configured oracle backend and
// the event log under .slidesmith/.
func Open(root string, cfg *config.Config, logger *slog.Logger, progress func(string, validate.Phase, int)) (*Service, error) {
	catalog, err := theme.Default()
	if err != nil {
		return nil, err
	}

	st, err := store.NewStore(config.Resolve(root, cfg.Storage.Database), config.Resolve(root, cfg.Storage.SessionsDir))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	events, err := log.NewLogger(filepath.Join(root, config.Dir))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	orc, err := oracle.FromConfig(cfg.Oracle, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	comp := compiler.New(compiler.Options{
		Timeout:     cfg.CompileTimeoutDuration(),
		Passes:      cfg.Validation.Passes,
		MaxParallel: int64(cfg.Validation.MaxParallelCompiles),
		Logger:      logger,
	})

	return New(Deps{
		Store:       st,
		Compiler:    comp,
		Oracle:      orc,
		Catalog:     catalog,
		Events:      events,
		Logger:      logger,
		MaxAttempts: cfg.Validation.MaxAttempts,
		Engines:     cfg.Validation.Engines,
		Progress:    progress,
	}), nil
}

// Close releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}
