// Package cli defines Cobra command definitions for the slidesmith CLI.
// This file contains the root command, global flags and shared helpers.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slidesmith-dev/slidesmith/internal/config"
	"github.com/slidesmith-dev/slidesmith/internal/log"
	"github.com/slidesmith-dev/slidesmith/internal/ui"
	"github.com/slidesmith-dev/slidesmith/internal/validate"
	"github.com/slidesmith-dev/slidesmith/internal/workflow"
)

var (
	debug   bool
	quiet   bool
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "slidesmith",
	Short: "Build and revise LaTeX Beamer decks from presentation plans",
	Long: `Slidesmith turns a presentation plan into a Beamer deck, compiles it,
repairs it from compiler diagnostics, and revises it from feedback.
Every revision is kept, so any compiled one can be restored.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Hide build progress")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(reviseCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(themesCmd)
	rootCmd.AddCommand(cleanCmd)
}

// project holds what most commands need: the project root, its config and
// an opened service.
type project struct {
	root     string
	cfg      *config.Config
	svc      *workflow.Service
	progress *ui.ProgressDisplay
}

func openProject() (*project, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	cfg, err := config.LoadOrDefault(root)
	if err != nil {
		return nil, err
	}

	p := &project{root: root, cfg: cfg}
	var progress func(string, validate.Phase, int)
	if !quiet {
		p.progress = ui.NewProgressDisplay(cfg.Validation.MaxAttempts)
		progress = p.progress.Update
	}

	svc, err := workflow.Open(root, cfg, logger(), progress)
	if err != nil {
		return nil, err
	}
	p.svc = svc
	return p, nil
}

func (p *project) close() {
	if p.progress != nil {
		p.progress.Finish()
	}
	_ = p.svc.Close()
}

func logger() *slog.Logger {
	return log.NewSlog(os.Stderr, debug)
}
