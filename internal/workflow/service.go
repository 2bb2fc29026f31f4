// Package workflow is the library entry point: it creates sessions, builds
// their first revision and applies feedback and rollbacks, one operation
// per session at a time.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/slidesmith-dev/slidesmith/internal/cleanup"
	"github.com/slidesmith-dev/slidesmith/internal/compiler"
	"github.com/slidesmith-dev/slidesmith/internal/deck"
	"github.com/slidesmith-dev/slidesmith/internal/diff"
	"github.com/slidesmith-dev/slidesmith/internal/generate"
	"github.com/slidesmith-dev/slidesmith/internal/log"
	"github.com/slidesmith-dev/slidesmith/internal/oracle"
	"github.com/slidesmith-dev/slidesmith/internal/plan"
	"github.com/slidesmith-dev/slidesmith/internal/revise"
	"github.com/slidesmith-dev/slidesmith/internal/store"
	"github.com/slidesmith-dev/slidesmith/internal/theme"
	"github.com/slidesmith-dev/slidesmith/internal/validate"
)

// Deps are the collaborators a Service runs on.
type Deps struct {
	Store       *store.Store
	Compiler    compiler.Compiler
	Oracle      oracle.Oracle
	Catalog     *theme.Catalog
	Events      *log.Logger
	Logger      *slog.Logger
	MaxAttempts int
	Engines     map[string]string
	// Progress, when set, receives every validation phase change.
	Progress func(sessionID string, phase validate.Phase, attempt int)
}

// Service runs deck operations. Calls on the same session are serialized;
// different sessions proceed in parallel.
type Service struct {
	store     *store.Store
	catalog   *theme.Catalog
	generator *generate.Generator
	validator *validate.Validator
	oracle    oracle.Oracle
	events    *log.Logger
	logger    *slog.Logger
	progress  func(string, validate.Phase, int)
	locks     *sessionLocks
}

// New wires a Service from its dependencies.
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		store:   d.Store,
		catalog: d.Catalog,
		generator: &generate.Generator{
			Store: d.Store, Oracle: d.Oracle, Catalog: d.Catalog, Events: d.Events, Logger: logger,
		},
		validator: &validate.Validator{
			Store: d.Store, Compiler: d.Compiler, Oracle: d.Oracle, Catalog: d.Catalog,
			MaxAttempts: d.MaxAttempts, Engines: d.Engines, Events: d.Events, Logger: logger,
		},
		oracle:   d.Oracle,
		events:   d.Events,
		logger:   logger,
		progress: d.Progress,
		locks:    newSessionLocks(),
	}
}

// NewSession describes a deck to build.
type NewSession struct {
	Plan            *plan.Plan
	FigureDir       string
	Language        string
	Theme           string
	TableOfContents bool
}

// Create records a new session, generates revision 0 from the plan and
// validates it. The session is returned even when the build fails, so the
// caller can inspect or revise it.
func (s *Service) Create(ctx context.Context, in NewSession) (*store.Session, *store.Artifact, error) {
	if in.Plan == nil {
		return nil, nil, errors.New("plan is required")
	}
	if err := in.Plan.Validate(); err != nil {
		return nil, nil, err
	}
	profile, err := s.catalog.Profile(theme.Language(in.Language))
	if err != nil {
		return nil, nil, err
	}
	th, err := s.catalog.Theme(in.Theme)
	if err != nil {
		return nil, nil, err
	}
	if err := in.Plan.ResolveFigures(in.FigureDir); err != nil {
		return nil, nil, err
	}
	planJSON, err := in.Plan.JSON()
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.store.CreateSession(ctx, &store.Session{
		Title:           in.Plan.Title,
		Language:        string(profile.Code),
		Theme:           th.Name,
		TableOfContents: in.TableOfContents,
		FigureDir:       in.FigureDir,
		Plan:            planJSON,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}
	_ = s.events.Append(log.LogEvent{Event: log.EventSessionCreated, SessionID: sess.ID,
		Data: map[string]any{"title": sess.Title, "language": sess.Language, "theme": sess.Theme, "slides": len(in.Plan.Slides)}})
	s.logger.Info("session created", "session", sess.ID, "slides", len(in.Plan.Slides))

	unlock := s.locks.lock(sess.ID)
	defer unlock()

	art, err := s.generator.Generate(ctx, sess, in.Plan)
	if err != nil {
		return sess, nil, err
	}
	art, err = s.validator.Validate(ctx, sess, art, s.options(sess.ID, false))
	return sess, art, err
}

// Build validates a revision that has not finished building, or with force
// rechecks a compiled one without changing it.
func (s *Service) Build(ctx context.Context, sessionID string, revision int, force bool) (*store.Artifact, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	art, err := s.store.GetRevision(ctx, sessionID, revision)
	if err != nil {
		return nil, err
	}
	return s.validator.Validate(ctx, sess, art, s.options(sessionID, force))
}

// Revise applies one round of feedback.
func (s *Service) Revise(ctx context.Context, sessionID string, req revise.Request) (*store.Artifact, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.controller(sessionID).Revise(ctx, sess, req)
}

// Rollback restores a compiled revision as a new revision.
func (s *Service) Rollback(ctx context.Context, sessionID string, revision int) (*store.Artifact, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.controller(sessionID).Rollback(ctx, sess, revision)
}

// Session returns a session by id.
func (s *Service) Session(ctx context.Context, sessionID string) (*store.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// Sessions lists recent sessions, newest first.
func (s *Service) Sessions(ctx context.Context, limit int) ([]store.Summary, error) {
	return s.store.ListSessions(ctx, limit)
}

// Latest returns the session's latest compiled revision.
func (s *Service) Latest(ctx context.Context, sessionID string) (*store.Artifact, error) {
	return s.store.GetLatestCompiled(ctx, sessionID)
}

// History returns every revision of a session in order.
func (s *Service) History(ctx context.Context, sessionID string) ([]store.Artifact, error) {
	return s.store.ListRevisions(ctx, sessionID)
}

// Attempts returns the compile attempts of one revision.
func (s *Service) Attempts(ctx context.Context, sessionID string, revision int) ([]store.Attempt, error) {
	return s.store.ListAttempts(ctx, sessionID, revision)
}

// Diff renders a unified diff between two revisions.
func (s *Service) Diff(ctx context.Context, sessionID string, from, to int) (string, error) {
	a, err := s.store.GetRevision(ctx, sessionID, from)
	if err != nil {
		return "", fmt.Errorf("revision %d: %w", from, err)
	}
	b, err := s.store.GetRevision(ctx, sessionID, to)
	if err != nil {
		return "", fmt.Errorf("revision %d: %w", to, err)
	}
	return diff.Unified(fmt.Sprintf("revision %d", from), fmt.Sprintf("revision %d", to), a.Text, b.Text, 3), nil
}

// Clean removes compile work directories of a session that no compiled
// revision publishes from.
func (s *Service) Clean(ctx context.Context, sessionID string, dryRun bool) ([]string, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	revs, err := s.store.ListRevisions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var keep []string
	for _, r := range revs {
		if r.Status == deck.StatusCompiled && r.OutputPath != "" {
			keep = append(keep, filepath.Dir(r.OutputPath))
		}
	}
	return cleanup.PruneBuilds(filepath.Join(sess.Dir, "builds"), keep, dryRun)
}

func (s *Service) controller(sessionID string) *revise.Controller {
	return &revise.Controller{
		Store:     s.store,
		Validator: s.validator,
		Oracle:    s.oracle,
		Events:    s.events,
		Logger:    s.logger,
		Progress:  s.options(sessionID, false).Progress,
	}
}

func (s *Service) options(sessionID string, force bool) validate.Options {
	opts := validate.Options{Force: force}
	if s.progress != nil {
		opts.Progress = func(p validate.Phase, attempt int) { s.progress(sessionID, p, attempt) }
	}
	return opts
}
