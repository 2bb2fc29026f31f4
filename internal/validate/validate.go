// Package validate compiles deck revisions and repairs them from compiler
// diagnostics, within a fixed attempt budget.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/slidesmith-dev/slidesmith/internal/compiler"
	"github.com/slidesmith-dev/slidesmith/internal/deck"
	"github.com/slidesmith-dev/slidesmith/internal/log"
	"github.com/slidesmith-dev/slidesmith/internal/oracle"
	"github.com/slidesmith-dev/slidesmith/internal/patch"
	"github.com/slidesmith-dev/slidesmith/internal/store"
	"github.com/slidesmith-dev/slidesmith/internal/theme"
)

// DefaultMaxAttempts bounds compiler invocations per revision.
const DefaultMaxAttempts = 3

// ArtifactStore is the part of the store the validator writes through.
type ArtifactStore interface {
	GetRevision(ctx context.Context, sessionID string, revision int) (*store.Artifact, error)
	MarkCompiling(ctx context.Context, sessionID string, revision int) error
	UpdateText(ctx context.Context, sessionID string, revision int, text string) error
	RecordAttempt(ctx context.Context, sessionID string, revision int, at store.Attempt) error
	MarkCompiled(ctx context.Context, sessionID string, revision int, outputPath string) error
	MarkFailed(ctx context.Context, sessionID string, revision int, kind, diagnostics string) error
}

// Options tune a single Validate call.
type Options struct {
	// Force recompiles an already compiled revision. A failure is reported
	// as a CompileError and does not change the stored status.
	Force bool
	// Progress, when set, is called on every phase change.
	Progress func(phase Phase, attempt int)
}

// Validator runs the compile and repair loop.
type Validator struct {
	Store       ArtifactStore
	Compiler    compiler.Compiler
	Oracle      oracle.Oracle
	Catalog     *theme.Catalog
	MaxAttempts int
	Engines     map[string]string // language -> engine override
	Events      *log.Logger
	Logger      *slog.Logger
}

// Validate drives art to compiled or failed. Compiled revisions are
// returned untouched unless opts.Force; failed ones are returned with the
// error they failed with.
func (v *Validator) Validate(ctx context.Context, sess *store.Session, art *store.Artifact, opts Options) (*store.Artifact, error) {
	switch art.Status {
	case deck.StatusCompiled:
		if !opts.Force {
			return art, nil
		}
		return v.recheck(ctx, sess, art)
	case deck.StatusFailed:
		return art, art.Err()
	}

	engine, err := v.engine(sess.Language)
	if err != nil {
		return nil, err
	}

	if err := v.Store.MarkCompiling(ctx, sess.ID, art.Revision); err != nil {
		return nil, fmt.Errorf("starting build of revision %d: %w", art.Revision, err)
	}

	r := &run{
		v:      v,
		sess:   sess,
		rev:    art.Revision,
		text:   art.Text,
		engine: engine,
		diag:   art.Diagnostics,
		m:      &machine{phase: PhasePending, attempt: art.Attempts, onChange: opts.Progress},
	}
	if err := r.m.to(PhaseCompiling); err != nil {
		return nil, err
	}
	runErr := r.loop(ctx, art.Attempts+1)

	final, err := v.Store.GetRevision(context.WithoutCancel(ctx), sess.ID, art.Revision)
	if err != nil {
		return nil, errors.Join(runErr, err)
	}
	return final, runErr
}

func (v *Validator) maxAttempts() int {
	if v.MaxAttempts > 0 {
		return v.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (v *Validator) engine(language string) (string, error) {
	if e := v.Engines[language]; e != "" {
		return e, nil
	}
	p, err := v.Catalog.Profile(theme.Language(language))
	if err != nil {
		return "", err
	}
	return p.Engine, nil
}

func (v *Validator) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return log.Discard()
}

// recheck compiles a compiled revision again without touching its record.
func (v *Validator) recheck(ctx context.Context, sess *store.Session, art *store.Artifact) (*store.Artifact, error) {
	engine, err := v.engine(sess.Language)
	if err != nil {
		return nil, err
	}
	res, err := v.Compiler.Compile(ctx, compiler.Job{
		Text:      art.Text,
		WorkDir:   filepath.Join(sess.Dir, "builds", fmt.Sprintf("rev-%03d", art.Revision), "recheck"),
		FigureDir: sess.FigureDir,
		Engine:    engine,
	})
	if err != nil {
		return art, fmt.Errorf("rechecking revision %d: %w", art.Revision, err)
	}
	if !res.OK {
		return art, deck.Errorf(deck.ErrCompileError, art.Revision, "compiled revision no longer builds").WithDiagnostics(res.Diagnostics)
	}
	return art, nil
}

// run is one validation of one revision.
type run struct {
	v      *Validator
	sess   *store.Session
	rev    int
	text   string
	engine string
	diag   string
	m      *machine
}

func (r *run) loop(ctx context.Context, first int) error {
	v := r.v
	limit := v.maxAttempts()

	for attempt := first; attempt <= limit; attempt++ {
		r.m.attempt = attempt
		if err := ctx.Err(); err != nil {
			return r.canceled(err)
		}

		if missing, err := CheckFigures(r.text, r.sess.FigureDir); err != nil {
			return r.fail(deck.ErrMissingFigure, err.Error(), err)
		} else if len(missing) > 0 {
			diag := strings.Join(missing, "\n")
			return r.fail(deck.ErrMissingFigure, diag, nil)
		}

		_ = v.Events.Append(log.LogEvent{Event: log.EventCompileAttempt, SessionID: r.sess.ID, Revision: log.Rev(r.rev), Attempt: attempt})
		res, err := v.Compiler.Compile(ctx, compiler.Job{
			Text:      r.text,
			WorkDir:   filepath.Join(r.sess.Dir, "builds", fmt.Sprintf("rev-%03d", r.rev), fmt.Sprintf("attempt-%d", attempt)),
			FigureDir: r.sess.FigureDir,
			Engine:    r.engine,
		})
		if err != nil {
			if ctx.Err() != nil {
				return r.canceled(ctx.Err())
			}
			return r.fail(deck.ErrCompileError, "compiler unavailable: "+err.Error(), err)
		}

		outcome := deck.OutcomeError
		if res.OK {
			outcome = deck.OutcomeOK
		}
		r.diag = res.Diagnostics
		if err := v.Store.RecordAttempt(context.WithoutCancel(ctx), r.sess.ID, r.rev, store.Attempt{
			Number:      attempt,
			Outcome:     outcome,
			Diagnostics: res.Diagnostics,
			DurationMs:  res.Duration.Milliseconds(),
		}); err != nil {
			return fmt.Errorf("recording attempt %d: %w", attempt, err)
		}

		if res.OK {
			if err := ctx.Err(); err != nil {
				return r.canceled(err)
			}
			return r.publish(ctx, res.OutputPath, attempt)
		}

		summary := compiler.ParseDiagnostics(res.Diagnostics)
		v.logger().Info("compile failed", "session", r.sess.ID, "revision", r.rev, "attempt", attempt, "error", summary.Headline())
		_ = v.Events.Append(log.LogEvent{Event: log.EventCompileFailed, SessionID: r.sess.ID, Revision: log.Rev(r.rev),
			Attempt: attempt, Error: summary.Headline()})

		if attempt == limit {
			break
		}

		if err := r.m.to(PhaseRepairing); err != nil {
			return err
		}
		if err := r.repair(ctx, res.Diagnostics, summary); err != nil {
			return err
		}
		if err := r.m.to(PhaseCompiling); err != nil {
			return err
		}
	}

	return r.fail(deck.ErrRepairExhausted, r.diag, nil)
}

// repair asks the oracle to fix every reported error at once and stores
// the repaired text on the same revision.
func (r *run) repair(ctx context.Context, diagnostics string, summary compiler.Summary) error {
	v := r.v
	prop, err := v.Oracle.Propose(ctx, oracle.Request{
		Task:        oracle.TaskRepair,
		Language:    r.sess.Language,
		Text:        r.text,
		Diagnostics: diagnostics,
		Summary:     summary.String(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return r.canceled(ctx.Err())
		}
		return r.fail(deck.ErrContentUnavailable, diagnostics, err)
	}

	fixed, err := patch.Apply(r.text, prop)
	if err != nil {
		return r.fail(deck.ErrPatchNotApplicable, diagnostics, err)
	}

	if err := v.Store.UpdateText(ctx, r.sess.ID, r.rev, fixed); err != nil {
		if ctx.Err() != nil {
			return r.canceled(ctx.Err())
		}
		return fmt.Errorf("storing repaired text: %w", err)
	}
	r.text = fixed

	_ = v.Events.Append(log.LogEvent{Event: log.EventRepairApplied, SessionID: r.sess.ID, Revision: log.Rev(r.rev),
		Attempt: r.m.attempt, Mode: string(prop.Mode), Reason: prop.Message})
	v.logger().Debug("repair applied", "session", r.sess.ID, "revision", r.rev, "mode", prop.Mode)
	return nil
}

func (r *run) publish(ctx context.Context, outputPath string, attempt int) error {
	if err := r.v.Store.MarkCompiled(context.WithoutCancel(ctx), r.sess.ID, r.rev, outputPath); err != nil {
		return fmt.Errorf("publishing revision %d: %w", r.rev, err)
	}
	if err := r.m.to(PhaseCompiled); err != nil {
		return err
	}
	_ = r.v.Events.Append(log.LogEvent{Event: log.EventBuildCompiled, SessionID: r.sess.ID, Revision: log.Rev(r.rev), Attempt: attempt})
	r.v.logger().Info("revision compiled", "session", r.sess.ID, "revision", r.rev, "attempts", attempt)
	return nil
}

// fail marks the revision failed with kind and the given diagnostics, and
// returns the matching error. The write survives caller cancellation.
func (r *run) fail(kind error, diagnostics string, cause error) error {
	name := deck.KindName(kind)
	if err := r.v.Store.MarkFailed(context.Background(), r.sess.ID, r.rev, name, diagnostics); err != nil {
		return fmt.Errorf("marking revision %d failed: %w", r.rev, err)
	}
	_ = r.m.to(PhaseFailed)

	_ = r.v.Events.Append(log.LogEvent{Event: log.EventBuildFailed, SessionID: r.sess.ID, Revision: log.Rev(r.rev),
		Attempt: r.m.attempt, Kind: name, Error: firstLine(diagnostics)})
	r.v.logger().Warn("revision failed", "session", r.sess.ID, "revision", r.rev, "kind", name)

	e := deck.Errorf(kind, r.rev, "build failed after %d attempt(s)", r.m.attempt).WithDiagnostics(diagnostics)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

func (r *run) canceled(cause error) error {
	diag := "canceled: " + cause.Error()
	if err := r.v.Store.MarkFailed(context.Background(), r.sess.ID, r.rev, "", diag); err != nil {
		return fmt.Errorf("marking revision %d canceled: %w", r.rev, err)
	}
	_ = r.m.to(PhaseFailed)
	_ = r.v.Events.Append(log.LogEvent{Event: log.EventBuildFailed, SessionID: r.sess.ID, Revision: log.Rev(r.rev),
		Attempt: r.m.attempt, Error: diag})
	return fmt.Errorf("validating revision %d: %w", r.rev, cause)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
