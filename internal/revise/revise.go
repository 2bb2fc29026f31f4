// Package revise turns natural-language feedback on a compiled deck into a
// new validated revision, and rolls a session back to an earlier one.
package revise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slidesmith-dev/slidesmith/internal/deck"
	"github.com/slidesmith-dev/slidesmith/internal/diff"
	"github.com/slidesmith-dev/slidesmith/internal/generate"
	"github.com/slidesmith-dev/slidesmith/internal/log"
	"github.com/slidesmith-dev/slidesmith/internal/oracle"
	"github.com/slidesmith-dev/slidesmith/internal/patch"
	"github.com/slidesmith-dev/slidesmith/internal/plan"
	"github.com/slidesmith-dev/slidesmith/internal/store"
	"github.com/slidesmith-dev/slidesmith/internal/validate"
)

// Store is the part of the artifact store revisions need.
type Store interface {
	GetRevision(ctx context.Context, sessionID string, revision int) (*store.Artifact, error)
	GetLatestCompiled(ctx context.Context, sessionID string) (*store.Artifact, error)
	ListRevisions(ctx context.Context, sessionID string) ([]store.Artifact, error)
	PutArtifact(ctx context.Context, a *store.Artifact) (*store.Artifact, error)
}

// Validator builds a candidate revision.
type Validator interface {
	Validate(ctx context.Context, sess *store.Session, art *store.Artifact, opts validate.Options) (*store.Artifact, error)
}

// Request is one round of feedback.
type Request struct {
	Feedback string
	// FromRevision picks the base revision. Nil means the latest compiled.
	FromRevision *int
	// AllowFailedBase lets FromRevision name a failed revision.
	AllowFailedBase bool
}

// Controller applies feedback rounds and rollbacks.
type Controller struct {
	Store     Store
	Validator Validator
	Oracle    oracle.Oracle
	Events    *log.Logger
	Logger    *slog.Logger
	Progress  func(phase validate.Phase, attempt int)
}

// Revise asks the oracle to apply req.Feedback to the base revision and
// validates the result as a new revision. When the proposal cannot be
// applied no revision is created.
func (c *Controller) Revise(ctx context.Context, sess *store.Session, req Request) (*store.Artifact, error) {
	feedback := strings.TrimSpace(req.Feedback)
	if feedback == "" {
		return nil, errors.New("feedback is empty")
	}

	if err := c.checkIdle(ctx, sess.ID); err != nil {
		return nil, err
	}
	base, err := c.base(ctx, sess, req)
	if err != nil {
		return nil, err
	}
	_ = c.Events.Append(log.LogEvent{Event: log.EventRevisionRequested, SessionID: sess.ID,
		Revision: log.Rev(base.Revision), Feedback: feedback})

	history, err := c.history(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	p := storedPlan(sess)
	oreq := oracle.Request{
		Task:     oracle.TaskRevise,
		Language: sess.Language,
		Text:     base.Text,
		Feedback: feedback,
		History:  history,
		Focus:    focusFrame(base.Text, feedback, sess.TableOfContents, p),
	}
	if p != nil {
		oreq.PlanSummary = p.Summary()
	}

	prop, err := c.Oracle.Propose(ctx, oreq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("revising revision %d: %w", base.Revision, ctx.Err())
		}
		return nil, c.reject(sess, base, deck.ErrContentUnavailable, err)
	}

	text, err := patch.Apply(base.Text, prop)
	if err != nil {
		return nil, c.reject(sess, base, deck.ErrPatchNotApplicable, err)
	}

	cand, err := c.Store.PutArtifact(ctx, &store.Artifact{
		SessionID:    sess.ID,
		Text:         text,
		Origin:       deck.OriginRevise,
		BaseRevision: base.Revision,
		Feedback:     feedback,
	})
	if err != nil {
		return nil, fmt.Errorf("storing revision: %w", err)
	}
	stats := diff.Count(base.Text, text)
	c.logger().Info("revision created", "session", sess.ID, "revision", cand.Revision,
		"base", base.Revision, "mode", prop.Mode, "changes", stats.String())

	return c.Validator.Validate(ctx, sess, cand, validate.Options{Progress: c.Progress})
}

// checkIdle refuses to start a new revision while an earlier one is still
// marked compiling, which only outlives its build after a crash. The new
// revision could never be compiled, so nothing is stored.
func (c *Controller) checkIdle(ctx context.Context, sessionID string) error {
	revs, err := c.Store.ListRevisions(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("listing revisions: %w", err)
	}
	for _, r := range revs {
		if r.Status == deck.StatusCompiling {
			return fmt.Errorf("revision %d is still marked compiling; finish it with \"slidesmith build %s %d\": %w",
				r.Revision, sessionID, r.Revision, store.ErrBusy)
		}
	}
	return nil
}

// Rollback creates a new revision carrying the text of an earlier compiled
// revision. Earlier revisions are never rewritten.
func (c *Controller) Rollback(ctx context.Context, sess *store.Session, revision int) (*store.Artifact, error) {
	target, err := c.Store.GetRevision(ctx, sess.ID, revision)
	if errors.Is(err, store.ErrNotFound) {
		return nil, deck.Errorf(deck.ErrNoBaseArtifact, -1, "revision %d does not exist", revision)
	}
	if err != nil {
		return nil, fmt.Errorf("loading revision %d: %w", revision, err)
	}
	if target.Status != deck.StatusCompiled {
		return nil, deck.Errorf(deck.ErrNoBaseArtifact, -1, "revision %d is %s, only compiled revisions can be restored", revision, target.Status)
	}

	if err := c.checkIdle(ctx, sess.ID); err != nil {
		return nil, err
	}

	_ = c.Events.Append(log.LogEvent{Event: log.EventRollbackRequested, SessionID: sess.ID, Revision: log.Rev(revision)})

	cand, err := c.Store.PutArtifact(ctx, &store.Artifact{
		SessionID:    sess.ID,
		Text:         target.Text,
		Origin:       deck.OriginRollback,
		BaseRevision: revision,
	})
	if err != nil {
		return nil, fmt.Errorf("storing rollback: %w", err)
	}
	c.logger().Info("rollback created", "session", sess.ID, "revision", cand.Revision, "restores", revision)

	return c.Validator.Validate(ctx, sess, cand, validate.Options{Progress: c.Progress})
}

func (c *Controller) base(ctx context.Context, sess *store.Session, req Request) (*store.Artifact, error) {
	if req.FromRevision == nil {
		a, err := c.Store.GetLatestCompiled(ctx, sess.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, deck.Errorf(deck.ErrNoBaseArtifact, -1, "session has no compiled revision")
		}
		if err != nil {
			return nil, fmt.Errorf("loading latest compiled revision: %w", err)
		}
		return a, nil
	}

	n := *req.FromRevision
	a, err := c.Store.GetRevision(ctx, sess.ID, n)
	if errors.Is(err, store.ErrNotFound) {
		return nil, deck.Errorf(deck.ErrNoBaseArtifact, -1, "revision %d does not exist", n)
	}
	if err != nil {
		return nil, fmt.Errorf("loading revision %d: %w", n, err)
	}
	switch {
	case a.Status == deck.StatusCompiled:
	case a.Status == deck.StatusFailed && req.AllowFailedBase:
	default:
		return nil, deck.Errorf(deck.ErrNoBaseArtifact, -1, "revision %d is %s", n, a.Status)
	}
	return a, nil
}

// history lists the feedback of earlier revise rounds, oldest first, with
// how each round ended.
func (c *Controller) history(ctx context.Context, sessionID string) ([]string, error) {
	revs, err := c.Store.ListRevisions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading revision history: %w", err)
	}
	var out []string
	for _, r := range revs {
		if r.Origin != deck.OriginRevise || r.Feedback == "" {
			continue
		}
		outcome := "compiled"
		if r.Status == deck.StatusFailed {
			outcome = "did not compile"
		}
		out = append(out, fmt.Sprintf("%s (revision %d, %s)", r.Feedback, r.Revision, outcome))
	}
	return out, nil
}

func (c *Controller) reject(sess *store.Session, base *store.Artifact, kind, cause error) error {
	name := deck.KindName(kind)
	_ = c.Events.Append(log.LogEvent{Event: log.EventRevisionRejected, SessionID: sess.ID,
		Revision: log.Rev(base.Revision), Kind: name, Error: cause.Error()})
	c.logger().Warn("revision rejected", "session", sess.ID, "base", base.Revision, "kind", name, "error", cause)
	return deck.Errorf(kind, -1, "feedback on revision %d", base.Revision).WithCause(cause)
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Discard()
}

// focusFrame returns the frame feedback points at, or "" when it names
// none or the frame cannot be found.
func focusFrame(text, feedback string, toc bool, p *plan.Plan) string {
	n, ok := TargetSlide(feedback, toc)
	if !ok {
		return ""
	}
	if p != nil {
		for _, s := range p.Slides {
			if s.Number != n {
				continue
			}
			if f, ok := FrameByTitle(text, generate.EscapeLaTeX(s.Title)); ok {
				return f.Text
			}
		}
	}
	if f, ok := ContentFrame(text, n); ok {
		return f.Text
	}
	return ""
}

func storedPlan(sess *store.Session) *plan.Plan {
	if len(sess.Plan) == 0 {
		return nil
	}
	p, err := plan.FromJSON(sess.Plan)
	if err != nil {
		return nil
	}
	return p
}
