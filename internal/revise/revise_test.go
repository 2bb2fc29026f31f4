package revise

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/slidesmith-dev/slidesmith/internal/deck"
	"github.com/slidesmith-dev/slidesmith/internal/oracle"
	"github.com/slidesmith-dev/slidesmith/internal/plan"
	"github.com/slidesmith-dev/slidesmith/internal/store"
	"github.com/slidesmith-dev/slidesmith/internal/testutil"
	"github.com/slidesmith-dev/slidesmith/internal/theme"
	"github.com/slidesmith-dev/slidesmith/internal/validate"
)

const baseDeck = `\documentclass[aspectratio=169]{beamer}
\usetheme{Madrid}
\begin{document}
\begin{frame}
\titlepage
\end{frame}
\begin{frame}
\frametitle{Motivation}
\begin{itemize}
\item Attention cost grows quadratically
\item Long documents do not fit
\end{itemize}
\end{frame}
\begin{frame}
\frametitle{Results}
\begin{itemize}
\item 3x faster training
\end{itemize}
\includegraphics[height=0.45\textheight]{images/loss.png}
\end{frame}
\end{document}
`

type fixture struct {
	c        *Controller
	store    *store.Store
	compiler *testutil.Compiler
	oracle   *testutil.Oracle
	sess     *store.Session
}

// newFixture returns a session whose revision 0 holds baseDeck and has
// compiled.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	cat, err := theme.Default()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	p, err := plan.Parse([]byte(testutil.PlanYAML))
	if err != nil {
		t.Fatalf("parsing plan: %v", err)
	}
	planJSON, err := p.JSON()
	if err != nil {
		t.Fatalf("encoding plan: %v", err)
	}

	st := testutil.NewStore(t)
	sess, err := st.CreateSession(ctx, &store.Session{
		Title: p.Title, Language: "en", Theme: "Madrid",
		FigureDir: testutil.Figures(t, "loss.png"), Plan: planJSON,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	comp := testutil.FailWhenContains(`\badmacro`)
	orc := &testutil.Oracle{}
	v := &validate.Validator{Store: st, Compiler: comp, Oracle: orc, Catalog: cat, MaxAttempts: 3}

	art, err := st.PutArtifact(ctx, &store.Artifact{SessionID: sess.ID, Text: baseDeck, Origin: deck.OriginGenerate, BaseRevision: -1})
	if err != nil {
		t.Fatalf("PutArtifact failed: %v", err)
	}
	if _, err := v.Validate(ctx, sess, art, validate.Options{}); err != nil {
		t.Fatalf("building revision 0: %v", err)
	}

	return &fixture{
		c:        &Controller{Store: st, Validator: v, Oracle: orc},
		store:    st,
		compiler: comp,
		oracle:   orc,
		sess:     sess,
	}
}

func (f *fixture) revisions(t *testing.T) []store.Artifact {
	t.Helper()
	revs, err := f.store.ListRevisions(context.Background(), f.sess.ID)
	if err != nil {
		t.Fatalf("ListRevisions failed: %v", err)
	}
	return revs
}

func (f *fixture) latestCompiled(t *testing.T) int {
	t.Helper()
	a, err := f.store.GetLatestCompiled(context.Background(), f.sess.ID)
	if err != nil {
		t.Fatalf("GetLatestCompiled failed: %v", err)
	}
	return a.Revision
}

func TestReviseCreatesCompiledRevision(t *testing.T) {
	f := newFixture(t)
	f.oracle.Replies = []testutil.Reply{testutil.Patch(`\item 3x faster training`, `\item 3x faster training on 8 GPUs`)}

	got, err := f.c.Revise(context.Background(), f.sess, Request{Feedback: "slide 2: mention the GPU count"})
	if err != nil {
		t.Fatalf("Revise failed: %v", err)
	}
	if got.Revision != 1 || got.Status != deck.StatusCompiled {
		t.Errorf("revision=%d status=%s, want compiled revision 1", got.Revision, got.Status)
	}
	if got.Origin != deck.OriginRevise || got.BaseRevision != 0 || got.Feedback != "slide 2: mention the GPU count" {
		t.Errorf("unexpected lineage: %+v", got)
	}
	if !strings.Contains(got.Text, "on 8 GPUs") {
		t.Error("revision text should carry the patch")
	}

	req := f.oracle.Requests()[0]
	if req.Task != oracle.TaskRevise || req.Text != baseDeck {
		t.Errorf("unexpected oracle request: %+v", req)
	}
	if !strings.Contains(req.Focus, `\frametitle{Results}`) || strings.Contains(req.Focus, "Motivation") {
		t.Errorf("focus should be the Results frame, got:\n%s", req.Focus)
	}
	if !strings.Contains(req.PlanSummary, "Sparse Attention at Scale") {
		t.Error("request should carry the plan summary")
	}
	if f.latestCompiled(t) != 1 {
		t.Error("latest compiled should move to the new revision")
	}
}

func TestRevisePatchSafety(t *testing.T) {
	tests := []struct {
		name  string
		reply testutil.Reply
		want  error
	}{
		{"old text missing", testutil.Patch(`\item nowhere`, "x"), deck.ErrPatchNotApplicable},
		{"old text ambiguous", testutil.Patch(`\begin{itemize}`, `\begin{enumerate}`), deck.ErrPatchNotApplicable},
		{"no change", testutil.Patch(`\item 3x faster training`, `\item 3x faster training`), deck.ErrPatchNotApplicable},
		{"oracle down", testutil.Fail(oracle.ErrUnavailable), deck.ErrContentUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.oracle.Replies = []testutil.Reply{tt.reply}

			_, err := f.c.Revise(context.Background(), f.sess, Request{Feedback: "tweak it"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if n := len(f.revisions(t)); n != 1 {
				t.Errorf("revisions = %d, want no new revision", n)
			}
			if f.latestCompiled(t) != 0 {
				t.Error("latest compiled must not change")
			}
		})
	}
}

func TestFailedRevisionKeepsLatestCompiled(t *testing.T) {
	f := newFixture(t)
	f.oracle.Replies = []testutil.Reply{
		testutil.Patch(`\item 3x faster training`, `\item 3x faster \badmacro training`),
		testutil.Fail(oracle.ErrMalformed),
	}

	got, err := f.c.Revise(context.Background(), f.sess, Request{Feedback: "make it pop"})
	if err == nil {
		t.Fatal("expected the candidate to fail")
	}
	if got.Revision != 1 || got.Status != deck.StatusFailed {
		t.Errorf("revision=%d status=%s, want failed revision 1", got.Revision, got.Status)
	}
	if f.latestCompiled(t) != 0 {
		t.Error("latest compiled should still be revision 0")
	}

	// The failed round is part of the history the next round sees.
	f.oracle.Replies = append(f.oracle.Replies, testutil.Patch("Long documents do not fit", "Long documents overflow memory"))
	if _, err := f.c.Revise(context.Background(), f.sess, Request{Feedback: "reword the second bullet"}); err != nil {
		t.Fatalf("second Revise failed: %v", err)
	}
	reqs := f.oracle.Requests()
	last := reqs[len(reqs)-1]
	if len(last.History) != 1 || !strings.HasPrefix(last.History[0], "make it pop") {
		t.Errorf("history = %q", last.History)
	}
	if got := f.revisions(t); len(got) != 3 || got[2].BaseRevision != 0 {
		t.Errorf("second round should build on revision 0: %+v", got)
	}
}

func TestReviseBaseSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.oracle.Replies = []testutil.Reply{
		testutil.Patch(`\item 3x faster training`, `\item 3x \badmacro`),
		testutil.Fail(oracle.ErrUnavailable),
	}
	if _, err := f.c.Revise(ctx, f.sess, Request{Feedback: "break it"}); err == nil {
		t.Fatal("expected revision 1 to fail")
	}

	failed := 1
	if _, err := f.c.Revise(ctx, f.sess, Request{Feedback: "again", FromRevision: &failed}); !errors.Is(err, deck.ErrNoBaseArtifact) {
		t.Errorf("failed base without opt-in: got %v", err)
	}
	missing := 9
	if _, err := f.c.Revise(ctx, f.sess, Request{Feedback: "again", FromRevision: &missing}); !errors.Is(err, deck.ErrNoBaseArtifact) {
		t.Errorf("missing base: got %v", err)
	}

	f.oracle.Replies = append(f.oracle.Replies, testutil.Patch(`\badmacro`, "faster training"))
	got, err := f.c.Revise(ctx, f.sess, Request{Feedback: "fix the typo", FromRevision: &failed, AllowFailedBase: true})
	if err != nil {
		t.Fatalf("Revise from failed base: %v", err)
	}
	if got.BaseRevision != 1 || got.Status != deck.StatusCompiled {
		t.Errorf("unexpected result: base=%d status=%s", got.BaseRevision, got.Status)
	}
}

func TestReviseWithoutCompiledRevision(t *testing.T) {
	st := testutil.NewStore(t)
	sess, err := st.CreateSession(context.Background(), &store.Session{Title: "Empty", Language: "en"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	orc := &testutil.Oracle{}
	c := &Controller{Store: st, Oracle: orc}

	_, err = c.Revise(context.Background(), sess, Request{Feedback: "anything"})
	if !errors.Is(err, deck.ErrNoBaseArtifact) {
		t.Fatalf("expected NoBaseArtifact, got %v", err)
	}
	if orc.Calls() != 0 {
		t.Error("oracle should not be asked without a base")
	}
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.oracle.Replies = []testutil.Reply{testutil.Patch("Motivation", "Why")}
	if _, err := f.c.Revise(ctx, f.sess, Request{Feedback: "shorter title on slide 1"}); err != nil {
		t.Fatalf("Revise failed: %v", err)
	}

	got, err := f.c.Rollback(ctx, f.sess, 0)
	if err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if got.Revision != 2 || got.Origin != deck.OriginRollback || got.BaseRevision != 0 {
		t.Errorf("unexpected rollback revision: %+v", got)
	}
	if got.Text != baseDeck || got.Status != deck.StatusCompiled {
		t.Error("rollback should restore revision 0's text and compile it")
	}

	revs := f.revisions(t)
	if len(revs) != 3 || !strings.Contains(revs[1].Text, "Why") {
		t.Error("rollback must not rewrite history")
	}

	if _, err := f.c.Rollback(ctx, f.sess, 7); !errors.Is(err, deck.ErrNoBaseArtifact) {
		t.Errorf("rollback to a missing revision: got %v", err)
	}
}

func TestRollbackRefusesFailedRevision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.oracle.Replies = []testutil.Reply{
		testutil.Patch(`\item 3x faster training`, `\item \badmacro`),
		testutil.Fail(oracle.ErrUnavailable),
	}
	if _, err := f.c.Revise(ctx, f.sess, Request{Feedback: "break it"}); err == nil {
		t.Fatal("expected revision 1 to fail")
	}
	if _, err := f.c.Rollback(ctx, f.sess, 1); !errors.Is(err, deck.ErrNoBaseArtifact) {
		t.Errorf("got %v, want NoBaseArtifact", err)
	}
	if len(f.revisions(t)) != 2 {
		t.Error("a refused rollback must not create a revision")
	}
}

func TestReviseWaitsForStaleCompilingRevision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A build that died after marking revision 1 compiling.
	stale, err := f.store.PutArtifact(ctx, &store.Artifact{SessionID: f.sess.ID, Text: baseDeck,
		Origin: deck.OriginRollback, BaseRevision: 0})
	if err != nil {
		t.Fatalf("PutArtifact failed: %v", err)
	}
	if err := f.store.MarkCompiling(ctx, f.sess.ID, stale.Revision); err != nil {
		t.Fatalf("MarkCompiling failed: %v", err)
	}

	f.oracle.Replies = []testutil.Reply{testutil.Patch("3x faster", "4x faster")}
	_, err = f.c.Revise(ctx, f.sess, Request{Feedback: "say 4x"})
	if !errors.Is(err, store.ErrBusy) || !strings.Contains(err.Error(), "slidesmith build") {
		t.Fatalf("Revise error = %v, want ErrBusy naming the build command", err)
	}
	if _, err := f.c.Rollback(ctx, f.sess, 0); !errors.Is(err, store.ErrBusy) {
		t.Errorf("Rollback error = %v, want ErrBusy", err)
	}
	if n := len(f.revisions(t)); n != 2 {
		t.Errorf("revisions = %d, want 2 (no orphan pending rows)", n)
	}
	if f.oracle.Calls() != 0 {
		t.Error("the oracle should not be asked while a build is stuck")
	}

	if _, err := f.c.Validator.Validate(ctx, f.sess, stale, validate.Options{}); err != nil {
		t.Fatalf("finishing revision 1: %v", err)
	}
	got, err := f.c.Revise(ctx, f.sess, Request{Feedback: "say 4x"})
	if err != nil {
		t.Fatalf("Revise after recovery: %v", err)
	}
	if got.Revision != 2 || !strings.Contains(got.Text, "4x faster") {
		t.Errorf("revision=%d text has change=%v", got.Revision, strings.Contains(got.Text, "4x faster"))
	}
}
