package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/slidesmith-dev/slidesmith/internal/compiler"
	"github.com/slidesmith-dev/slidesmith/internal/deck"
	"github.com/slidesmith-dev/slidesmith/internal/oracle"
	"github.com/slidesmith-dev/slidesmith/internal/store"
	"github.com/slidesmith-dev/slidesmith/internal/testutil"
	"github.com/slidesmith-dev/slidesmith/internal/theme"
)

const goodDeck = `\documentclass{beamer}
\begin{document}
\begin{frame}
\frametitle{Results}
\begin{itemize}
\item Faster
\end{itemize}
\includegraphics[width=0.8\linewidth]{images/loss.png}
\end{frame}
\end{document}
`

var brokenDeck = strings.Replace(goodDeck, `\item Faster`, `\itemm Faster`, 1)

type fixture struct {
	v        *Validator
	store    *store.Store
	compiler *testutil.Compiler
	oracle   *testutil.Oracle
	sess     *store.Session
}

func newFixture(t *testing.T, comp *testutil.Compiler) *fixture {
	t.Helper()
	cat, err := theme.Default()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	st := testutil.NewStore(t)
	sess, err := st.CreateSession(context.Background(), &store.Session{
		Title:     "Deck",
		Language:  "en",
		Theme:     "Madrid",
		FigureDir: testutil.Figures(t, "loss.png"),
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	orc := &testutil.Oracle{}
	return &fixture{
		v:        &Validator{Store: st, Compiler: comp, Oracle: orc, Catalog: cat, MaxAttempts: 3},
		store:    st,
		compiler: comp,
		oracle:   orc,
		sess:     sess,
	}
}

func (f *fixture) put(t *testing.T, text string) *store.Artifact {
	t.Helper()
	a, err := f.store.PutArtifact(context.Background(), &store.Artifact{
		SessionID: f.sess.ID, Text: text, Origin: deck.OriginGenerate, BaseRevision: -1,
	})
	if err != nil {
		t.Fatalf("PutArtifact failed: %v", err)
	}
	return a
}

func TestValidateCompilesFirstTime(t *testing.T) {
	f := newFixture(t, &testutil.Compiler{})
	art := f.put(t, goodDeck)

	got, err := f.v.Validate(context.Background(), f.sess, art, Options{})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.Status != deck.StatusCompiled || got.Attempts != 1 {
		t.Errorf("status=%s attempts=%d, want compiled after 1", got.Status, got.Attempts)
	}
	if got.OutputPath == "" {
		t.Error("compiled revision should record its output path")
	}
	jobs := f.compiler.Jobs()
	if len(jobs) != 1 || jobs[0].Engine != "pdflatex" || !strings.HasSuffix(jobs[0].WorkDir, "rev-000/attempt-1") {
		t.Errorf("unexpected compile jobs: %+v", jobs)
	}
}

func TestValidateIsIdempotentOnCompiled(t *testing.T) {
	f := newFixture(t, &testutil.Compiler{})
	art := f.put(t, goodDeck)

	first, err := f.v.Validate(context.Background(), f.sess, art, Options{})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	second, err := f.v.Validate(context.Background(), f.sess, first, Options{})
	if err != nil {
		t.Fatalf("second Validate failed: %v", err)
	}
	if f.compiler.Calls() != 1 {
		t.Errorf("compiler calls = %d, want 1", f.compiler.Calls())
	}
	if second.Attempts != first.Attempts || second.Text != first.Text {
		t.Error("validating a compiled revision must not change it")
	}
}

func TestValidateForceRecheckFailure(t *testing.T) {
	comp := &testutil.Compiler{}
	f := newFixture(t, comp)
	art, err := f.v.Validate(context.Background(), f.sess, f.put(t, goodDeck), Options{})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	comp.Fn = func(compiler.Job) compiler.Result { return compiler.Result{Diagnostics: "! Emergency stop."} }
	_, err = f.v.Validate(context.Background(), f.sess, art, Options{Force: true})
	if !errors.Is(err, deck.ErrCompileError) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	if deck.Diagnostics(err) != "! Emergency stop." {
		t.Errorf("diagnostics = %q", deck.Diagnostics(err))
	}

	stored, err := f.store.GetRevision(context.Background(), f.sess.ID, art.Revision)
	if err != nil {
		t.Fatalf("GetRevision failed: %v", err)
	}
	if stored.Status != deck.StatusCompiled || stored.Attempts != 1 {
		t.Errorf("forced recheck changed the stored revision: %+v", stored)
	}
}

func TestValidateRepairsFromDiagnostics(t *testing.T) {
	f := newFixture(t, testutil.FailWhenContains(`\itemm`))
	f.oracle.Replies = []testutil.Reply{testutil.Patch(`\itemm Faster`, `\item Faster`)}

	var phases []Phase
	got, err := f.v.Validate(context.Background(), f.sess, f.put(t, brokenDeck), Options{
		Progress: func(p Phase, attempt int) { phases = append(phases, p) },
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.Status != deck.StatusCompiled || got.Attempts != 2 || got.Revision != 0 {
		t.Errorf("status=%s attempts=%d rev=%d, want compiled rev 0 after 2", got.Status, got.Attempts, got.Revision)
	}
	if got.Text != goodDeck {
		t.Errorf("repaired text not stored:\n%s", got.Text)
	}

	reqs := f.oracle.Requests()
	if len(reqs) != 1 || reqs[0].Task != oracle.TaskRepair {
		t.Fatalf("unexpected oracle requests: %+v", reqs)
	}
	if !strings.Contains(reqs[0].Diagnostics, "! Undefined control sequence.") || !strings.Contains(reqs[0].Summary, "line 1") {
		t.Errorf("repair request should carry full diagnostics and the summary: %+v", reqs[0])
	}

	attempts, err := f.store.ListAttempts(context.Background(), f.sess.ID, 0)
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(attempts) != 2 || attempts[0].Outcome != deck.OutcomeError || attempts[1].Outcome != deck.OutcomeOK {
		t.Errorf("unexpected attempt history: %+v", attempts)
	}

	want := []Phase{PhaseCompiling, PhaseRepairing, PhaseCompiling, PhaseCompiled}
	if fmt.Sprint(phases) != fmt.Sprint(want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}

func TestValidateRepairBound(t *testing.T) {
	f := newFixture(t, testutil.AlwaysFail("! LaTeX Error: Something's wrong--perhaps a missing \\item."))
	n := 0
	f.oracle.Fn = func(req oracle.Request) (oracle.Proposal, error) {
		n++
		return oracle.Proposal{Mode: oracle.ModeFull, NewText: fmt.Sprintf("%s%% fix %d\n", req.Text, n)}, nil
	}

	got, err := f.v.Validate(context.Background(), f.sess, f.put(t, goodDeck), Options{})
	if !errors.Is(err, deck.ErrRepairExhausted) {
		t.Fatalf("expected RepairExhausted, got %v", err)
	}
	if f.compiler.Calls() != 3 {
		t.Errorf("compiler calls = %d, want exactly 3", f.compiler.Calls())
	}
	if f.oracle.Calls() != 2 {
		t.Errorf("oracle calls = %d, want 2 (no repair after the last failure)", f.oracle.Calls())
	}
	if got.Status != deck.StatusFailed || got.Attempts != 3 {
		t.Errorf("status=%s attempts=%d", got.Status, got.Attempts)
	}
	wantDiag := "! LaTeX Error: Something's wrong--perhaps a missing \\item."
	if deck.Diagnostics(err) != wantDiag || got.Diagnostics != wantDiag {
		t.Errorf("last diagnostics should be carried verbatim, got %q", deck.Diagnostics(err))
	}

	again, err := f.v.Validate(context.Background(), f.sess, got, Options{})
	if !errors.Is(err, deck.ErrRepairExhausted) || again.Status != deck.StatusFailed {
		t.Errorf("revalidating a failed revision: status=%s err=%v", again.Status, err)
	}
	if f.compiler.Calls() != 3 {
		t.Error("a failed revision must not be recompiled")
	}
}

func TestValidateMissingFigureSkipsCompiler(t *testing.T) {
	f := newFixture(t, &testutil.Compiler{})
	text := strings.Replace(goodDeck, "images/loss.png", "images/missing.png", 1)

	got, err := f.v.Validate(context.Background(), f.sess, f.put(t, text), Options{})
	if !errors.Is(err, deck.ErrMissingFigure) {
		t.Fatalf("expected MissingFigure, got %v", err)
	}
	if f.compiler.Calls() != 0 {
		t.Error("compiler must not run when a figure is missing")
	}
	if got.Status != deck.StatusFailed || got.ErrorKind != "MissingFigure" {
		t.Errorf("status=%s kind=%s", got.Status, got.ErrorKind)
	}
	if !errors.Is(got.Err(), deck.ErrMissingFigure) {
		t.Error("stored failure should keep its kind")
	}
}

func TestValidateRepairFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply testutil.Reply
		want  error
	}{
		{"patch does not match", testutil.Patch(`\nowhere`, "x"), deck.ErrPatchNotApplicable},
		{"oracle down", testutil.Fail(oracle.ErrUnavailable), deck.ErrContentUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testutil.FailWhenContains(`\itemm`))
			f.oracle.Replies = []testutil.Reply{tt.reply}

			got, err := f.v.Validate(context.Background(), f.sess, f.put(t, brokenDeck), Options{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if got.Status != deck.StatusFailed {
				t.Errorf("status = %s, want failed", got.Status)
			}
			if !strings.Contains(got.Diagnostics, "! Undefined control sequence.") {
				t.Errorf("failure should keep the compiler diagnostics, got %q", got.Diagnostics)
			}
			if f.compiler.Calls() != 1 {
				t.Errorf("compiler calls = %d, want 1", f.compiler.Calls())
			}
		})
	}
}

func TestValidateCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	comp := &testutil.Compiler{Fn: func(compiler.Job) compiler.Result {
		cancel()
		return compiler.Result{Diagnostics: "! Interrupted."}
	}}
	f := newFixture(t, comp)

	got, err := f.v.Validate(ctx, f.sess, f.put(t, goodDeck), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got.Status != deck.StatusFailed || !strings.HasPrefix(got.Diagnostics, "canceled:") {
		t.Errorf("status=%s diagnostics=%q", got.Status, got.Diagnostics)
	}
	if _, err := f.store.GetLatestCompiled(context.Background(), f.sess.ID); !errors.Is(err, store.ErrNotFound) {
		t.Error("a canceled build must never be published")
	}
}

func TestEngineOverride(t *testing.T) {
	f := newFixture(t, &testutil.Compiler{})
	f.v.Engines = map[string]string{"en": "lualatex"}

	if _, err := f.v.Validate(context.Background(), f.sess, f.put(t, goodDeck), Options{}); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got := f.compiler.Jobs()[0].Engine; got != "lualatex" {
		t.Errorf("engine = %q, want lualatex", got)
	}
}

func TestValidateSucceedsOnLastAttempt(t *testing.T) {
	calls := 0
	f := newFixture(t, &testutil.Compiler{Fn: func(compiler.Job) compiler.Result {
		calls++
		if calls < 3 {
			return compiler.Result{Diagnostics: "! Missing $ inserted.\nl.7 x_1"}
		}
		return compiler.Result{OK: true}
	}})
	f.oracle.Fn = func(req oracle.Request) (oracle.Proposal, error) {
		return oracle.Proposal{Mode: oracle.ModeFull, NewText: req.Text + "% retry\n"}, nil
	}

	got, err := f.v.Validate(context.Background(), f.sess, f.put(t, goodDeck), Options{})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.Status != deck.StatusCompiled || got.Attempts != 3 || got.Revision != 0 {
		t.Errorf("status=%s attempts=%d rev=%d, want compiled rev 0 after 3", got.Status, got.Attempts, got.Revision)
	}
	if f.oracle.Calls() != 2 {
		t.Errorf("oracle calls = %d, want 2", f.oracle.Calls())
	}
}
