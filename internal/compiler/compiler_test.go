package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

// fakeEngine writes an executable shell script standing in for pdflatex.
// It fails on sources containing BROKEN and otherwise writes deck.pdf.
func fakeEngine(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakelatex")
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("writing fake engine: %v", err)
	}
	return path
}

const okOrBroken = `src="$3"
if grep -q BROKEN "$src"; then
  echo "! Undefined control sequence."
  echo "l.7 \\BROKEN"
  exit 1
fi
echo "%PDF-1.5" > deck.pdf
`

func TestCompileSuccessCopiesFigures(t *testing.T) {
	figures := t.TempDir()
	if err := os.WriteFile(filepath.Join(figures, "loss.png"), []byte("png"), 0644); err != nil {
		t.Fatalf("writing figure: %v", err)
	}
	work := filepath.Join(t.TempDir(), "rev-000", "attempt-1")

	c := New(Options{Timeout: 10 * time.Second, Passes: 2})
	res, err := c.Compile(context.Background(), Job{
		Text:      `\documentclass{beamer}\begin{document}\end{document}`,
		WorkDir:   work,
		FigureDir: figures,
		Engine:    fakeEngine(t, okOrBroken),
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success, diagnostics: %s", res.Diagnostics)
	}
	if res.OutputPath != filepath.Join(work, "deck.pdf") {
		t.Errorf("OutputPath = %q", res.OutputPath)
	}
	if _, err := os.Stat(filepath.Join(work, "images", "loss.png")); err != nil {
		t.Errorf("figure not copied into workdir: %v", err)
	}
}

func TestCompileFailureIsResultNotError(t *testing.T) {
	c := New(Options{Timeout: 10 * time.Second})
	res, err := c.Compile(context.Background(), Job{
		Text:    "BROKEN",
		WorkDir: t.TempDir(),
		Engine:  fakeEngine(t, okOrBroken),
	})
	if err != nil {
		t.Fatalf("compile failures should not be errors: %v", err)
	}
	if res.OK {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Diagnostics, "! Undefined control sequence.") {
		t.Errorf("diagnostics should carry engine output verbatim: %q", res.Diagnostics)
	}
}

func TestCompileTimeout(t *testing.T) {
	c := New(Options{Timeout: 200 * time.Millisecond})
	res, err := c.Compile(context.Background(), Job{
		Text:    "x",
		WorkDir: t.TempDir(),
		Engine:  fakeEngine(t, "exec sleep 5\n"),
	})
	if err != nil {
		t.Fatalf("timeouts should be reported as compile failures: %v", err)
	}
	if res.OK || !res.TimedOut {
		t.Fatalf("expected timed out result, got %+v", res)
	}
	if !strings.HasPrefix(res.Diagnostics, "compile timed out after") {
		t.Errorf("Diagnostics = %q", res.Diagnostics)
	}
}

func TestCompileNoPDF(t *testing.T) {
	c := New(Options{Timeout: 10 * time.Second})
	res, err := c.Compile(context.Background(), Job{
		Text:    "x",
		WorkDir: t.TempDir(),
		Engine:  fakeEngine(t, "exit 0\n"),
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if res.OK {
		t.Error("a clean exit without a PDF is a failure")
	}
}

func TestCompileMissingEngineIsAdapterError(t *testing.T) {
	c := New(Options{})
	_, err := c.Compile(context.Background(), Job{
		Text:    "x",
		WorkDir: t.TempDir(),
		Engine:  filepath.Join(t.TempDir(), "no-such-engine"),
	})
	if err == nil {
		t.Error("expected adapter error for missing engine")
	}
}

func TestCompileWaitsForSlot(t *testing.T) {
	c := New(Options{MaxParallel: 1})
	if err := c.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer c.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Compile(ctx, Job{Text: "x", WorkDir: t.TempDir(), Engine: "pdflatex"})
	if err == nil {
		t.Error("expected error when no compile slot frees up before the deadline")
	}
}

func TestTailKeepsWholeRunes(t *testing.T) {
	short := "! LaTeX Error: 未找到字体"
	if tail(short) != short {
		t.Error("short output should be kept as is")
	}

	// Three-byte runes, offset by one ASCII byte so the raw cut point lands
	// inside a rune.
	long := "x" + strings.Repeat("字", maxDiagnosticBytes/3+10)
	got := tail(long)
	if !utf8.ValidString(got) {
		t.Fatal("truncated output is not valid UTF-8")
	}
	body := strings.TrimPrefix(got, "[output truncated]\n")
	if len(body) > maxDiagnosticBytes || !strings.HasSuffix(long, body) {
		t.Errorf("kept %d bytes, want a suffix of at most %d", len(body), maxDiagnosticBytes)
	}
}
