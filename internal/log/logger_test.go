package log

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestAppendAndReadAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".slidesmith")
	l, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	events := []LogEvent{
		{Event: EventSessionCreated, SessionID: "s1"},
		{Event: EventCompileAttempt, SessionID: "s1", Revision: Rev(0), Attempt: 1},
		{Event: EventBuildCompiled, SessionID: "s2", Revision: Rev(0)},
	}
	for _, e := range events {
		if err := l.Append(e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[1].Revision == nil || *got[1].Revision != 0 {
		t.Errorf("revision 0 should survive the round trip, got %v", got[1].Revision)
	}
	if got[0].Time.IsZero() {
		t.Error("Append should stamp the event time")
	}

	s1, err := l.ForSession("s1")
	if err != nil {
		t.Fatalf("ForSession failed: %v", err)
	}
	if len(s1) != 2 {
		t.Errorf("got %d events for s1, want 2", len(s1))
	}
}

func TestReadAllMissingFile(t *testing.T) {
	l, err := NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	got, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d events, want 0", len(got))
	}
}

func TestConcurrentAppend(t *testing.T) {
	l, err := NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = l.Append(LogEvent{Event: EventCompileAttempt, Attempt: n + 1})
		}(i)
	}
	wg.Wait()

	got, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("got %d events, want 20", len(got))
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var l *Logger
	if err := l.Append(LogEvent{Event: EventBuildFailed}); err != nil {
		t.Errorf("nil logger should discard, got %v", err)
	}
}

func TestNewSlogLevel(t *testing.T) {
	var buf bytes.Buffer
	NewSlog(&buf, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug output without --debug: %q", buf.String())
	}
	NewSlog(&buf, true).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug output missing: %q", buf.String())
	}
}
