// Package log records build and revision events as JSON lines in
// .slidesmith/log.jsonl, and builds the slog handlers used for diagnostics
// on stderr.
package log

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	EventSessionCreated    = "session_created"
	EventGenerateStarted   = "generate_started"
	EventContentDegraded   = "content_degraded"
	EventCompileAttempt    = "compile_attempt"
	EventCompileFailed     = "compile_failed"
	EventRepairApplied     = "repair_applied"
	EventBuildCompiled     = "build_compiled"
	EventBuildFailed       = "build_failed"
	EventRevisionRequested = "revision_requested"
	EventRevisionRejected  = "revision_rejected"
	EventRollbackRequested = "rollback_requested"
)

// LogEvent is one line of log.jsonl.
type LogEvent struct {
	Time       time.Time      `json:"time"`
	Event      string         `json:"event"`
	SessionID  string         `json:"session,omitempty"`
	Revision   *int           `json:"revision,omitempty"`
	Attempt    int            `json:"attempt,omitempty"`
	Slide      int            `json:"slide,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Mode       string         `json:"mode,omitempty"`
	Feedback   string         `json:"feedback,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Rev returns a pointer to n for LogEvent.Revision, so revision 0 is still
// written.
func Rev(n int) *int { return &n }

// Logger appends events to a single file. It is safe for concurrent use;
// a nil Logger drops everything.
type Logger struct {
	mu   sync.Mutex
	path string
}

// NewLogger returns a Logger for log.jsonl inside stateDir, creating the
// directory if needed. An existing log is appended to.
func NewLogger(stateDir string) (*Logger, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", stateDir, err)
	}
	return &Logger{path: filepath.Join(stateDir, "log.jsonl")}, nil
}

func (l *Logger) Path() string { return l.path }

// Append stamps the event with the current UTC time when it has none and
// writes it as one line.
func (l *Logger) Append(ev LogEvent) error {
	if l == nil {
		return nil
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	// Encode writes the trailing newline, so each event lands in one write.
	encErr := json.NewEncoder(f).Encode(ev)
	closeErr := f.Close()
	if encErr != nil {
		return fmt.Errorf("writing %s event: %w", ev.Event, encErr)
	}
	return closeErr
}

// ReadAll returns every recorded event in write order. A log that does not
// exist yet reads as empty.
func (l *Logger) ReadAll() ([]LogEvent, error) {
	return l.read(func(LogEvent) bool { return true })
}

// ForSession returns the events recorded for one session, in order.
func (l *Logger) ForSession(sessionID string) ([]LogEvent, error) {
	return l.read(func(ev LogEvent) bool { return ev.SessionID == sessionID })
}

func (l *Logger) read(keep func(LogEvent) bool) ([]LogEvent, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []LogEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	out := []LogEvent{}
	dec := json.NewDecoder(f)
	for n := 1; ; n++ {
		var ev LogEvent
		err := dec.Decode(&ev)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decoding event %d of %s: %w", n, l.path, err)
		}
		if keep(ev) {
			out = append(out, ev)
		}
	}
}
