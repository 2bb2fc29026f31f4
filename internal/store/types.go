// Package store provides SQLite-backed persistence for sessions, artifact
// revisions and their compile attempts.
package store

import (
	"time"

	"github.com/slidesmith-dev/slidesmith/internal/deck"
)

// Session is one deck-building session: a plan, a figure set and the
// revisions built from them.
type Session struct {
	ID              string
	Title           string
	Language        string
	Theme           string
	TableOfContents bool
	FigureDir       string // read-only figure set
	Dir             string // session artifact directory
	Plan            []byte // JSON snapshot of the plan behind revision 0
	CreatedAt       time.Time
}

// Summary is a row in the session listing.
type Summary struct {
	ID             string
	Title          string
	CreatedAt      time.Time
	Revisions      int
	LatestCompiled int // -1 when nothing has compiled
}

// Artifact is one revision of the deck source.
type Artifact struct {
	SessionID    string
	Revision     int
	Text         string
	Status       deck.Status
	Attempts     int
	Diagnostics  string
	ErrorKind    string
	Origin       deck.Origin
	BaseRevision int // -1 when the revision was not derived from another
	Feedback     string
	OutputPath   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Err rebuilds the error retained by a failed artifact. It always matches
// deck.ErrRepairExhausted and also matches the kind the build failed with.
// It returns nil for artifacts that have not failed.
func (a *Artifact) Err() error {
	if a.Status != deck.StatusFailed {
		return nil
	}
	e := &deck.Error{
		Kind:        deck.ErrRepairExhausted,
		Revision:    a.Revision,
		Diagnostics: a.Diagnostics,
		Msg:         "artifact failed to build",
	}
	if kind := deck.KindFromName(a.ErrorKind); kind != nil && kind != deck.ErrRepairExhausted {
		e.Err = kind
	}
	return e
}

// Attempt is the record of one compiler invocation on a revision.
type Attempt struct {
	Number      int
	Outcome     deck.Outcome
	Diagnostics string
	DurationMs  int64
	CreatedAt   time.Time
}
