// Package oracle asks a language model for slide text, compile repairs and
// feedback-driven revisions, and decodes its answers into proposals.
package oracle

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the backend could not be reached or failed
	// server-side. Retried.
	ErrUnavailable = errors.New("oracle unavailable")
	// ErrRateLimited means the backend asked us to slow down. Retried.
	ErrRateLimited = errors.New("oracle rate limited")
	// ErrUnauthorized means the backend rejected our credentials.
	ErrUnauthorized = errors.New("oracle unauthorized")
	// ErrMalformed means the answer could not be decoded into a proposal.
	ErrMalformed = errors.New("malformed oracle response")
)

// Task says what the oracle is being asked to do.
type Task string

const (
	TaskSlideContent Task = "slide_content"
	TaskRepair       Task = "repair"
	TaskRevise       Task = "revise"
)

// Mode is the shape of a proposal.
type Mode string

const (
	ModePatch Mode = "patch"
	ModeFull  Mode = "full"
)

// SlideContext describes the slide whose content is requested.
type SlideContext struct {
	Number  int
	Title   string
	Points  []string
	Notes   string
	Figures []string // captions, or ids when there is no caption
}

// Request is one oracle call. Which fields matter depends on Task.
type Request struct {
	Task     Task
	Language string

	// Slide content.
	DeckTitle string
	Slide     *SlideContext

	// Repair and revise.
	Text        string
	Diagnostics string // full compiler output
	Summary     string // parsed error list
	Feedback    string
	History     []string // earlier feedback rounds, oldest first
	Focus       string   // frame the feedback points at
	PlanSummary string
}

// Proposal is a decoded oracle answer. A patch replaces OldText with
// NewText; a full proposal replaces the whole document, or for slide
// content carries the bullets one per line.
type Proposal struct {
	Mode    Mode
	OldText string
	NewText string
	Message string
	Title   string // slide content only
}

// Oracle proposes text.
type Oracle interface {
	Propose(ctx context.Context, req Request) (Proposal, error)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}
