package tui

import "github.com/slidesmith-dev/slidesmith/internal/store"

// historyMsg carries a fresh revision list.
type historyMsg struct {
	revisions []store.Artifact
	err       error
}

// resultMsg reports the outcome of a feedback round or rollback.
type resultMsg struct {
	artifact *store.Artifact
	err      error
}
