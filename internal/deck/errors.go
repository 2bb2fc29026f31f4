// Package deck holds the types shared by every stage of the build pipeline:
// artifact status values and the error taxonomy surfaced to callers.
package deck

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Match them with errors.Is.
var (
	ErrContentUnavailable = errors.New("content unavailable")
	ErrCompileError       = errors.New("compile error")
	ErrRepairExhausted    = errors.New("repair exhausted")
	ErrPatchNotApplicable = errors.New("patch not applicable")
	ErrNoBaseArtifact     = errors.New("no base artifact")
	ErrMissingFigure      = errors.New("missing figure")
)

// Error carries a failure kind plus enough detail for a caller to decide
// whether to retry at a higher level.
type Error struct {
	Kind        error
	Revision    int
	Diagnostics string
	Msg         string
	Err         error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Revision >= 0 {
		msg = fmt.Sprintf("revision %d: %s", e.Revision, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds an Error of the given kind. Revision -1 means the failure
// happened before any revision existed.
func Errorf(kind error, revision int, format string, args ...any) *Error {
	return &Error{Kind: kind, Revision: revision, Msg: fmt.Sprintf(format, args...)}
}

// WithDiagnostics returns a copy of e carrying the given diagnostic text.
func (e *Error) WithDiagnostics(diag string) *Error {
	c := *e
	c.Diagnostics = diag
	return &c
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

var kindNames = []struct {
	kind error
	name string
}{
	{ErrContentUnavailable, "ContentUnavailable"},
	{ErrCompileError, "CompileError"},
	{ErrRepairExhausted, "RepairExhausted"},
	{ErrPatchNotApplicable, "PatchNotApplicable"},
	{ErrNoBaseArtifact, "NoBaseArtifact"},
	{ErrMissingFigure, "MissingFigure"},
}

// KindName returns the taxonomy name of err, or "" when err is not one of
// the known kinds.
func KindName(err error) string {
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return ""
}

// KindFromName is the inverse of KindName. Unknown names return nil.
func KindFromName(name string) error {
	for _, k := range kindNames {
		if k.name == name {
			return k.kind
		}
	}
	return nil
}

// Diagnostics extracts the diagnostic text carried by err, if any.
func Diagnostics(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Diagnostics
	}
	return ""
}
