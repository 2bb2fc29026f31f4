package deck

// Status is the build status of an artifact revision.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompiling Status = "compiling"
	StatusCompiled  Status = "compiled"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether an artifact in this status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompiled || s == StatusFailed
}

// Origin records what produced a revision.
type Origin string

const (
	OriginGenerate Origin = "generate"
	OriginRevise   Origin = "revise"
	OriginRollback Origin = "rollback"
)

// Outcome of a single compiler invocation.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)
