package validate

import "fmt"

// Phase is a step of a validation run.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseCompiling Phase = "compiling"
	PhaseRepairing Phase = "repairing"
	PhaseCompiled  Phase = "compiled"
	PhaseFailed    Phase = "failed"
)

func isAllowedTransition(from, to Phase) bool {
	switch from {
	case PhasePending:
		return to == PhaseCompiling || to == PhaseFailed
	case PhaseCompiling:
		return to == PhaseCompiled || to == PhaseRepairing || to == PhaseFailed
	case PhaseRepairing:
		return to == PhaseCompiling || to == PhaseFailed
	default:
		return false
	}
}

// machine tracks the phase of one run and reports every change.
type machine struct {
	phase    Phase
	attempt  int
	onChange func(phase Phase, attempt int)
}

func (m *machine) to(next Phase) error {
	if !isAllowedTransition(m.phase, next) {
		return fmt.Errorf("invalid validation transition %s -> %s", m.phase, next)
	}
	m.phase = next
	if m.onChange != nil {
		m.onChange(next, m.attempt)
	}
	return nil
}
