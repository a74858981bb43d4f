package sim

import "fmt"

// ResolutionError reports a hole or actuator identifier that could not be
// registered with the engine. Fatal to Start and Reset.
type ResolutionError struct {
	Kind   string // "variable", "meter" or "actuator"
	Name   string
	Entity string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("cannot resolve %s %q on %q: %v", e.Kind, e.Name, e.Entity, e.Err)
	}
	return fmt.Sprintf("cannot resolve %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a caller violating the handshake ordering: stepping a
// bridge that is not awaiting an action, two concurrent steps, writing to an
// unregistered actuator. Always a programming error, never retried.
type ProtocolError struct {
	Op     string
	State  BridgeState
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s in state %s: %s", e.Op, e.State, e.Reason)
	}
	return fmt.Sprintf("%s is not valid in state %s", e.Op, e.State)
}

// SimulationCrashed reports that the engine run ended abnormally, or stopped
// signaling altogether. The engine gives no structured detail for domain
// failures, so the cause stays opaque. The episode is lost; only a fresh
// Reset recovers.
type SimulationCrashed struct {
	ExitCode int
	Reason   string
}

func (e *SimulationCrashed) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("simulation crashed: %s (exit code %d)", e.Reason, e.ExitCode)
	}
	return fmt.Sprintf("simulation crashed with exit code %d", e.ExitCode)
}
