package types

// Environment is the discrete surface that agents drive. Implementations
// wrap a control environment and decide how observations become states and
// which actions exist from them.
type Environment interface {
	// Reset brings the environment to the first decision point of a new
	// episode.
	Reset(*EpisodeContext) (State, error)
	// Step applies an action. The reward and terminal flag of the
	// transition are left in the step context.
	Step(Action, *StepContext) (State, error)
}

// State of the system that policies observe
type State interface {
	// Indexed by the Hash
	// Should be deterministic
	Hash() string
	// Actions possible from the state, empty on terminal states
	Actions() []Action
}

// An Action that a policy can take
type Action interface {
	// Index of the action
	// Should be deterministic
	Hash() string
}
