package workflows

import "fmt"

// State is a step of a workflow.
type State string

// Verification states, in order.
const (
	StateStart                  State = "START"
	StateQRDecoded              State = "QR_DECODED"
	StateFingerprintsRecomputed State = "FINGERPRINTS_RECOMPUTED"
	StateSignatureChecked       State = "SIGNATURE_CHECKED"
	StateDone                   State = "DONE"
)

// StateMachine enforces state transitions
type StateMachine struct {
	initial            State
	allowedTransitions map[State][]State
}

// NewStateMachine creates a state machine starting at initial with the given
// allowed transitions
func NewStateMachine(initial State, transitions map[State][]State) *StateMachine {
	return &StateMachine{initial: initial, allowedTransitions: transitions}
}

// NewVerificationStateMachine returns the linear verification workflow. There
// are no retries and no way back.
func NewVerificationStateMachine() *StateMachine {
	return NewStateMachine(StateStart, map[State][]State{
		StateStart:                  {StateQRDecoded},
		StateQRDecoded:              {StateFingerprintsRecomputed},
		StateFingerprintsRecomputed: {StateSignatureChecked},
		StateSignatureChecked:       {StateDone},
		StateDone:                   {},
	})
}

// CanTransition checks if a transition is allowed
func (sm *StateMachine) CanTransition(from, to State) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next states for a given state
func (sm *StateMachine) GetAllowedTransitions(from State) []State {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []State{}
	}
	return allowed
}

// Run tracks one pass through the machine. It is not safe for concurrent use;
// each request gets its own.
type Run struct {
	sm      *StateMachine
	current State
	history []State
}

// Start begins a run at the machine's initial state.
func (sm *StateMachine) Start() *Run {
	return &Run{sm: sm, current: sm.initial, history: []State{sm.initial}}
}

// Current returns the state the run is in.
func (r *Run) Current() State { return r.current }

// History returns every state visited, in order.
func (r *Run) History() []State { return append([]State(nil), r.history...) }

// Advance moves the run to next, or fails if the transition is not allowed.
func (r *Run) Advance(next State) error {
	if !r.sm.CanTransition(r.current, next) {
		return fmt.Errorf("invalid transition from %s to %s", r.current, next)
	}
	r.current = next
	r.history = append(r.history, next)
	return nil
}
