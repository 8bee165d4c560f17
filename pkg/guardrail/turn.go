package guardrail

import "fmt"

// TurnState tracks one guarded model turn inside the synthesis phase.
type TurnState string

const (
	TurnIdle        TurnState = "idle"
	TurnReminding   TurnState = "reminding"
	TurnInvoking    TurnState = "invoking"
	TurnScanning    TurnState = "scanning"
	TurnAuthorizing TurnState = "authorizing"
	TurnExecuting   TurnState = "executing"
	TurnCompleted   TurnState = "completed"
	TurnBlocked     TurnState = "blocked"
)

// Legal transitions for a single synthesis turn. Executing returns to
// Idle for the next turn; Completed and Blocked are terminal.
var turnTransitions = map[TurnState][]TurnState{
	TurnIdle:        {TurnReminding, TurnCompleted},
	TurnReminding:   {TurnInvoking},
	TurnInvoking:    {TurnScanning, TurnCompleted},
	TurnScanning:    {TurnAuthorizing, TurnBlocked, TurnIdle, TurnCompleted},
	TurnAuthorizing: {TurnExecuting, TurnBlocked},
	TurnExecuting:   {TurnAuthorizing, TurnIdle, TurnCompleted},
}

// TurnMachine enforces the per-turn state sequence.
type TurnMachine struct {
	state TurnState
	turns int
}

// NewTurnMachine starts in Idle.
func NewTurnMachine() *TurnMachine {
	return &TurnMachine{state: TurnIdle}
}

// State returns the current state.
func (m *TurnMachine) State() TurnState {
	return m.state
}

// Turns returns how many full turns have started.
func (m *TurnMachine) Turns() int {
	return m.turns
}

// Terminal reports whether the machine has finished.
func (m *TurnMachine) Terminal() bool {
	return m.state == TurnCompleted || m.state == TurnBlocked
}

// Advance moves to the next state, rejecting illegal transitions.
func (m *TurnMachine) Advance(next TurnState) error {
	if m.Terminal() {
		return fmt.Errorf("turn machine is terminal in state %s", m.state)
	}
	for _, allowed := range turnTransitions[m.state] {
		if allowed == next {
			if m.state == TurnIdle && next == TurnReminding {
				m.turns++
			}
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("illegal turn transition %s -> %s", m.state, next)
}
