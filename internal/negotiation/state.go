package negotiation

import "fmt"

// State is a session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAwaitingRole
	StateAwaitingPeer
	StateNegotiating
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingRole:
		return "awaiting-role"
	case StateAwaitingPeer:
		return "awaiting-peer"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the legal successors of every state. Moving back to
// AwaitingRole is the socket-reconnect reset; moving to Idle is a local
// disconnect.
var transitions = map[State][]State{
	StateIdle:         {StateAwaitingRole},
	StateAwaitingRole: {StateAwaitingPeer, StateIdle},
	StateAwaitingPeer: {StateNegotiating, StateAwaitingRole, StateIdle},
	StateNegotiating:  {StateConnected, StateAwaitingPeer, StateAwaitingRole, StateIdle},
	StateConnected:    {StateAwaitingPeer, StateAwaitingRole, StateIdle},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type stateMachine struct {
	state State
}

// transition moves to the target state. Re-entering the current state is a
// no-op.
func (m *stateMachine) transition(to State) error {
	if m.state == to {
		return nil
	}
	if !CanTransition(m.state, to) {
		return WrapError("transition", ErrIllegalTransition, fmt.Sprintf("%s -> %s", m.state, to))
	}
	m.state = to
	return nil
}

func (m *stateMachine) current() State {
	return m.state
}
