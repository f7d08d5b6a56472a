package negotiation

// Status is the externally observable view of the coordinator. Errors are
// reported here instead of being returned across the session boundary.
type Status struct {
	State        State
	Role         Role
	SessionID    string
	RoomID       string
	RemotePeerID string
	Err          error
}
