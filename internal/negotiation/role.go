package negotiation

import "fmt"

// Role is the negotiation role assigned to this client for the lifetime of
// one signaling connection. Only the leader creates offers.
type Role int

const (
	RoleUnknown Role = iota
	RoleLeader
	RoleFollower
)

// Role tokens as they appear in role-assignment messages.
const (
	RoleTokenLeader   = "leader"
	RoleTokenFollower = "follower"
)

// ParseRole converts a role token received from the relay.
func ParseRole(token string) (Role, error) {
	switch token {
	case RoleTokenLeader:
		return RoleLeader, nil
	case RoleTokenFollower:
		return RoleFollower, nil
	default:
		return RoleUnknown, fmt.Errorf("unknown role token %q", token)
	}
}

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return RoleTokenLeader
	case RoleFollower:
		return RoleTokenFollower
	default:
		return "unknown"
	}
}

// Offers reports whether this role may spontaneously initiate an offer.
func (r Role) Offers() bool {
	return r == RoleLeader
}
