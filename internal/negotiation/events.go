package negotiation

import (
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// event is anything the coordinator loop consumes.
type event interface{}

type (
	linkUp           struct{}
	linkLost         struct{}
	peerLost         struct{}
	localDisconnect  struct{}
	negotiateRequest struct{}

	roleAssigned struct{ role Role }
	roomAssigned struct{ roomID string }
	peerMatched  struct{ peerID string }

	remoteDescription struct{ desc webrtc.SessionDescription }
	remoteCandidate   struct{ candidate *webrtc.ICECandidateInit }
)

// Events raised on behalf of a specific session. The loop drops them when
// the session is no longer current.
type (
	stepDone struct {
		session uuid.UUID
		step    stepKind
		desc    webrtc.SessionDescription
		err     error
	}
	localCandidate struct {
		session   uuid.UUID
		candidate *webrtc.ICECandidateInit
	}
	connectionState struct {
		session uuid.UUID
		state   webrtc.PeerConnectionState
	}
	negotiationNeeded struct{ session uuid.UUID }
	windowExpired     struct{ session uuid.UUID }
	peerHangup        struct{ session string }
)

// inspect runs fn on the loop goroutine. Only tests post it; it lets them
// read loop-owned state without a data race.
type inspect struct {
	fn   func(*Coordinator)
	done chan struct{}
}

type stepKind int

const (
	stepOffer stepKind = iota
	stepRemote
	stepAnswer
)

func (k stepKind) String() string {
	switch k {
	case stepOffer:
		return "offer"
	case stepRemote:
		return "remote-description"
	case stepAnswer:
		return "answer"
	default:
		return "unknown"
	}
}
