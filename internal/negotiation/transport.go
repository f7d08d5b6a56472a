package negotiation

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Transport is the one peer-to-peer connection of a session. The pion
// PeerConnection adapter in internal/peer is the production implementation.
//
// Every method must be safe to call from multiple goroutines: negotiation
// steps run off the coordinator loop while candidates are applied on it.
type Transport interface {
	AddTrack(track webrtc.TrackLocal) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	// OnICECandidate receives every locally gathered candidate; nil marks the
	// end of gathering.
	OnICECandidate(func(candidate *webrtc.ICECandidateInit))
	OnConnectionStateChange(func(state webrtc.PeerConnectionState))
	OnNegotiationNeeded(func())

	Close() error
}

// TransportFactory builds a fresh Transport for a new session. Collaborators
// that report back per session (the control channel) are tagged with
// sessionID.
type TransportFactory func(role Role, sessionID string) (Transport, error)

// Signaler is the outbound half of the signaling link.
type Signaler interface {
	SendDescription(desc webrtc.SessionDescription) error
	SendCandidate(candidate webrtc.ICECandidateInit, targetID string) error

	// SendLeave tells the relay the session in roomID was abandoned locally
	// so both clients are paired afresh.
	SendLeave(roomID string) error
}

// TrackSource provides the local media tracks. Acquire is called once per
// coordinator lifetime; the tracks are attached to every new Transport.
type TrackSource interface {
	Acquire(ctx context.Context) ([]webrtc.TrackLocal, error)
}
