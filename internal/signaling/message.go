package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Message is the envelope of every websocket frame exchanged with the relay.
type Message struct {
	Type    string          `json:"type"`
	Ack     uint64          `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	TypeHello              = "hello"
	TypeRoleAssignment     = "role-assignment"
	TypeRoomID             = "room-id"
	TypeRemotePeerID       = "remote-peer-id"
	TypeSessionDescription = "session-description"
	TypeICECandidate       = "ice-candidate"
	TypePeerDisconnected   = "peer-disconnected"
	TypeLeave              = "leave"
	TypeError              = "error"
)

// RolePayload carries the role chosen by the relay in reply to hello.
type RolePayload struct {
	Role string `json:"role"`
}

// DescriptionPayload carries an offer or answer. SenderID is filled in by the
// relay on forwarding.
type DescriptionPayload struct {
	Description webrtc.SessionDescription `json:"description"`
	SenderID    string                    `json:"senderId,omitempty"`
}

// CandidatePayload carries one trickled candidate. A nil Candidate marks the
// end of candidates.
type CandidatePayload struct {
	Candidate *webrtc.ICECandidateInit `json:"candidate"`
	SenderID  string                   `json:"senderId,omitempty"`
	TargetID  string                   `json:"targetId,omitempty"`
}

// LeavePayload asks the relay to dissolve the client's room. An empty RoomID
// means whatever room the client is in.
type LeavePayload struct {
	RoomID string `json:"roomId,omitempty"`
}

// ErrorPayload represents error messages from the relay.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage builds an envelope around payload. A nil payload is omitted.
func NewMessage(msgType string, payload any) (*Message, error) {
	msg := &Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	msg.Payload = data
	return msg, nil
}

// DecodePayload unmarshals the payload into v.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}
