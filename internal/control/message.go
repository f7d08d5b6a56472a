package control

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Label is the data channel label the leader opens for control traffic.
const Label = "control"

// Message types carried on the control channel.
const (
	TypeMediaState = "media_state"
	TypeHangup     = "hangup"
)

var ErrChannelNotOpen = errors.New("control channel not open")

// Message is the envelope of every control channel message.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

// MediaStatePayload announces which local tracks the sender has muted.
type MediaStatePayload struct {
	AudioMuted bool `msgpack:"audioMuted"`
	VideoMuted bool `msgpack:"videoMuted"`
}

// NewMessage creates a Message with the given type and payload. A nil
// payload produces a bare message.
func NewMessage(t string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Message{Type: t, Payload: b}, nil
}

// DecodePayload decodes the message payload into v.
func (m Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	return msgpack.Unmarshal(m.Payload, v)
}

func Encode(msg Message) ([]byte, error) {
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return data, nil
}

func Parse(data []byte) (Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}
	return msg, nil
}
