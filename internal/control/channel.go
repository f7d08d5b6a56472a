// Package control exchanges in-call state between the two peers over a
// WebRTC data channel.
package control

import (
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// sender is the part of *webrtc.DataChannel the Channel writes through.
type sender interface {
	Send(data []byte) error
}

// Config wires a Channel to the local media state and the UI.
type Config struct {
	// LocalState reports the current local mute flags. It is sent whenever
	// the channel opens.
	LocalState func() MediaStatePayload

	OnMediaState func(MediaStatePayload)

	// OnHangup receives the session id the hangup channel was attached with.
	OnHangup func(sessionID string)

	Logger *slog.Logger
}

// Channel is the control endpoint of one call. A new data channel is
// attached for every session; only the latest one is read or written.
type Channel struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	latest  sender
	session string
	dc      sender
	remote  MediaStatePayload
	known   bool
}

func NewChannel(cfg Config) *Channel {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{cfg: cfg, logger: logger.With("component", "control")}
}

// Attach takes over dc as the control channel of session sessionID. Channels
// attached earlier are ignored from then on. It is safe to call from pion's
// OnDataChannel callback.
func (c *Channel) Attach(dc *webrtc.DataChannel, sessionID string) {
	c.attach(dc, sessionID)
	dc.OnOpen(func() {
		c.opened(dc)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.handle(dc, msg.Data)
	})
	dc.OnClose(func() {
		c.closed(dc)
	})
}

func (c *Channel) attach(dc sender, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = dc
	c.session = sessionID
	c.dc = nil
	c.known = false
}

func (c *Channel) opened(dc sender) {
	c.mu.Lock()
	if dc != c.latest {
		c.mu.Unlock()
		c.logger.Debug("ignoring open of a replaced control channel")
		return
	}
	c.dc = dc
	c.mu.Unlock()

	c.logger.Debug("control channel open")
	if err := c.SendMediaState(); err != nil {
		c.logger.Warn("failed to send media state", "err", err)
	}
}

func (c *Channel) closed(dc sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dc == dc {
		c.dc = nil
		c.known = false
	}
}

// SendMediaState pushes the current local mute flags to the partner.
func (c *Channel) SendMediaState() error {
	var state MediaStatePayload
	if c.cfg.LocalState != nil {
		state = c.cfg.LocalState()
	}
	return c.send(TypeMediaState, state)
}

// SendHangup tells the partner the call is ending.
func (c *Channel) SendHangup() error {
	return c.send(TypeHangup, nil)
}

func (c *Channel) send(t string, payload any) error {
	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()
	if dc == nil {
		return ErrChannelNotOpen
	}

	msg, err := NewMessage(t, payload)
	if err != nil {
		return err
	}
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	return dc.Send(data)
}

// RemoteState returns the partner's last announced mute flags and whether
// any have been received on the current channel.
func (c *Channel) RemoteState() (MediaStatePayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote, c.known
}

func (c *Channel) handle(from sender, data []byte) {
	c.mu.Lock()
	current, session := from == c.latest, c.session
	c.mu.Unlock()
	if !current {
		c.logger.Debug("dropping message from a replaced control channel")
		return
	}

	msg, err := Parse(data)
	if err != nil {
		c.logger.Warn("dropping malformed control message", "err", err)
		return
	}

	switch msg.Type {
	case TypeMediaState:
		var state MediaStatePayload
		if err := msg.DecodePayload(&state); err != nil {
			c.logger.Warn("dropping media state", "err", err)
			return
		}
		c.mu.Lock()
		c.remote = state
		c.known = true
		c.mu.Unlock()
		if c.cfg.OnMediaState != nil {
			c.cfg.OnMediaState(state)
		}

	case TypeHangup:
		c.logger.Info("partner hung up", "session", session)
		if c.cfg.OnHangup != nil {
			c.cfg.OnHangup(session)
		}

	default:
		c.logger.Debug("ignoring control message", "type", msg.Type)
	}
}
