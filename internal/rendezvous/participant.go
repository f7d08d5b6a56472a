package rendezvous

import (
	"log/slog"
	"time"

	"github.com/BioHazard786/Warpcall/internal/negotiation"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer; SDP fits comfortably.
	maxMessageSize = 64 * 1024

	sendQueueSize = 256
)

// Participant is one websocket connection to the relay. Role and Room are
// owned by the hub goroutine.
type Participant struct {
	ID     string
	Role   negotiation.Role
	Room   *Room
	Joined time.Time

	hub    *Hub
	conn   *websocket.Conn
	send   chan *signaling.Message
	logger *slog.Logger
}

// ReadPump pumps messages from the websocket connection to the hub. It
// unregisters the participant when the connection ends.
func (p *Participant) ReadPump() {
	defer func() {
		p.hub.unregister(p)
		p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg signaling.Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				p.logger.Debug("participant read failed", "err", err)
			}
			return
		}
		if !p.hub.deliver(inbound{from: p, msg: &msg}) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection. The hub
// closes send when the participant is unregistered.
func (p *Participant) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case message, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteJSON(message); err != nil {
				p.logger.Debug("participant write failed", "type", message.Type, "err", err)
				return
			}

		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
