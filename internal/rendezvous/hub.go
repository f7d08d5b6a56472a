// Package rendezvous is the relay that pairs two clients and forwards their
// signaling messages. It never touches media.
package rendezvous

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/Warpcall/internal/negotiation"
	"github.com/BioHazard786/Warpcall/internal/signaling"
)

type inbound struct {
	from *Participant
	msg  *signaling.Message
}

// Hub is the central brain of the relay. All rooms and participants are
// owned by the Run goroutine.
type Hub struct {
	logger *slog.Logger

	rooms        map[string]*Room
	participants map[*Participant]bool
	waiting      []*Participant

	registerCh   chan *Participant
	unregisterCh chan *Participant
	inboundCh    chan inbound
	done         chan struct{}

	roomCount    atomic.Int64
	waitingCount atomic.Int64
}

// NewHub creates a hub; start it with Run.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:       logger.With("component", "rendezvous"),
		rooms:        make(map[string]*Room),
		participants: make(map[*Participant]bool),
		registerCh:   make(chan *Participant),
		unregisterCh: make(chan *Participant),
		inboundCh:    make(chan inbound),
		done:         make(chan struct{}),
	}
}

// Run processes registrations and messages until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for p := range h.participants {
			close(p.send)
		}
		clear(h.participants)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case p := <-h.registerCh:
			h.participants[p] = true
			h.logger.Info("participant connected", "participant", p.ID, "remote", p.conn.RemoteAddr().String())

		case p := <-h.unregisterCh:
			h.remove(p)

		case in := <-h.inboundCh:
			if h.participants[in.from] {
				h.handle(in.from, in.msg)
			}
		}
	}
}

// Rooms returns the number of paired rooms.
func (h *Hub) Rooms() int { return int(h.roomCount.Load()) }

// Waiting returns the number of participants waiting for a partner.
func (h *Hub) Waiting() int { return int(h.waitingCount.Load()) }

func (h *Hub) register(p *Participant) bool {
	select {
	case h.registerCh <- p:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(p *Participant) {
	select {
	case h.unregisterCh <- p:
	case <-h.done:
	}
}

func (h *Hub) deliver(in inbound) bool {
	select {
	case h.inboundCh <- in:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) handle(p *Participant, msg *signaling.Message) {
	switch msg.Type {
	case signaling.TypeHello:
		h.hello(p, msg.Ack)

	case signaling.TypeSessionDescription:
		partner := h.partnerOf(p)
		if partner == nil {
			h.reject(p, "not paired with a peer")
			return
		}
		var payload signaling.DescriptionPayload
		if err := msg.DecodePayload(&payload); err != nil {
			h.reject(p, "malformed session description")
			return
		}
		payload.SenderID = p.ID
		h.logger.Debug("relaying description", "from", p.ID, "to", partner.ID, "type", payload.Description.Type.String())
		h.sendTo(partner, signaling.TypeSessionDescription, 0, payload)

	case signaling.TypeICECandidate:
		partner := h.partnerOf(p)
		if partner == nil {
			h.reject(p, "not paired with a peer")
			return
		}
		var payload signaling.CandidatePayload
		if err := msg.DecodePayload(&payload); err != nil {
			h.reject(p, "malformed ice candidate")
			return
		}
		if payload.TargetID != "" && payload.TargetID != partner.ID {
			h.reject(p, "unknown candidate target")
			return
		}
		payload.SenderID = p.ID
		payload.TargetID = ""
		h.sendTo(partner, signaling.TypeICECandidate, 0, payload)

	case signaling.TypeLeave:
		var payload signaling.LeavePayload
		if len(msg.Payload) > 0 {
			if err := msg.DecodePayload(&payload); err != nil {
				h.reject(p, "malformed leave")
				return
			}
		}
		h.leave(p, payload.RoomID)

	default:
		h.logger.Warn("unknown message type", "participant", p.ID, "type", msg.Type)
		h.reject(p, "unknown message type "+msg.Type)
	}
}

// hello assigns a role on first contact and replies with it. A participant
// that is neither paired nor waiting enters the pool.
func (h *Hub) hello(p *Participant, ack uint64) {
	if p.Role == negotiation.RoleUnknown {
		p.Role = negotiation.RoleLeader
		if len(h.waiting) > 0 && h.waiting[0].Role == negotiation.RoleLeader {
			p.Role = negotiation.RoleFollower
		}
		h.logger.Info("role assigned", "participant", p.ID, "role", p.Role.String())
	}
	h.sendTo(p, signaling.TypeRoleAssignment, ack, signaling.RolePayload{Role: p.Role.String()})

	if p.Room == nil && !slices.Contains(h.waiting, p) {
		h.enqueue(p)
	}
}

// enqueue pairs p with the longest-waiting participant of the opposite role
// or parks it in the pool.
func (h *Hub) enqueue(p *Participant) {
	i := slices.IndexFunc(h.waiting, func(w *Participant) bool { return w.Role != p.Role })
	if i < 0 {
		h.waiting = append(h.waiting, p)
		h.waitingCount.Store(int64(len(h.waiting)))
		h.logger.Debug("participant waiting", "participant", p.ID, "role", p.Role.String())
		return
	}
	partner := h.waiting[i]
	h.waiting = slices.Delete(h.waiting, i, i+1)
	h.waitingCount.Store(int64(len(h.waiting)))
	h.pair(p, partner)
}

func (h *Hub) pair(a, b *Participant) {
	room := &Room{ID: newRoomID(func(id string) bool {
		_, ok := h.rooms[id]
		return ok
	})}
	if a.Role == negotiation.RoleLeader {
		room.Leader, room.Follower = a, b
	} else {
		room.Leader, room.Follower = b, a
	}
	a.Room, b.Room = room, room
	h.rooms[room.ID] = room
	h.roomCount.Store(int64(len(h.rooms)))

	h.logger.Info("room created", "room", room.ID, "leader", room.Leader.ID, "follower", room.Follower.ID)

	for _, p := range []*Participant{room.Leader, room.Follower} {
		h.sendTo(p, signaling.TypeRoomID, 0, room.ID)
		h.sendTo(p, signaling.TypeRemotePeerID, 0, room.partner(p).ID)
	}
}

// leave dissolves p's room after p abandoned the session locally. Both
// participants go back to the pool. A leave naming an older room is stale
// and ignored.
func (h *Hub) leave(p *Participant, roomID string) {
	room := p.Room
	if room == nil || (roomID != "" && roomID != room.ID) {
		h.logger.Debug("ignoring stale leave", "participant", p.ID, "room", roomID)
		return
	}
	partner := h.closeRoom(p)
	if partner != nil {
		h.sendTo(partner, signaling.TypePeerDisconnected, 0, nil)
		h.enqueue(partner)
	}
	h.enqueue(p)
}

// closeRoom dissolves p's room and returns p's former partner.
func (h *Hub) closeRoom(p *Participant) *Participant {
	room := p.Room
	partner := room.partner(p)
	delete(h.rooms, room.ID)
	h.roomCount.Store(int64(len(h.rooms)))
	p.Room = nil
	if partner != nil {
		partner.Room = nil
	}
	h.logger.Info("room closed", "room", room.ID)
	return partner
}

// remove drops p. Its partner is told and goes back to the pool with its
// role unchanged.
func (h *Hub) remove(p *Participant) {
	if !h.participants[p] {
		return
	}
	delete(h.participants, p)
	close(p.send)

	if i := slices.Index(h.waiting, p); i >= 0 {
		h.waiting = slices.Delete(h.waiting, i, i+1)
		h.waitingCount.Store(int64(len(h.waiting)))
	}

	h.logger.Info("participant disconnected", "participant", p.ID, "connected_for", time.Since(p.Joined).Round(time.Second))

	if p.Room == nil {
		return
	}
	if partner := h.closeRoom(p); partner != nil {
		h.sendTo(partner, signaling.TypePeerDisconnected, 0, nil)
		h.enqueue(partner)
	}
}

func (h *Hub) partnerOf(p *Participant) *Participant {
	if p.Room == nil {
		return nil
	}
	return p.Room.partner(p)
}

func (h *Hub) reject(p *Participant, reason string) {
	h.sendTo(p, signaling.TypeError, 0, signaling.ErrorPayload{Error: reason})
}

// sendTo queues a message for p. A participant whose queue is full misses the
// message rather than stalling the hub.
func (h *Hub) sendTo(p *Participant, msgType string, ack uint64, payload any) {
	msg, err := signaling.NewMessage(msgType, payload)
	if err != nil {
		h.logger.Error("failed to build message", "type", msgType, "err", err)
		return
	}
	msg.Ack = ack
	select {
	case p.send <- msg:
	default:
		h.logger.Warn("send queue full, dropping message", "participant", p.ID, "type", msgType)
	}
}
