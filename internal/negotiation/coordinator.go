// Package negotiation drives the offer/answer exchange between this client and
// exactly one remote peer.
//
// All session state is owned by a single event loop (Coordinator.Run). The
// public On* methods only enqueue events, so they may be called from the
// signaling read goroutine and from pion callbacks alike. Transport steps
// that can block run on their own goroutine and report back with a
// completion event tagged with the session id; completions for a session that
// has since been torn down are discarded.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

const (
	DefaultNegotiationTimeout = 15 * time.Second

	eventQueueSize = 64
)

// Config wires a Coordinator to its collaborators.
type Config struct {
	Transports TransportFactory
	Signaler   Signaler

	// Media is optional. Without it sessions carry no local tracks.
	Media TrackSource

	// NegotiationTimeout bounds how long a session may stay in Negotiating
	// after a negotiation error before it is abandoned.
	NegotiationTimeout time.Duration

	Logger   *slog.Logger
	OnStatus func(Status)
}

// session is one negotiation lifetime with one remote peer.
type session struct {
	id            uuid.UUID
	remotePeerID  string
	roomID        string
	transport     Transport
	offerPending  bool
	remotePending bool
	window        *time.Timer
}

// Coordinator owns the session lifecycle. Create it with New and start it
// with Run.
type Coordinator struct {
	transports TransportFactory
	signaler   Signaler
	media      TrackSource
	timeout    time.Duration
	logger     *slog.Logger
	onStatus   func(Status)

	events chan event
	done   chan struct{}

	statusMu sync.RWMutex
	status   Status

	// Owned by the Run goroutine.
	machine       stateMachine
	role          Role
	roomID        string
	session       *session
	buffer        *CandidateBuffer
	tracks        []webrtc.TrackLocal
	queuedPeer    *string
	queuedSignals []event
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Transports == nil {
		return nil, errors.New("transport factory cannot be nil")
	}
	if cfg.Signaler == nil {
		return nil, errors.New("signaler cannot be nil")
	}
	timeout := cfg.NegotiationTimeout
	if timeout <= 0 {
		timeout = DefaultNegotiationTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		transports: cfg.Transports,
		signaler:   cfg.Signaler,
		media:      cfg.Media,
		timeout:    timeout,
		logger:     logger.With("component", "negotiation"),
		onStatus:   cfg.OnStatus,
		events:     make(chan event, eventQueueSize),
		done:       make(chan struct{}),
		buffer:     NewCandidateBuffer(),
	}, nil
}

// Run acquires local media once and then processes events until ctx is
// cancelled. The live session, if any, is torn down on exit.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)

	if c.media != nil {
		tracks, err := c.media.Acquire(ctx)
		if err != nil {
			c.report(NewError("acquire media", ErrDevice, err))
		} else {
			c.tracks = tracks
			c.logger.Debug("local media acquired", "tracks", len(tracks))
		}
	}

	for {
		select {
		case <-ctx.Done():
			c.localDisconnect()
			return ctx.Err()
		case ev := <-c.events:
			c.dispatch(ev)
		}
	}
}

// Status returns the most recently published status.
func (c *Coordinator) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

func (c *Coordinator) OnLinkUp() { c.post(linkUp{}) }
func (c *Coordinator) OnRoleAssigned(role Role) { c.post(roleAssigned{role: role}) }
func (c *Coordinator) OnRoomID(roomID string) { c.post(roomAssigned{roomID: roomID}) }
func (c *Coordinator) OnPeerMatched(peerID string) { c.post(peerMatched{peerID: peerID}) }
func (c *Coordinator) OnPeerLost() { c.post(peerLost{}) }

// OnPeerHangup reports that the partner of session sessionID ended the call.
// It is ignored once that session is gone.
func (c *Coordinator) OnPeerHangup(sessionID string) { c.post(peerHangup{session: sessionID}) }

func (c *Coordinator) OnLocalDisconnect() { c.post(localDisconnect{}) }
func (c *Coordinator) OnLinkLost() { c.post(linkLost{}) }
func (c *Coordinator) Negotiate() { c.post(negotiateRequest{}) }

func (c *Coordinator) OnRemoteDescription(desc webrtc.SessionDescription) {
	c.post(remoteDescription{desc: desc})
}

// OnRemoteCandidate accepts a candidate from the remote peer. nil is the
// end-of-candidates marker.
func (c *Coordinator) OnRemoteCandidate(candidate *webrtc.ICECandidateInit) {
	c.post(remoteCandidate{candidate: candidate})
}

func (c *Coordinator) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Coordinator) dispatch(ev event) {
	switch ev := ev.(type) {
	case linkUp:
		c.linkUp()
	case roleAssigned:
		c.roleAssigned(ev.role)
	case roomAssigned:
		c.roomID = ev.roomID
		c.publish(nil)
	case peerMatched:
		c.peerMatched(ev.peerID)
	case negotiateRequest:
		c.negotiate()
	case remoteDescription:
		c.remoteDescription(ev)
	case remoteCandidate:
		c.remoteCandidate(ev)
	case peerLost:
		c.peerLost()
	case peerHangup:
		if s := c.session; s != nil && s.id.String() == ev.session {
			c.peerLost()
		}
	case localDisconnect:
		c.localDisconnect()
	case linkLost:
		c.report(WrapError("signaling", ErrLinkLost, "reconnect attempts exhausted"))
		c.localDisconnect()
	case stepDone:
		c.stepDone(ev)
	case localCandidate:
		c.localCandidate(ev)
	case connectionState:
		c.connectionState(ev)
	case negotiationNeeded:
		if c.current(ev.session) != nil {
			c.negotiate()
		}
	case windowExpired:
		c.windowExpired(ev.session)
	case inspect:
		ev.fn(c)
		close(ev.done)
	}
}

func (c *Coordinator) linkUp() {
	if c.machine.current() != StateIdle {
		// A fresh socket gets a fresh role; nothing survives a reconnect.
		c.logger.Info("signaling reconnected, resetting session")
		c.teardown("socket reconnected")
		c.clearConnectionState()
	}
	c.transition(StateAwaitingRole)
	c.publish(nil)
}

func (c *Coordinator) roleAssigned(role Role) {
	if role == RoleUnknown {
		c.report(WrapError("assign role", ErrNegotiation, "empty role"))
		return
	}
	if c.machine.current() == StateIdle {
		c.report(WrapError("assign role", ErrNegotiation, "role assigned while idle"))
		return
	}
	switch c.role {
	case role:
		c.logger.Debug("duplicate role assignment ignored", "role", role)
		return
	case RoleUnknown:
	default:
		c.report(WrapError("assign role", ErrRoleConflict, fmt.Sprintf("have %s, got %s", c.role, role)))
		return
	}

	c.role = role
	c.logger.Info("role assigned", "role", role)
	c.transition(StateAwaitingPeer)
	c.publish(nil)

	if c.queuedPeer != nil {
		peerID := *c.queuedPeer
		queued := c.queuedSignals
		c.queuedPeer = nil
		c.queuedSignals = nil
		c.peerMatched(peerID)
		for _, ev := range queued {
			c.dispatch(ev)
		}
	}
}

func (c *Coordinator) peerMatched(peerID string) {
	switch {
	case c.machine.current() == StateIdle:
		c.report(WrapError("match peer", ErrNegotiation, "peer matched while idle"))
		return
	case c.role == RoleUnknown:
		c.logger.Debug("peer matched before role, queueing", "peer", peerID)
		c.queuedPeer = &peerID
		c.queuedSignals = nil
		return
	case c.session != nil:
		c.report(WrapError("match peer", ErrNegotiation, "session already active with "+c.session.remotePeerID))
		return
	}

	id := uuid.New()
	transport, err := c.transports(c.role, id.String())
	if err != nil {
		c.report(NewError("create transport", ErrNegotiation, err))
		return
	}
	for _, track := range c.tracks {
		if err := transport.AddTrack(track); err != nil {
			_ = transport.Close()
			c.report(NewError("attach track", ErrNegotiation, err))
			return
		}
	}

	s := &session{
		id:           id,
		remotePeerID: peerID,
		roomID:       c.roomID,
		transport:    transport,
	}
	transport.OnICECandidate(func(candidate *webrtc.ICECandidateInit) {
		c.post(localCandidate{session: id, candidate: candidate})
	})
	transport.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.post(connectionState{session: id, state: state})
	})
	transport.OnNegotiationNeeded(func() {
		c.post(negotiationNeeded{session: id})
	})

	c.session = s
	c.logger.Info("peer matched", "peer", peerID, "session", id, "role", c.role, "tracks", len(c.tracks))
	c.transition(StateNegotiating)
	c.publish(nil)

	if c.role.Offers() {
		c.negotiate()
	}
}

func (c *Coordinator) negotiate() {
	s := c.session
	switch {
	case s == nil:
		c.report(WrapError("negotiate", ErrNegotiation, "no active session"))
		return
	case !c.role.Offers():
		c.logger.Debug("follower does not initiate offers", "session", s.id)
		return
	case s.offerPending:
		c.logger.Debug("offer already pending", "session", s.id)
		return
	}

	s.offerPending = true
	c.runStep(s, stepOffer, func(t Transport) (webrtc.SessionDescription, error) {
		offer, err := t.CreateOffer()
		if err != nil {
			return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
		}
		if err := t.SetLocalDescription(offer); err != nil {
			return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
		}
		return offer, nil
	})
}

func (c *Coordinator) remoteDescription(ev remoteDescription) {
	s := c.session
	if s == nil {
		if c.queuedPeer != nil {
			c.queuedSignals = append(c.queuedSignals, ev)
			return
		}
		c.report(WrapError("remote description", ErrNegotiation, "no active session in state "+c.machine.current().String()))
		return
	}

	desc := ev.desc
	switch {
	case desc.SDP == "":
		c.report(WrapError("remote description", ErrNegotiation, "empty sdp"))
		return
	case c.role == RoleLeader && desc.Type != webrtc.SDPTypeAnswer:
		c.report(WrapError("remote description", ErrNegotiation, "leader expects an answer, got "+desc.Type.String()))
		return
	case c.role == RoleLeader && !s.offerPending:
		c.report(WrapError("remote description", ErrNegotiation, "answer without a pending offer"))
		return
	case c.role == RoleFollower && desc.Type != webrtc.SDPTypeOffer:
		c.report(WrapError("remote description", ErrNegotiation, "follower expects an offer, got "+desc.Type.String()))
		return
	case s.remotePending:
		c.report(WrapError("remote description", ErrNegotiation, "remote description already being applied"))
		return
	}

	s.remotePending = true
	c.runStep(s, stepRemote, func(t Transport) (webrtc.SessionDescription, error) {
		if err := t.SetRemoteDescription(desc); err != nil {
			return webrtc.SessionDescription{}, fmt.Errorf("set remote description: %w", err)
		}
		return desc, nil
	})
}

func (c *Coordinator) remoteCandidate(ev remoteCandidate) {
	candidate := ev.candidate
	if candidate == nil || candidate.Candidate == "" {
		c.logger.Debug("end of remote candidates")
		return
	}

	s := c.session
	if s == nil {
		if c.queuedPeer != nil {
			c.queuedSignals = append(c.queuedSignals, ev)
			return
		}
		c.report(WrapError("remote candidate", ErrNegotiation, "no active session in state "+c.machine.current().String()))
		return
	}

	if !c.buffer.IsLive(s.id) {
		if err := c.buffer.Enqueue(s.id, *candidate); err != nil {
			c.report(NewError("buffer candidate", ErrNegotiation, err))
		}
		return
	}
	if err := s.transport.AddICECandidate(*candidate); err != nil {
		c.report(NewError("add candidate", ErrNegotiation, err))
	}
}

func (c *Coordinator) stepDone(ev stepDone) {
	s := c.current(ev.session)
	if s == nil {
		c.logger.Debug("discarding stale completion", "step", ev.step, "session", ev.session)
		return
	}

	switch ev.step {
	case stepOffer:
		if ev.err != nil {
			s.offerPending = false
			c.report(NewError("negotiate", ErrNegotiation, ev.err))
			return
		}
		if err := c.signaler.SendDescription(ev.desc); err != nil {
			s.offerPending = false
			c.report(NewError("send offer", ErrNegotiation, err))
			return
		}
		c.logger.Debug("offer sent", "session", s.id)

	case stepRemote:
		s.remotePending = false
		if ev.err != nil {
			c.report(NewError("remote description", ErrNegotiation, ev.err))
			return
		}
		if err := c.buffer.DrainInto(s.id, s.transport.AddICECandidate); err != nil {
			c.report(NewError("apply buffered candidates", ErrNegotiation, err))
		}
		if ev.desc.Type == webrtc.SDPTypeAnswer {
			s.offerPending = false
			c.markConnected(s)
			return
		}
		c.runStep(s, stepAnswer, func(t Transport) (webrtc.SessionDescription, error) {
			answer, err := t.CreateAnswer()
			if err != nil {
				return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
			}
			if err := t.SetLocalDescription(answer); err != nil {
				return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
			}
			return answer, nil
		})

	case stepAnswer:
		if ev.err != nil {
			c.report(NewError("answer", ErrNegotiation, ev.err))
			return
		}
		if err := c.signaler.SendDescription(ev.desc); err != nil {
			c.report(NewError("send answer", ErrNegotiation, err))
			return
		}
		c.logger.Debug("answer sent", "session", s.id)
		c.markConnected(s)
	}
}

func (c *Coordinator) localCandidate(ev localCandidate) {
	s := c.current(ev.session)
	if s == nil || ev.candidate == nil {
		return
	}
	if err := c.signaler.SendCandidate(*ev.candidate, s.remotePeerID); err != nil {
		c.logger.Warn("failed to send local candidate", "session", s.id, "err", err)
	}
}

func (c *Coordinator) connectionState(ev connectionState) {
	s := c.current(ev.session)
	if s == nil {
		return
	}
	c.logger.Debug("transport state", "session", s.id, "state", ev.state.String())

	switch ev.state {
	case webrtc.PeerConnectionStateConnected:
		c.markConnected(s)
	case webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateClosed:
		c.report(WrapError("transport", ErrTransportFailure, ev.state.String()))
		c.abandon("transport " + ev.state.String())
	}
}

func (c *Coordinator) peerLost() {
	if c.session == nil {
		if c.queuedPeer != nil {
			c.queuedPeer = nil
			c.queuedSignals = nil
		}
		c.logger.Debug("peer lost without an active session")
		return
	}
	c.teardown("peer disconnected")
	c.transition(StateAwaitingPeer)
	c.publish(nil)
}

func (c *Coordinator) localDisconnect() {
	c.teardown("local disconnect")
	c.clearConnectionState()
	c.transition(StateIdle)
	c.publish(nil)
}

func (c *Coordinator) windowExpired(id uuid.UUID) {
	s := c.current(id)
	if s == nil || c.machine.current() != StateNegotiating {
		return
	}
	c.report(WrapError("negotiate", ErrNegotiation, "negotiation window elapsed"))
	c.abandon("negotiation window elapsed")
}

// abandon ends a session the relay still considers paired. The relay is told
// to dissolve the room, otherwise no new partner would ever be matched.
func (c *Coordinator) abandon(reason string) {
	s := c.session
	c.teardown(reason)
	c.transition(StateAwaitingPeer)
	c.publish(nil)
	if s == nil {
		return
	}
	if err := c.signaler.SendLeave(s.roomID); err != nil {
		c.logger.Warn("failed to leave room", "session", s.id, "room", s.roomID, "err", err)
	}
}

func (c *Coordinator) markConnected(s *session) {
	if c.machine.current() != StateNegotiating {
		return
	}
	if s.window != nil {
		s.window.Stop()
		s.window = nil
	}
	c.transition(StateConnected)
	c.logger.Info("session connected", "session", s.id, "peer", s.remotePeerID)
	c.publish(nil)
}

// teardown releases the live session. Local media tracks are not stopped;
// they belong to the client, not the session.
func (c *Coordinator) teardown(reason string) {
	s := c.session
	if s == nil {
		return
	}
	c.session = nil
	if s.window != nil {
		s.window.Stop()
	}
	c.buffer.Clear(s.id)
	if err := s.transport.Close(); err != nil {
		c.logger.Warn("failed to close transport", "session", s.id, "err", err)
	}
	c.logger.Info("session torn down", "session", s.id, "peer", s.remotePeerID, "reason", reason)
}

func (c *Coordinator) clearConnectionState() {
	c.role = RoleUnknown
	c.roomID = ""
	c.queuedPeer = nil
	c.queuedSignals = nil
	c.buffer.Reset()
}

func (c *Coordinator) current(id uuid.UUID) *session {
	if c.session == nil || c.session.id != id {
		return nil
	}
	return c.session
}

func (c *Coordinator) runStep(s *session, step stepKind, fn func(Transport) (webrtc.SessionDescription, error)) {
	id, transport := s.id, s.transport
	go func() {
		desc, err := fn(transport)
		c.post(stepDone{session: id, step: step, desc: desc, err: err})
	}()
}

func (c *Coordinator) transition(to State) {
	from := c.machine.current()
	if err := c.machine.transition(to); err != nil {
		c.logger.Error("rejected state change", "err", err)
		return
	}
	if from != to {
		c.logger.Debug("state changed", "from", from, "to", to)
	}
}

// report surfaces an error through the status observer. A negotiation error
// in Negotiating arms the negotiation window.
func (c *Coordinator) report(err error) {
	level := slog.LevelWarn
	if errors.Is(err, ErrRoleConflict) || errors.Is(err, ErrLinkLost) {
		level = slog.LevelError
	}
	c.logger.Log(context.Background(), level, "negotiation problem", "state", c.machine.current(), "err", err)

	if s := c.session; s != nil && errors.Is(err, ErrNegotiation) && c.machine.current() == StateNegotiating && s.window == nil {
		id := s.id
		s.window = time.AfterFunc(c.timeout, func() {
			c.post(windowExpired{session: id})
		})
	}
	c.publish(err)
}

func (c *Coordinator) publish(err error) {
	status := Status{
		State:  c.machine.current(),
		Role:   c.role,
		RoomID: c.roomID,
		Err:    err,
	}
	if s := c.session; s != nil {
		status.SessionID = s.id.String()
		status.RemotePeerID = s.remotePeerID
	}

	c.statusMu.Lock()
	c.status = status
	c.statusMu.Unlock()

	if c.onStatus != nil {
		c.onStatus(status)
	}
}
