package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/Warpcall/internal/dns"
	"github.com/BioHazard786/Warpcall/internal/negotiation"
	"github.com/cenkalti/backoff/v4"
	"github.com/pion/webrtc/v4"
)

const (
	DefaultMaxRetries      = 8
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
)

// Listener receives connectivity and relay events. negotiation.Coordinator
// implements it.
type Listener interface {
	OnLinkUp()
	OnLinkLost()
	OnRoleAssigned(role negotiation.Role)
	OnRoomID(roomID string)
	OnPeerMatched(peerID string)
	OnRemoteDescription(desc webrtc.SessionDescription)
	OnRemoteCandidate(candidate *webrtc.ICECandidateInit)
	OnPeerLost()
}

// LinkConfig configures a Link.
type LinkConfig struct {
	ServerURL string
	Listener  Listener
	Logger    *slog.Logger

	// Resolver is used for host lookups; nil dials with the system resolver.
	Resolver *dns.Resolver

	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Link keeps one logical connection to the relay alive across socket drops
// and implements negotiation.Signaler on top of it.
type Link struct {
	serverURL  string
	listener   Listener
	logger     *slog.Logger
	resolver   *dns.Resolver
	maxRetries int
	initial    time.Duration
	maxWait    time.Duration

	mu     sync.RWMutex
	client *Client

	// hello is the sequence number of the last hello sent.
	hello atomic.Uint64
}

var _ negotiation.Signaler = (*Link)(nil)

func NewLink(cfg LinkConfig) (*Link, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server URL cannot be empty")
	}
	if cfg.Listener == nil {
		return nil, errors.New("listener cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	l := &Link{
		serverURL:  cfg.ServerURL,
		listener:   cfg.Listener,
		logger:     logger.With("component", "signaling"),
		resolver:   cfg.Resolver,
		maxRetries: cfg.MaxRetries,
		initial:    cfg.InitialInterval,
		maxWait:    cfg.MaxInterval,
	}
	if l.maxRetries <= 0 {
		l.maxRetries = DefaultMaxRetries
	}
	if l.initial <= 0 {
		l.initial = DefaultInitialInterval
	}
	if l.maxWait <= 0 {
		l.maxWait = DefaultMaxInterval
	}
	return l, nil
}

// Run connects, serves and reconnects until ctx is cancelled or the retry
// budget of a reconnect cycle is exhausted. In the latter case the listener
// is told OnLinkLost and the last dial error is returned.
func (l *Link) Run(ctx context.Context) error {
	for {
		client, err := l.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("giving up on signaling server", "url", l.serverURL, "err", err)
			l.listener.OnLinkLost()
			return err
		}

		l.serve(ctx, client)
		l.setClient(nil)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("signaling connection lost, reconnecting")
	}
}

func (l *Link) newBackOff(ctx context.Context) backoff.BackOff {
	ebo := backoff.NewExponentialBackOff()
	ebo.InitialInterval = l.initial
	ebo.MaxInterval = l.maxWait
	ebo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(ebo, uint64(l.maxRetries)), ctx)
}

func (l *Link) connect(ctx context.Context) (*Client, error) {
	var client *Client
	op := func() error {
		c, err := Dial(ctx, l.serverURL, l.resolver, l.logger)
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		l.logger.Warn("signaling dial failed", "err", err, "retry_in", wait)
	}
	if err := backoff.RetryNotify(op, l.newBackOff(ctx), notify); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", l.serverURL, err)
	}

	l.setClient(client)
	l.logger.Info("connected to signaling server", "url", l.serverURL)

	// The listener must see the link come up before any reply to hello.
	l.listener.OnLinkUp()

	seq := l.hello.Add(1)
	if err := client.Send(&Message{Type: TypeHello, Ack: seq}); err != nil {
		l.logger.Warn("failed to send hello", "err", err)
	}
	return client, nil
}

func (l *Link) serve(ctx context.Context, client *Client) {
	defer client.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-client.Incoming():
			if !ok {
				return
			}
			l.handle(msg)
		}
	}
}

// handle routes one inbound message to the listener.
func (l *Link) handle(msg *Message) {
	switch msg.Type {
	case TypeRoleAssignment:
		if current := l.hello.Load(); msg.Ack != current {
			l.logger.Debug("ignoring role assignment for stale hello", "ack", msg.Ack, "hello", current)
			return
		}
		var payload RolePayload
		if err := msg.DecodePayload(&payload); err != nil {
			l.logger.Warn("bad role assignment", "err", err)
			return
		}
		role, err := negotiation.ParseRole(payload.Role)
		if err != nil {
			l.logger.Warn("bad role assignment", "err", err)
		}
		l.listener.OnRoleAssigned(role)

	case TypeRoomID:
		var roomID string
		if err := msg.DecodePayload(&roomID); err != nil {
			l.logger.Warn("bad room id", "err", err)
			return
		}
		l.listener.OnRoomID(roomID)

	case TypeRemotePeerID:
		var peerID string
		if err := msg.DecodePayload(&peerID); err != nil || peerID == "" {
			l.logger.Warn("bad remote peer id", "err", err)
			return
		}
		l.listener.OnPeerMatched(peerID)

	case TypeSessionDescription:
		var payload DescriptionPayload
		if err := msg.DecodePayload(&payload); err != nil {
			l.logger.Warn("bad session description", "err", err)
			return
		}
		l.listener.OnRemoteDescription(payload.Description)

	case TypeICECandidate:
		var payload CandidatePayload
		if err := msg.DecodePayload(&payload); err != nil {
			l.logger.Warn("bad ice candidate", "err", err)
			return
		}
		l.listener.OnRemoteCandidate(payload.Candidate)

	case TypePeerDisconnected:
		l.listener.OnPeerLost()

	case TypeError:
		var payload ErrorPayload
		if err := msg.DecodePayload(&payload); err != nil {
			payload.Error = "unknown error from server"
		}
		l.logger.Warn("relay rejected a message", "error", payload.Error)

	default:
		l.logger.Debug("ignoring unknown message", "type", msg.Type)
	}
}

// SendDescription sends a local offer or answer to the partner.
func (l *Link) SendDescription(desc webrtc.SessionDescription) error {
	msg, err := NewMessage(TypeSessionDescription, DescriptionPayload{Description: desc})
	if err != nil {
		return err
	}
	return l.send(msg)
}

// SendCandidate sends a local candidate addressed to targetID.
func (l *Link) SendCandidate(candidate webrtc.ICECandidateInit, targetID string) error {
	msg, err := NewMessage(TypeICECandidate, CandidatePayload{Candidate: &candidate, TargetID: targetID})
	if err != nil {
		return err
	}
	return l.send(msg)
}

// SendLeave tells the relay this client abandoned the session in roomID and
// wants a new partner.
func (l *Link) SendLeave(roomID string) error {
	msg, err := NewMessage(TypeLeave, LeavePayload{RoomID: roomID})
	if err != nil {
		return err
	}
	return l.send(msg)
}

func (l *Link) send(msg *Message) error {
	l.mu.RLock()
	client := l.client
	l.mu.RUnlock()
	if client == nil {
		return ErrNotConnected
	}
	return client.Send(msg)
}

func (l *Link) setClient(client *Client) {
	l.mu.Lock()
	l.client = client
	l.mu.Unlock()
}
