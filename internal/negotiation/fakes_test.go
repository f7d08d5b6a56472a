package negotiation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

// fakeTransport records everything the coordinator does to it and flags any
// candidate applied before a remote description exists.
type fakeTransport struct {
	mu sync.Mutex

	tracks        []webrtc.TrackLocal
	tracksAtOffer []int
	local         *webrtc.SessionDescription
	remote        *webrtc.SessionDescription
	applied       []webrtc.ICECandidateInit
	offers        int
	answers       int
	closed        bool
	earlyApplies  int

	offerGate  chan struct{}
	remoteErr  error
	candidates func(*webrtc.ICECandidateInit)
	states     func(webrtc.PeerConnectionState)
	needed     func()
}

func (f *fakeTransport) AddTrack(track webrtc.TrackLocal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, track)
	return nil
}

func (f *fakeTransport) CreateOffer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	gate := f.offerGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers++
	f.tracksAtOffer = append(f.tracksAtOffer, len(f.tracks))
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", f.offers)}, nil
}

func (f *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return webrtc.SessionDescription{}, errors.New("answer without remote offer")
	}
	f.answers++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d", f.answers)}, nil
}

func (f *fakeTransport) SetLocalDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.local = &desc
	return nil
}

func (f *fakeTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remoteErr != nil {
		return f.remoteErr
	}
	f.remote = &desc
	return nil
}

func (f *fakeTransport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		f.earlyApplies++
		return errors.New("remote description not set")
	}
	f.applied = append(f.applied, candidate)
	return nil
}

func (f *fakeTransport) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = fn
}

func (f *fakeTransport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = fn
}

func (f *fakeTransport) OnNegotiationNeeded(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.needed = fn
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) appliedCandidates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.applied))
	for i, c := range f.applied {
		out[i] = c.Candidate
	}
	return out
}

func (f *fakeTransport) snapshot(fn func(f *fakeTransport)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeTransport) fireState(state webrtc.PeerConnectionState) {
	f.mu.Lock()
	fn := f.states
	f.mu.Unlock()
	fn(state)
}

func (f *fakeTransport) fireCandidate(candidate *webrtc.ICECandidateInit) {
	f.mu.Lock()
	fn := f.candidates
	f.mu.Unlock()
	fn(candidate)
}

func (f *fakeTransport) fireNegotiationNeeded() {
	f.mu.Lock()
	fn := f.needed
	f.mu.Unlock()
	fn()
}

type sentCandidate struct {
	candidate string
	target    string
}

type fakeSignaler struct {
	mu           sync.Mutex
	descriptions []webrtc.SessionDescription
	candidates   []sentCandidate
	leaves       []string
}

func (s *fakeSignaler) SendDescription(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptions = append(s.descriptions, desc)
	return nil
}

func (s *fakeSignaler) SendCandidate(candidate webrtc.ICECandidateInit, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, sentCandidate{candidate: candidate.Candidate, target: targetID})
	return nil
}

func (s *fakeSignaler) SendLeave(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves = append(s.leaves, roomID)
	return nil
}

func (s *fakeSignaler) leftRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.leaves...)
}

func (s *fakeSignaler) sent() []webrtc.SessionDescription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]webrtc.SessionDescription(nil), s.descriptions...)
}

func (s *fakeSignaler) sentCandidates() []sentCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentCandidate(nil), s.candidates...)
}

type fakeMedia struct {
	tracks []webrtc.TrackLocal
	err    error
}

func (m *fakeMedia) Acquire(context.Context) ([]webrtc.TrackLocal, error) {
	return m.tracks, m.err
}

// harness runs a coordinator against fakes.
type harness struct {
	t           *testing.T
	coordinator *Coordinator
	signaler    *fakeSignaler

	mu         sync.Mutex
	transports []*fakeTransport
	sessionIDs []string
	statuses   []Status
	prepare    func(*fakeTransport)
}

type harnessOption func(*Config)

func withMedia(media TrackSource) harnessOption {
	return func(cfg *Config) { cfg.Media = media }
}

func withTimeout(timeout time.Duration) harnessOption {
	return func(cfg *Config) { cfg.NegotiationTimeout = timeout }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{t: t, signaler: &fakeSignaler{}}
	cfg := Config{
		Transports: func(_ Role, sessionID string) (Transport, error) {
			ft := &fakeTransport{}
			h.mu.Lock()
			if h.prepare != nil {
				h.prepare(ft)
			}
			h.transports = append(h.transports, ft)
			h.sessionIDs = append(h.sessionIDs, sessionID)
			h.mu.Unlock()
			return ft, nil
		},
		Signaler: h.signaler,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnStatus: func(status Status) {
			h.mu.Lock()
			h.statuses = append(h.statuses, status)
			h.mu.Unlock()
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.coordinator = c

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(finished)
	}()
	t.Cleanup(func() {
		cancel()
		<-finished
	})
	return h
}

// sync waits until every event posted so far has been processed and returns
// a value computed on the loop goroutine.
func (h *harness) sync(fn func(c *Coordinator)) {
	h.t.Helper()
	done := make(chan struct{})
	h.coordinator.post(inspect{fn: fn, done: done})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		h.t.Fatal("coordinator loop did not respond")
	}
}

func (h *harness) state() State {
	var state State
	h.sync(func(c *Coordinator) { state = c.machine.current() })
	return state
}

func (h *harness) transport(i int) *fakeTransport {
	h.t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if i >= len(h.transports) {
		h.t.Fatalf("transport %d not created (have %d)", i, len(h.transports))
	}
	return h.transports[i]
}

func (h *harness) sessionID(i int) string {
	h.t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if i >= len(h.sessionIDs) {
		h.t.Fatalf("session %d not created (have %d)", i, len(h.sessionIDs))
	}
	return h.sessionIDs[i]
}

func (h *harness) transportCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.transports)
}

func (h *harness) errorsMatching(target error) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, status := range h.statuses {
		if status.Err != nil && errors.Is(status.Err, target) {
			n++
		}
	}
	return n
}

// ready brings the coordinator to AwaitingPeer with the given role.
func (h *harness) ready(role Role) {
	h.coordinator.OnLinkUp()
	h.coordinator.OnRoleAssigned(role)
	if got := h.state(); got != StateAwaitingPeer {
		h.t.Fatalf("state=%s, want %s", got, StateAwaitingPeer)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func candidate(s string) *webrtc.ICECandidateInit {
	return &webrtc.ICECandidateInit{Candidate: s}
}

func offer(sdp string) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
}

func answer(sdp string) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
}
