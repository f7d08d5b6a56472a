package negotiation

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// CandidateBuffer holds remote ICE candidates that arrived before the
// session's remote description was installed. Entries are keyed by session
// identity so nothing can leak from one session into the next.
type CandidateBuffer struct {
	mu      sync.Mutex
	pending map[uuid.UUID][]webrtc.ICECandidateInit
	live    map[uuid.UUID]bool
}

func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{
		pending: make(map[uuid.UUID][]webrtc.ICECandidateInit),
		live:    make(map[uuid.UUID]bool),
	}
}

// Enqueue appends a candidate for the session. An exact duplicate of a
// candidate already held is dropped; order is otherwise preserved.
func (b *CandidateBuffer) Enqueue(session uuid.UUID, candidate webrtc.ICECandidateInit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.live[session] {
		return ErrSessionLive
	}
	for _, held := range b.pending[session] {
		if sameCandidate(held, candidate) {
			return nil
		}
	}
	b.pending[session] = append(b.pending[session], candidate)
	return nil
}

// DrainInto applies every buffered candidate of the session in insertion
// order, clears the entry and marks the session live. Every candidate is
// attempted; failures are joined into the returned error.
func (b *CandidateBuffer) DrainInto(session uuid.UUID, apply func(webrtc.ICECandidateInit) error) error {
	b.mu.Lock()
	queued := b.pending[session]
	delete(b.pending, session)
	b.live[session] = true
	b.mu.Unlock()

	var errs []error
	for _, candidate := range queued {
		if err := apply(candidate); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsLive reports whether candidates for the session are applied directly.
func (b *CandidateBuffer) IsLive(session uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live[session]
}

// Len returns the number of candidates held for the session.
func (b *CandidateBuffer) Len(session uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[session])
}

// Clear forgets everything about the session.
func (b *CandidateBuffer) Clear(session uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, session)
	delete(b.live, session)
}

// Reset drops every entry.
func (b *CandidateBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.pending)
	clear(b.live)
}

func sameCandidate(a, b webrtc.ICECandidateInit) bool {
	return a.Candidate == b.Candidate &&
		equalPtr(a.SDPMid, b.SDPMid) &&
		equalPtr(a.SDPMLineIndex, b.SDPMLineIndex) &&
		equalPtr(a.UsernameFragment, b.UsernameFragment)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
