// Package media provides the local tracks attached to every call.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// Kind is the media kind of a local track.
type Kind int

const (
	KindAudio Kind = iota
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var ErrClosed = errors.New("media source closed")

// Source produces local tracks. Tracks are acquired once and outlive any
// single peer connection; muting suppresses media without detaching tracks.
type Source interface {
	Acquire(ctx context.Context) ([]webrtc.TrackLocal, error)
	SetMuted(kind Kind, muted bool)
	Muted(kind Kind) bool
	Close() error
}

// MuteState is a concurrency-safe per-kind mute flag pair. Sources embed it.
type MuteState struct {
	audio atomic.Bool
	video atomic.Bool
}

func (m *MuteState) SetMuted(kind Kind, muted bool) {
	switch kind {
	case KindAudio:
		m.audio.Store(muted)
	case KindVideo:
		m.video.Store(muted)
	}
}

func (m *MuteState) Muted(kind Kind) bool {
	switch kind {
	case KindAudio:
		return m.audio.Load()
	case KindVideo:
		return m.video.Load()
	default:
		return false
	}
}

// Toggle flips the mute flag of kind and returns the new value.
func Toggle(s Source, kind Kind) bool {
	muted := !s.Muted(kind)
	s.SetMuted(kind, muted)
	return muted
}
