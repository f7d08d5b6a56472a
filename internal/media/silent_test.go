package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

func TestSilentSource_AcquireOnce(t *testing.T) {
	s := NewSilentSource("")
	t.Cleanup(func() { _ = s.Close() })

	first, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("tracks=%d, want 2", len(first))
	}
	if first[0].Kind() != webrtc.RTPCodecTypeAudio || first[1].Kind() != webrtc.RTPCodecTypeVideo {
		t.Fatalf("kinds=%s,%s", first[0].Kind(), first[1].Kind())
	}

	second, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if first[0] != second[0] || first[1] != second[1] {
		t.Fatal("second Acquire returned new tracks")
	}
}

func TestSilentSource_MuteStopsFrames(t *testing.T) {
	s := NewSilentSource("test")
	t.Cleanup(func() { _ = s.Close() })
	if _, err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	waitFrames(t, s, 2)

	s.SetMuted(KindAudio, true)
	if !s.Muted(KindAudio) || s.Muted(KindVideo) {
		t.Fatal("mute flags wrong")
	}
	// Let any in-flight tick land before sampling.
	time.Sleep(3 * silentFrame)
	muted := s.Frames()
	time.Sleep(5 * silentFrame)
	if got := s.Frames(); got != muted {
		t.Fatalf("frames grew while muted: %d -> %d", muted, got)
	}

	if Toggle(s, KindAudio) {
		t.Fatal("Toggle did not unmute")
	}
	waitFrames(t, s, muted+1)
}

func TestSilentSource_AcquireAfterClose(t *testing.T) {
	s := NewSilentSource("test")
	if _, err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.Acquire(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Acquire after Close err=%v, want %v", err, ErrClosed)
	}
}

func TestKind_String(t *testing.T) {
	if KindAudio.String() != "audio" || KindVideo.String() != "video" {
		t.Fatalf("kind strings %s %s", KindAudio, KindVideo)
	}
}

func waitFrames(t *testing.T, s *SilentSource, n uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Frames() < n {
		if time.Now().After(deadline) {
			t.Fatalf("frames=%d, want at least %d", s.Frames(), n)
		}
		time.Sleep(silentFrame)
	}
}
