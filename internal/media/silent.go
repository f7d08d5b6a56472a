package media

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// opusSilence is a single Opus frame that decodes to 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const silentFrame = 20 * time.Millisecond

// SilentSource is a headless Source: an Opus track fed with silence frames
// and a VP8 track that carries no frames. It needs no devices.
type SilentSource struct {
	MuteState

	streamID string

	mu      sync.Mutex
	tracks  []webrtc.TrackLocal
	audio   *webrtc.TrackLocalStaticSample
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
	written atomic.Uint64
}

func NewSilentSource(streamID string) *SilentSource {
	if streamID == "" {
		streamID = "warpcall"
	}
	return &SilentSource{streamID: streamID}
}

// Acquire creates the tracks on first use and starts the silence pump. Later
// calls return the same tracks.
func (s *SilentSource) Acquire(context.Context) ([]webrtc.TrackLocal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.tracks != nil {
		return s.tracks, nil
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		KindAudio.String(), s.streamID,
	)
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		KindVideo.String(), s.streamID,
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.audio = audio
	s.tracks = []webrtc.TrackLocal{audio, video}
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.pump(ctx)

	return s.tracks, nil
}

func (s *SilentSource) pump(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(silentFrame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Muted(KindAudio) {
				continue
			}
			// Unbound tracks accept and drop samples.
			if err := s.audio.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: silentFrame}); err == nil {
				s.written.Add(1)
			}
		}
	}
}

// Frames returns the number of audio frames written so far.
func (s *SilentSource) Frames() uint64 {
	return s.written.Load()
}

func (s *SilentSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}
