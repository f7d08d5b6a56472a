//go:build cgo

package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	_ "github.com/pion/mediadevices/pkg/driver/camera"     // registers camera drivers
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // registers microphone drivers
)

// Source captures camera and microphone, encodes them and pumps RTP into
// static local tracks. Muting drops packets; the tracks stay attached.
type Source struct {
	media.MuteState

	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	stream mediadevices.MediaStream
	tracks []webrtc.TrackLocal
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

var _ media.Source = (*Source)(nil)

func New(opts Options) *Source {
	opts = opts.withDefaults()
	return &Source{
		opts:   opts,
		logger: opts.Logger.With("component", "capture"),
	}
}

// Acquire opens the devices on first use. Later calls return the same
// tracks.
func (s *Source) Acquire(ctx context.Context) ([]webrtc.TrackLocal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, media.ErrClosed
	}
	if s.tracks != nil {
		return s.tracks, nil
	}

	selector, err := s.codecSelector()
	if err != nil {
		return nil, err
	}

	constraints := mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			if s.opts.MicrophoneID != "" {
				c.DeviceID = prop.String(s.opts.MicrophoneID)
			}
			c.SampleRate = prop.Int(48000)
			c.ChannelCount = prop.Int(1)
			c.Latency = prop.Duration(20 * time.Millisecond)
		},
		Codec: selector,
	}
	if !s.opts.AudioOnly {
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			if s.opts.CameraID != "" {
				c.DeviceID = prop.String(s.opts.CameraID)
			}
			c.Width = prop.Int(s.opts.Width)
			c.Height = prop.Int(s.opts.Height)
			c.FrameRate = prop.Float(s.opts.FrameRate)
		}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, fmt.Errorf("get user media: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	var tracks []webrtc.TrackLocal
	for _, track := range stream.GetTracks() {
		kind := kindOf(track.Kind())
		local, err := webrtc.NewTrackLocalStaticRTP(codecFor(kind), kind.String(), streamID)
		if err != nil {
			cancel()
			closeTracks(stream)
			return nil, fmt.Errorf("create %s track: %w", kind, err)
		}
		tracks = append(tracks, local)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.pump(pumpCtx, track, local, kind)
		}()
	}

	s.stream = stream
	s.tracks = tracks
	s.cancel = cancel
	s.logger.Info("capture started", "tracks", len(tracks), "audio_only", s.opts.AudioOnly)
	return tracks, nil
}

func (s *Source) codecSelector() (*mediadevices.CodecSelector, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = s.opts.VideoBitRate
	vpxParams.KeyFrameInterval = 60
	vpxParams.RateControlEndUsage = vpx.RateControlVBR

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}
	opusParams.BitRate = s.opts.AudioBitRate
	opusParams.Latency = opus.Latency20ms

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	), nil
}

// pump copies encoded RTP from the device track into the local track.
func (s *Source) pump(ctx context.Context, track mediadevices.Track, local *webrtc.TrackLocalStaticRTP, kind media.Kind) {
	reader, err := track.NewRTPReader(local.Codec().MimeType, rand.Uint32(), rtpMTU)
	if err != nil {
		s.logger.Error("failed to open rtp reader", "kind", kind.String(), "err", err)
		return
	}
	defer reader.Close()

	for {
		packets, release, err := reader.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Warn("capture read failed", "kind", kind.String(), "err", err)
			}
			return
		}
		if !s.Muted(kind) {
			for _, packet := range packets {
				if err := local.WriteRTP(packet); err != nil && !errors.Is(err, io.ErrClosedPipe) {
					s.logger.Debug("rtp write failed", "kind", kind.String(), "err", err)
				}
			}
		}
		release()

		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, stream := s.cancel, s.stream
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		closeTracks(stream)
	}
	s.wg.Wait()
	return nil
}

func closeTracks(stream mediadevices.MediaStream) {
	for _, track := range stream.GetTracks() {
		_ = track.Close()
	}
}

// Devices lists the capture devices the drivers can see.
func Devices() ([]Device, error) {
	var out []Device
	for _, info := range mediadevices.EnumerateDevices() {
		kind := "other"
		switch info.Kind {
		case mediadevices.VideoInput:
			kind = "camera"
		case mediadevices.AudioInput:
			kind = "microphone"
		case mediadevices.AudioOutput:
			kind = "speaker"
		}
		out = append(out, Device{ID: info.DeviceID, Label: info.Label, Kind: kind})
	}
	return out, nil
}
