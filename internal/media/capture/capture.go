// Package capture provides a camera and microphone media.Source backed by
// pion/mediadevices. Encoding needs libvpx and libopus, so the real
// implementation is only built with cgo.
package capture

import (
	"errors"
	"log/slog"

	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/pion/webrtc/v4"
)

const (
	streamID = "warpcall"
	rtpMTU   = 1200
)

var ErrUnavailable = errors.New("device capture not available in this build")

// Options selects devices and encoder settings. Empty device ids pick the
// system default.
type Options struct {
	CameraID     string
	MicrophoneID string

	Width     int
	Height    int
	FrameRate float64

	VideoBitRate int
	AudioBitRate int

	// AudioOnly skips the camera.
	AudioOnly bool

	Logger *slog.Logger
}

// Device describes one capture device.
type Device struct {
	ID    string
	Label string
	Kind  string
}

func (o Options) withDefaults() Options {
	if o.Width == 0 {
		o.Width = 640
	}
	if o.Height == 0 {
		o.Height = 480
	}
	if o.FrameRate == 0 {
		o.FrameRate = 30
	}
	if o.VideoBitRate == 0 {
		o.VideoBitRate = 500_000
	}
	if o.AudioBitRate == 0 {
		o.AudioBitRate = 32_000
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// codecFor is the RTP capability of the local track that carries kind.
func codecFor(kind media.Kind) webrtc.RTPCodecCapability {
	if kind == media.KindVideo {
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	return webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   48000,
		Channels:    2,
		SDPFmtpLine: "minptime=10;useinbandfec=1",
	}
}

func kindOf(codecType webrtc.RTPCodecType) media.Kind {
	if codecType == webrtc.RTPCodecTypeVideo {
		return media.KindVideo
	}
	return media.KindAudio
}
