// Package peer adapts pion PeerConnections to the negotiation coordinator.
package peer

import (
	"fmt"
	"log/slog"

	"github.com/BioHazard786/Warpcall/internal/control"
	"github.com/BioHazard786/Warpcall/internal/logging"
	"github.com/BioHazard786/Warpcall/internal/negotiation"
	"github.com/pion/webrtc/v4"
)

const readBufferSize = 1500

// Options configures every PeerConnection the factory creates.
type Options struct {
	Configuration webrtc.Configuration

	// IncludeLoopback gathers 127.0.0.1 host candidates. Useful when both
	// peers run on one machine.
	IncludeLoopback bool

	// Control, when set, is attached to the "control" data channel of each
	// session.
	Control *control.Channel

	// OnTrack receives remote tracks. Without it they are drained and
	// discarded.
	OnTrack func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

	Logger *slog.Logger
}

// Transport is a negotiation.Transport backed by a pion PeerConnection.
type Transport struct {
	pc     *webrtc.PeerConnection
	logger *slog.Logger
}

var _ negotiation.Transport = (*Transport)(nil)

// NewFactory returns a TransportFactory that builds one PeerConnection per
// session. The leader opens the control data channel before its first
// offer; the follower picks it up from the remote side.
func NewFactory(opts Options) (negotiation.TransportFactory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	settings := webrtc.SettingEngine{}
	settings.LoggerFactory = logging.NewPionFactory(logger)
	settings.SetIncludeLoopbackCandidate(opts.IncludeLoopback)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithSettingEngine(settings),
	)

	return func(role negotiation.Role, sessionID string) (negotiation.Transport, error) {
		pc, err := api.NewPeerConnection(opts.Configuration)
		if err != nil {
			return nil, fmt.Errorf("create peer connection: %w", err)
		}
		t := &Transport{pc: pc, logger: logger.With("component", "peer", "role", role.String())}

		if err := t.wire(role, sessionID, opts); err != nil {
			_ = pc.Close()
			return nil, err
		}
		return t, nil
	}, nil
}

func (t *Transport) wire(role negotiation.Role, sessionID string, opts Options) error {
	t.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		t.logger.Info("remote track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if opts.OnTrack != nil {
			opts.OnTrack(track, receiver)
			return
		}
		go drainTrack(track)
	})

	if opts.Control == nil {
		return nil
	}
	if role.Offers() {
		ordered := true
		dc, err := t.pc.CreateDataChannel(control.Label, &webrtc.DataChannelInit{Ordered: &ordered})
		if err != nil {
			return fmt.Errorf("create data channel: %w", err)
		}
		opts.Control.Attach(dc, sessionID)
		return nil
	}

	t.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != control.Label {
			t.logger.Warn("ignoring unexpected data channel", "label", dc.Label())
			return
		}
		opts.Control.Attach(dc, sessionID)
	})
	return nil
}

// AddTrack attaches track. Incoming RTCP on its sender is read and
// discarded.
func (t *Transport) AddTrack(track webrtc.TrackLocal) error {
	sender, err := t.pc.AddTrack(track)
	if err != nil {
		return err
	}
	go func() {
		buf := make([]byte, readBufferSize)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

// CreateOffer always offers to receive audio and video, so a partner can
// send a kind this side has no track for.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	if err := t.ensureReceivers(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return t.pc.CreateOffer(nil)
}

func (t *Transport) ensureReceivers() error {
	have := map[webrtc.RTPCodecType]bool{}
	for _, tr := range t.pc.GetTransceivers() {
		have[tr.Kind()] = true
	}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if have[kind] {
			continue
		}
		_, err := t.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			return fmt.Errorf("add %s receiver: %w", kind, err)
		}
	}
	return nil
}

func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

func (t *Transport) SetLocalDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(desc)
}

func (t *Transport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(desc)
}

func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}

func (t *Transport) OnICECandidate(f func(candidate *webrtc.ICECandidateInit)) {
	t.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			f(nil)
			return
		}
		init := c.ToJSON()
		f(&init)
	})
}

func (t *Transport) OnConnectionStateChange(f func(state webrtc.PeerConnectionState)) {
	t.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.logger.Debug("connection state", "state", state.String())
		f(state)
	})
}

func (t *Transport) OnNegotiationNeeded(f func()) {
	t.pc.OnNegotiationNeeded(f)
}

func (t *Transport) Close() error {
	return t.pc.Close()
}

func drainTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, readBufferSize)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}
