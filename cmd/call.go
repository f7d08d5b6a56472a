package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/control"
	"github.com/BioHazard786/Warpcall/internal/dns"
	"github.com/BioHazard786/Warpcall/internal/logging"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/media/capture"
	"github.com/BioHazard786/Warpcall/internal/negotiation"
	"github.com/BioHazard786/Warpcall/internal/peer"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/BioHazard786/Warpcall/internal/ui"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
)

var (
	flagDomain    string
	flagServerURL string
	flagSTUN      string
	flagTURN      string
	flagTURNUser  string
	flagTURNPass  string
	flagRelay     bool
	flagRetries   int
	flagTimeout   time.Duration

	flagSilent    bool
	flagAudioOnly bool
	flagCamera    string
	flagMic       string
	flagLogFile   string
	flagLoopback  bool
)

var callCmd = &cobra.Command{
	Use:     "call",
	Aliases: []string{"c"},
	Short:   "Join the relay and call the next available partner",
	Long: `Connect to the rendezvous relay and wait for a partner. Once paired, the call
is negotiated directly between the two peers.

Examples:
  warpcall call
  warpcall call --audio-only
  warpcall call --server ws://localhost:8080/ws --silent
  warpcall call --turn turn.example.org --turn-user me --turn-pass secret --relay`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd.Context())
	},
}

// linkSignaler lets the coordinator be built before the link that carries
// its signals.
type linkSignaler struct {
	link *signaling.Link
}

func (s *linkSignaler) SendDescription(desc webrtc.SessionDescription) error {
	return s.link.SendDescription(desc)
}

func (s *linkSignaler) SendCandidate(candidate webrtc.ICECandidateInit, targetID string) error {
	return s.link.SendCandidate(candidate, targetID)
}

func (s *linkSignaler) SendLeave(roomID string) error {
	return s.link.SendLeave(roomID)
}

func runCall(ctx context.Context) error {
	cfg, err := LoadConfig(config.Options{
		Domain:              flagDomain,
		ServerURL:           flagServerURL,
		STUNServer:          flagSTUN,
		TURNServer:          flagTURN,
		TURNUser:            flagTURNUser,
		TURNPass:            flagTURNPass,
		ForceRelay:          flagRelay,
		ReconnectMaxRetries: flagRetries,
		NegotiationTimeout:  flagTimeout,
	})
	if err != nil {
		return err
	}

	logger, closeLog, err := callLogger(flagLogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	source := newMediaSource(logger)
	defer source.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ctrl *control.Channel
	view := ui.NewCallUI(ui.CallActions{
		ToggleAudio: func() bool { return toggle(source, ctrl, media.KindAudio, logger) },
		ToggleVideo: func() bool { return toggle(source, ctrl, media.KindVideo, logger) },
		Quit: func() {
			if err := ctrl.SendHangup(); err != nil && !errors.Is(err, control.ErrChannelNotOpen) {
				logger.Warn("failed to send hangup", "err", err)
			}
			cancel()
		},
	})

	signals := &linkSignaler{}
	var coordinator *negotiation.Coordinator
	ctrl = control.NewChannel(control.Config{
		LocalState: func() control.MediaStatePayload {
			return control.MediaStatePayload{
				AudioMuted: source.Muted(media.KindAudio),
				VideoMuted: source.Muted(media.KindVideo),
			}
		},
		OnMediaState: view.UpdatePartner,
		OnHangup:     func(session string) { coordinator.OnPeerHangup(session) },
		Logger:       logger,
	})

	factory, err := peer.NewFactory(peer.Options{
		Configuration:   peer.Configuration(cfg),
		IncludeLoopback: flagLoopback,
		Control:         ctrl,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	var last negotiation.Status
	coordinator, err = negotiation.New(negotiation.Config{
		Transports:         factory,
		Signaler:           signals,
		Media:              source,
		NegotiationTimeout: cfg.NegotiationTimeout,
		Logger:             logger,
		OnStatus: func(s negotiation.Status) {
			if s.RemotePeerID != "" {
				last = s
			}
			view.UpdateStatus(s)
		},
	})
	if err != nil {
		return err
	}

	link, err := signaling.NewLink(signaling.LinkConfig{
		ServerURL:  cfg.ServerURL,
		Listener:   coordinator,
		Logger:     logger,
		Resolver:   dns.NewResolver(),
		MaxRetries: cfg.ReconnectMaxRetries,
	})
	if err != nil {
		return err
	}
	signals.link = link

	if flagAudioOnly {
		source.SetMuted(media.KindVideo, true)
	}
	exited := view.Start()
	view.UpdateLocal(source.Muted(media.KindAudio), source.Muted(media.KindVideo))
	coordinatorDone := make(chan error, 1)
	go func() { coordinatorDone <- coordinator.Run(ctx) }()
	linkDone := make(chan error, 1)
	go func() { linkDone <- link.Run(ctx) }()

	var linkErr error
	select {
	case <-exited:
	case <-ctx.Done():
	case linkErr = <-linkDone:
		linkDone <- linkErr
	}
	duration := view.Duration()
	cancel()

	<-coordinatorDone
	if err := <-linkDone; linkErr == nil && !errors.Is(err, context.Canceled) {
		linkErr = err
	}
	view.Stop()

	fmt.Println()
	ui.RenderCallSummary(os.Stdout, ui.CallSummary{
		Room:     last.RoomID,
		Partner:  last.RemotePeerID,
		Duration: duration,
		Ended:    endReason(linkErr),
	})

	if linkErr != nil && !errors.Is(linkErr, context.Canceled) {
		return fmt.Errorf("signaling server unreachable: %w", linkErr)
	}
	return nil
}

func toggle(source media.Source, ctrl *control.Channel, kind media.Kind, logger *slog.Logger) bool {
	muted := media.Toggle(source, kind)
	if err := ctrl.SendMediaState(); err != nil && !errors.Is(err, control.ErrChannelNotOpen) {
		logger.Warn("failed to send media state", "err", err)
	}
	return muted
}

func newMediaSource(logger *slog.Logger) media.Source {
	if flagSilent {
		return media.NewSilentSource("")
	}
	return capture.New(capture.Options{
		CameraID:     flagCamera,
		MicrophoneID: flagMic,
		AudioOnly:    flagAudioOnly,
		Logger:       logger,
	})
}

// callLogger keeps log output off the terminal the call view draws on.
func callLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return logging.New(io.Discard, slog.LevelError), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	level := slog.LevelInfo
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = logging.ParseLevel(l)
	}
	return logging.New(f, level), func() { _ = f.Close() }, nil
}

func endReason(linkErr error) string {
	if linkErr != nil && !errors.Is(linkErr, context.Canceled) {
		return "relay unreachable"
	}
	return "hung up"
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Relay domain")
	callCmd.Flags().StringVar(&flagServerURL, "server", "", "Relay websocket URL (overrides --domain)")
	callCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	callCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	callCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	callCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	callCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	callCmd.Flags().IntVar(&flagRetries, "retries", 0, "Relay reconnect attempts before giving up")
	callCmd.Flags().DurationVar(&flagTimeout, "negotiation-timeout", 0, "How long a failing negotiation may retry")

	callCmd.Flags().BoolVar(&flagSilent, "silent", false, "Send generated silence instead of capturing devices")
	callCmd.Flags().BoolVarP(&flagAudioOnly, "audio-only", "a", false, "Do not open the camera")
	callCmd.Flags().StringVar(&flagCamera, "camera", "", "Camera device ID, as listed by 'warpcall devices'")
	callCmd.Flags().StringVar(&flagMic, "mic", "", "Microphone device ID, as listed by 'warpcall devices'")
	callCmd.Flags().StringVar(&flagLogFile, "log-file", "", "Write logs to this file")
	callCmd.Flags().BoolVar(&flagLoopback, "loopback", false, "Gather loopback candidates (both peers on one host)")
}
