package capture

import (
	"testing"

	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/pion/webrtc/v4"
)

func TestCodecFor(t *testing.T) {
	if got := codecFor(media.KindVideo).MimeType; got != webrtc.MimeTypeVP8 {
		t.Fatalf("video mime=%s, want %s", got, webrtc.MimeTypeVP8)
	}
	audio := codecFor(media.KindAudio)
	if audio.MimeType != webrtc.MimeTypeOpus || audio.ClockRate != 48000 {
		t.Fatalf("audio codec=%+v", audio)
	}
}

func TestKindOf(t *testing.T) {
	if kindOf(webrtc.RTPCodecTypeVideo) != media.KindVideo {
		t.Fatal("video codec type not mapped to video")
	}
	if kindOf(webrtc.RTPCodecTypeAudio) != media.KindAudio {
		t.Fatal("audio codec type not mapped to audio")
	}
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{Width: 1280}.withDefaults()
	if o.Width != 1280 || o.Height != 480 || o.FrameRate != 30 || o.Logger == nil {
		t.Fatalf("defaults=%+v", o)
	}
}

func TestSource_MuteFlags(t *testing.T) {
	s := New(Options{})
	s.SetMuted(media.KindVideo, true)
	if !s.Muted(media.KindVideo) || s.Muted(media.KindAudio) {
		t.Fatal("mute flags wrong")
	}
}
