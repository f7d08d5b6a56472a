package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/Warpcall/internal/control"
	"github.com/BioHazard786/Warpcall/internal/negotiation"
	tea "github.com/charmbracelet/bubbletea"
)

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestCallModel_Keys(t *testing.T) {
	audio, video, quit := false, false, 0
	m := newCallModel(CallActions{
		ToggleAudio: func() bool { audio = !audio; return audio },
		ToggleVideo: func() bool { video = !video; return video },
		Quit:        func() { quit++ },
	}, make(chan tea.Msg, 1))

	m.Update(key('m'))
	m.Update(key('v'))
	if !m.audioMuted || !m.videoMuted {
		t.Fatalf("audio=%v video=%v after toggles", m.audioMuted, m.videoMuted)
	}
	if !strings.Contains(m.View(), IconMicOff) {
		t.Fatal("view does not show muted mic")
	}

	_, cmd := m.Update(key('q'))
	if cmd == nil || quit != 1 {
		t.Fatalf("quit cmd=%v calls=%d", cmd, quit)
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit the program")
	}
	if m.View() != "" {
		t.Fatal("view not cleared after quit")
	}
}

func TestCallModel_Status(t *testing.T) {
	now := time.Unix(1000, 0)
	m := newCallModel(CallActions{}, make(chan tea.Msg, 1))
	m.now = func() time.Time { return now }

	m.Update(statusMsg{State: negotiation.StateAwaitingPeer, RoomID: "amber-falcon-river-stone"})
	view := m.View()
	if !strings.Contains(view, "Waiting for a partner") || !strings.Contains(view, "amber-falcon-river-stone") {
		t.Fatalf("view missing state or room:\n%s", view)
	}

	m.Update(statusMsg{State: negotiation.StateConnected, RemotePeerID: "p2"})
	m.Update(partnerMsg{VideoMuted: true})
	now = now.Add(42 * time.Second)
	if d := m.duration(); d != 42*time.Second {
		t.Fatalf("duration=%v", d)
	}
	view = m.View()
	if !strings.Contains(view, "In call") || !strings.Contains(view, IconCameraOff) {
		t.Fatalf("view missing call state:\n%s", view)
	}

	m.Update(statusMsg{State: negotiation.StateAwaitingPeer, Err: errors.New("peer went away")})
	if m.partnerKnown || m.duration() != 0 {
		t.Fatal("partner state survived the partner leaving")
	}
	if !strings.Contains(m.View(), "peer went away") {
		t.Fatal("view missing last error")
	}
}

func TestCallUI_PushDropsWhenFull(t *testing.T) {
	u := NewCallUI(CallActions{})
	for i := 0; i < updateQueueSize+10; i++ {
		u.UpdateLocal(true, false)
	}
	if n := len(u.updates); n != updateQueueSize {
		t.Fatalf("queued=%d, want %d", n, updateQueueSize)
	}
	u.UpdatePartner(control.MediaStatePayload{})
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("a very long device label", 10); got != "a very ..." {
		t.Fatalf("got %q", got)
	}
}
