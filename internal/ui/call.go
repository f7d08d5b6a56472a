package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BioHazard786/Warpcall/internal/control"
	"github.com/BioHazard786/Warpcall/internal/negotiation"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const updateQueueSize = 128

// CallActions are invoked from key presses. Toggles return the new muted
// state.
type CallActions struct {
	ToggleAudio func() bool
	ToggleVideo func() bool
	Quit        func()
}

// CallUI shows the live state of one call and handles in-call keys.
type CallUI struct {
	program *tea.Program
	model   *callModel
	updates chan tea.Msg
	wg      sync.WaitGroup
	once    sync.Once
}

type statusMsg negotiation.Status

type partnerMsg control.MediaStatePayload

type localMsg struct {
	audioMuted bool
	videoMuted bool
}

type callModel struct {
	actions CallActions
	spinner spinner.Model
	updates chan tea.Msg

	status       negotiation.Status
	lastErr      string
	partner      control.MediaStatePayload
	partnerKnown bool
	audioMuted   bool
	videoMuted   bool
	connectedAt  time.Time
	now          func() time.Time
	quitting     bool
}

func NewCallUI(actions CallActions, opts ...tea.ProgramOption) *CallUI {
	updates := make(chan tea.Msg, updateQueueSize)
	model := newCallModel(actions, updates)
	return &CallUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
		updates: updates,
	}
}

func newCallModel(actions CallActions, updates chan tea.Msg) *callModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = SpinnerStyle

	return &callModel{
		actions: actions,
		spinner: s,
		updates: updates,
		now:     time.Now,
	}
}

// Start runs the program in a goroutine. The returned channel closes when
// the program exits.
func (u *CallUI) Start() <-chan struct{} {
	exited := make(chan struct{})
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer close(exited)
		if _, err := u.program.Run(); err != nil {
			PrintErrorf("UI error: %v", err)
		}
	}()
	return exited
}

// UpdateStatus queues a coordinator status. Updates are dropped when the
// view falls behind.
func (u *CallUI) UpdateStatus(s negotiation.Status) {
	u.push(statusMsg(s))
}

func (u *CallUI) UpdatePartner(p control.MediaStatePayload) {
	u.push(partnerMsg(p))
}

func (u *CallUI) UpdateLocal(audioMuted, videoMuted bool) {
	u.push(localMsg{audioMuted: audioMuted, videoMuted: videoMuted})
}

func (u *CallUI) push(msg tea.Msg) {
	select {
	case u.updates <- msg:
	default:
	}
}

func (u *CallUI) Stop() {
	u.once.Do(func() {
		u.program.Quit()
		u.wg.Wait()
	})
}

// Duration is how long the call has been connected, or zero.
func (u *CallUI) Duration() time.Duration {
	return u.model.duration()
}

func (m *callModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForUpdates())
}

func (m *callModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m *callModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMsg:
		m.applyStatus(negotiation.Status(msg))
		return m, m.listenForUpdates()

	case partnerMsg:
		m.partner = control.MediaStatePayload(msg)
		m.partnerKnown = true
		return m, m.listenForUpdates()

	case localMsg:
		m.audioMuted, m.videoMuted = msg.audioMuted, msg.videoMuted
		return m, m.listenForUpdates()
	}
	return m, nil
}

func (m *callModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "m":
		if m.actions.ToggleAudio != nil {
			m.audioMuted = m.actions.ToggleAudio()
		}
	case "v":
		if m.actions.ToggleVideo != nil {
			m.videoMuted = m.actions.ToggleVideo()
		}
	case "q", "ctrl+c":
		m.quitting = true
		if m.actions.Quit != nil {
			m.actions.Quit()
		}
		return tea.Quit
	}
	return nil
}

func (m *callModel) applyStatus(s negotiation.Status) {
	if s.State == negotiation.StateConnected && m.status.State != negotiation.StateConnected {
		m.connectedAt = m.now()
	}
	if s.State != negotiation.StateConnected {
		m.connectedAt = time.Time{}
	}
	if s.RemotePeerID != m.status.RemotePeerID {
		m.partnerKnown = false
		m.partner = control.MediaStatePayload{}
	}
	if s.Err != nil {
		m.lastErr = s.Err.Error()
	}
	m.status = s
}

func (m *callModel) duration() time.Duration {
	if m.connectedAt.IsZero() {
		return 0
	}
	return m.now().Sub(m.connectedAt)
}

func stateText(s negotiation.State) string {
	switch s {
	case negotiation.StateIdle:
		return "Offline"
	case negotiation.StateAwaitingRole:
		return "Connecting to relay"
	case negotiation.StateAwaitingPeer:
		return "Waiting for a partner"
	case negotiation.StateNegotiating:
		return "Negotiating with partner"
	case negotiation.StateConnected:
		return "In call"
	default:
		return s.String()
	}
}

func micIcon(muted bool) string {
	if muted {
		return IconMicOff + " muted"
	}
	return IconMic + " on"
}

func cameraIcon(off bool) string {
	if off {
		return IconCameraOff + " off"
	}
	return IconCamera + " on"
}

func (m *callModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(IconCall + " Warpcall"))
	b.WriteString("\n")

	indicator := m.spinner.View()
	if m.status.State == negotiation.StateConnected {
		indicator = SuccessStyle.Render(IconConnect)
	}
	b.WriteString(fmt.Sprintf("%s %s", indicator, StatusStyle.Render(stateText(m.status.State))))
	if d := m.duration(); d > 0 {
		b.WriteString(MutedStyle.Render(" " + d.Round(time.Second).String()))
	}
	b.WriteString("\n\n")

	if m.status.RoomID != "" {
		b.WriteString(RoomBoxStyle.Render(IconRoom + " " + BoldStyle.Render(m.status.RoomID)))
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("%s%s  %s\n", LabelStyle.Render("You"), micIcon(m.audioMuted), cameraIcon(m.videoMuted)))

	if m.status.RemotePeerID != "" {
		partner := MutedStyle.Render("waiting for media state")
		if m.partnerKnown {
			partner = micIcon(m.partner.AudioMuted) + "  " + cameraIcon(m.partner.VideoMuted)
		}
		b.WriteString(fmt.Sprintf("%s%s\n", LabelStyle.Render(IconPeer+" Partner"), partner))
	}

	if m.lastErr != "" {
		b.WriteString("\n" + ErrorStyle.Render(IconError+" "+m.lastErr) + "\n")
	}

	b.WriteString(FooterStyle.Render("m mute mic • v camera • q hang up"))
	return b.String()
}
