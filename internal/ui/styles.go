package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	Primary    = lipgloss.Color("#22d3ee")
	Live       = lipgloss.Color("#34d399")
	Caution    = lipgloss.Color("#fbbf24")
	Error      = lipgloss.Color("#f87171")
	Muted      = lipgloss.Color("#6B7280")
	Foreground = lipgloss.Color("#0f172a")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Primary).MarginBottom(1)
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(Live)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(Error)
	WarningStyle = lipgloss.NewStyle().Foreground(Caution)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	// StatusStyle is the call state badge.
	StatusStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Background(Primary).
			Padding(0, 1).
			Bold(true)

	// LabelStyle aligns the You/Partner rows of the call view.
	LabelStyle = lipgloss.NewStyle().Foreground(Muted).Width(12)

	RoomBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(Live).
			Padding(0, 2)

	FooterStyle = lipgloss.NewStyle().Foreground(Muted).MarginTop(1)
)

// Device table.
var (
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).Align(lipgloss.Center)
	TableRowStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("255"))
	TableRowAltStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
)

const (
	IconCall      = "📞"
	IconMic       = "🎤"
	IconMicOff    = "🔇"
	IconCamera    = "📷"
	IconCameraOff = "🚫"
	IconRoom      = "🚪"
	IconPeer      = "👤"
	IconConnect   = "🔌"
	IconProbe     = "📡"
	IconError     = "❌"
)

func PrintError(msg string) {
	fmt.Println(ErrorStyle.Render(IconError + " " + msg))
}

func PrintErrorf(format string, args ...any) {
	PrintError(fmt.Sprintf(format, args...))
}

func PrintWarning(msg string) {
	fmt.Println(WarningStyle.Render("! " + msg))
}

func PrintSuccess(msg string) {
	fmt.Println(SuccessStyle.Render("✓") + " " + msg)
}

func PrintInfof(format string, args ...any) {
	fmt.Println(MutedStyle.Render("›") + " " + fmt.Sprintf(format, args...))
}
