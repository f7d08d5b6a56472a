package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DeviceRow is one capture device in the devices table.
type DeviceRow struct {
	Kind  string
	Label string
	ID    string
}

// DeviceTableView renders capture devices with a lipgloss table.
func DeviceTableView(rows []DeviceRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("No capture devices found")
	}

	var data [][]string
	for i, row := range rows {
		data = append(data, []string{
			fmt.Sprintf("%d", i+1),
			row.Kind,
			truncate(row.Label, 40),
			truncate(row.ID, 32),
		})
	}

	tbl := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("#", "Kind", "Label", "ID").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == lgtable.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// ProbeResult is the outcome of one STUN binding request.
type ProbeResult struct {
	Server  string
	Mapped  string
	RTT     time.Duration
	Failure error
}

// RenderProbeResults writes the STUN probe table to w.
func RenderProbeResults(w io.Writer, results []ProbeResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(IconProbe + " STUN probe")
	t.AppendHeader(table.Row{"Server", "Mapped address", "RTT", "Status"})
	for _, r := range results {
		if r.Failure != nil {
			t.AppendRow(table.Row{r.Server, "-", "-", r.Failure.Error()})
			continue
		}
		t.AppendRow(table.Row{r.Server, r.Mapped, r.RTT.Round(time.Millisecond), "ok"})
	}
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.Render()
}

// CallSummary is printed when a call ends.
type CallSummary struct {
	Room     string
	Partner  string
	Duration time.Duration
	Ended    string
}

func RenderCallSummary(w io.Writer, s CallSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(IconCall + " Call summary")
	t.AppendRows([]table.Row{
		{"Room", orDash(s.Room)},
		{"Partner", orDash(s.Partner)},
		{"Duration", s.Duration.Round(time.Second)},
		{"Ended", orDash(s.Ended)},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
