package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

func TestSimpleSpinner_StopClearsLine(t *testing.T) {
	var out bytes.Buffer
	sp := newSpinner(&out, "working", spinner.Line, time.Millisecond)
	sp.Start()
	time.Sleep(10 * time.Millisecond)
	sp.UpdateMessage("still working")
	time.Sleep(10 * time.Millisecond)
	sp.Stop()
	sp.Stop()

	got := out.String()
	if !strings.Contains(got, "working") || !strings.Contains(got, "still working") {
		t.Fatalf("output missing messages: %q", got)
	}
	if !strings.HasSuffix(got, "\r\033[K") {
		t.Fatalf("output not cleared: %q", got)
	}
}
