package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

// BarRenderer shows job progress on a terminal as one redrawn line:
//
//	[#######.............]  35%  7/20 units  0:42  Writing scripts (stop 4 of 10)
//
// When out is not a terminal it prints a line per stage instead.
type BarRenderer struct {
	out   io.Writer
	start time.Time
	isTTY bool
	width int

	last  Event
	drawn bool  // a TTY line is on screen
	stage Stage // last stage printed in plain mode
}

// NewBarRenderer creates a renderer that writes to out.
func NewBarRenderer(out *os.File) *BarRenderer {
	r := &BarRenderer{out: out, start: time.Now(), width: 80}
	r.isTTY = isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
	if r.isTTY {
		if w, _, err := term.GetSize(out.Fd()); err == nil && w > 0 {
			r.width = w
		}
	}
	return r
}

// Handle satisfies Callback.
func (r *BarRenderer) Handle(e Event) {
	e.Elapsed = time.Since(r.start)
	if e.Stage == StageComplete {
		e.Percent = 100
	}
	r.last = e

	if !r.isTTY {
		r.printStage(e)
		return
	}
	line := fmt.Sprintf("%s %3d%%  %s  %s", renderBar(e.Percent, r.barWidth()), e.Percent, unitCount(e), formatElapsed(e.Elapsed))
	if e.Message != "" {
		line += "  " + e.Message
	}
	fmt.Fprint(r.out, "\r\033[2K"+truncate(line, r.width-1))
	r.drawn = true
}

// Finish erases the live line and prints the job outcome.
func (r *BarRenderer) Finish() {
	if r.drawn {
		fmt.Fprint(r.out, "\r\033[2K")
		r.drawn = false
	}
	e := r.last
	switch {
	case e.Error != nil:
		fmt.Fprintf(r.out, "\n  Error: %v\n", e.Error)
	case e.Stage == StageComplete:
		fmt.Fprintf(r.out, "\n  %s (%s)\n", e.Message, formatElapsed(e.Elapsed))
		if e.JobID != "" {
			fmt.Fprintf(r.out, "  Job: %s  |  Audio: %d  |  Warnings: %d\n", e.JobID, e.UsableAudio, e.Warnings)
		}
	}
}

// printStage writes one line when the job enters a new stage. Per-unit
// updates within a stage are dropped so logs stay short.
func (r *BarRenderer) printStage(e Event) {
	terminal := e.Stage == StageComplete || e.Stage == StageFailed
	if e.Stage == r.stage && !terminal {
		return
	}
	r.stage = e.Stage
	fmt.Fprintf(r.out, "[%s] %3d%% %s\n", formatElapsed(e.Elapsed), e.Percent, e.Message)
}

// barWidth leaves room for percent, unit count, elapsed and part of the message.
func (r *BarRenderer) barWidth() int {
	return min(max(r.width/3, 10), 40)
}

func unitCount(e Event) string {
	if e.Total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d units", e.Done, e.Total)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

// renderBar draws a [####....] bar of the given width.
func renderBar(pct int, width int) string {
	filled := min(max(pct, 0), 100) * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// formatElapsed formats a duration as M:SS.
func formatElapsed(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
