// Package tui renders build narration and statistics to the terminal.
// Simple streaming output - one in-place progress line in normal mode,
// appended lines in verbose mode, and a statistics block at the end.
package tui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/buildflow/buildflow/pkg/narrate"
	"github.com/buildflow/buildflow/pkg/stats"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF9900")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
)

// Terminal is the pipeline's output sink. In normal mode it keeps a
// single spinner line updated in place; in verbose mode every message
// is appended so nothing scrolls away.
type Terminal struct {
	out     io.Writer
	verbose bool
	spinner *progressbar.ProgressBar

	// Last flushed snapshot, kept for the final report.
	last stats.BuildStats
}

// NewTerminal creates a sink writing to out. Pass os.Stdout in the CLI.
func NewTerminal(out io.Writer, verbose bool) *Terminal {
	t := &Terminal{out: out, verbose: verbose}
	if !verbose {
		t.spinner = newSpinner(out)
	}
	return t
}

// Emit renders one narration message. In normal mode the message
// replaces the current progress line; in verbose mode it is appended.
func (t *Terminal) Emit(msg narrate.Message) {
	if t.verbose {
		fmt.Fprintln(t.out, msg.String())
		return
	}
	t.spinner.Describe(msg.String())
}

// Flush records the final snapshot and retires the progress line.
func (t *Terminal) Flush(snapshot stats.BuildStats) {
	t.last = snapshot
	if t.spinner != nil {
		_ = t.spinner.Finish()
		ClearLine(t.out)
	}
}

// Stats returns the last flushed snapshot.
func (t *Terminal) Stats() stats.BuildStats { return t.last }

// newSpinner builds the in-place progress line.
func newSpinner(out io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("🏗️ Initializing build..."),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// ClearLine clears the current line.
func ClearLine(out io.Writer) {
	fmt.Fprint(out, "\r\033[K")
}

// Report holds everything the final statistics block renders.
type Report struct {
	Stats     stats.BuildStats
	Image     string
	ImageSize int64
	Duration  time.Duration
	Pushed    bool
	Partial   bool
}

// PrintReport prints the end-of-build statistics block.
func (t *Terminal) PrintReport(r Report) {
	fmt.Fprintln(t.out)
	if r.Partial {
		fmt.Fprintln(t.out, accentStyle.Render("  ⚠ BUILD INTERRUPTED"))
	} else {
		fmt.Fprintln(t.out, successStyle.Render("  ✓ BUILD COMPLETE"))
	}
	fmt.Fprintln(t.out)

	s := r.Stats
	totalLayers := s.LayersCached + s.LayersCompleted

	steps := "Build steps"
	if s.StepsTotal > 0 {
		steps = fmt.Sprintf("%d/%d steps", s.StepsCompleted, s.StepsTotal)
	} else if s.StepsCompleted > 0 {
		steps = fmt.Sprintf("%d steps", s.StepsCompleted)
	}
	fmt.Fprintf(t.out, "  %s %s %s\n",
		mutedStyle.Render("Steps: "),
		titleStyle.Render(steps),
		mutedStyle.Render(fmt.Sprintf("(%d layers total)", totalLayers)))

	cacheLine := fmt.Sprintf("♻️ %d cached • 🔨 %d built", s.LayersCached, s.LayersCompleted)
	if s.BaseImageLayers > 0 {
		cacheLine = fmt.Sprintf("♻️ %d cached (%d base) • 🔨 %d built",
			s.LayersCached, s.BaseImageLayers, s.LayersCompleted)
	}
	if ratio, ok := s.CacheHitRatio(); ok {
		cacheLine += mutedStyle.Render(fmt.Sprintf(" • %.1f%% cache hit rate", ratio*100))
	}
	fmt.Fprintf(t.out, "  %s %s\n", mutedStyle.Render("Layers:"), cacheLine)

	if r.Image != "" {
		imageLine := titleStyle.Render(r.Image)
		if s.FinalImageID != "" {
			imageLine += mutedStyle.Render(" (" + s.FinalImageID + ")")
		}
		if r.ImageSize > 0 {
			imageLine += mutedStyle.Render(" • " + formatBytes(r.ImageSize))
		}
		fmt.Fprintf(t.out, "  %s %s\n", mutedStyle.Render("Image: "), imageLine)
	} else if s.FinalImageID != "" {
		fmt.Fprintf(t.out, "  %s %s\n", mutedStyle.Render("Image: "), titleStyle.Render(s.FinalImageID))
	}

	timing := formatDuration(r.Duration)
	if r.Pushed {
		timing += " • 📤 pushed to registry"
	}
	fmt.Fprintf(t.out, "  %s %s\n", mutedStyle.Render("Time:  "), titleStyle.Render(timing))
	fmt.Fprintln(t.out)
}

// formatBytes formats a byte size in human-readable form.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// IsTerminal reports whether stdout is a character device.
func IsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
