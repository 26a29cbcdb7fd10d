package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/buildflow/buildflow/internal/model"
	"github.com/buildflow/buildflow/pkg/stats"
)

// LogBuffer retains recent raw build output for failure reporting.
// Normal mode renders narration on a single spinner line, so without
// this buffer the output leading up to an error would be gone by the
// time the error surfaces.
type LogBuffer struct {
	lines []string
	max   int
}

// NewLogBuffer creates a buffer keeping at most max lines.
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = 200
	}
	return &LogBuffer{max: max}
}

// Record stores the event's display form. Progress, id, and aux frames
// are skipped; they are rendering noise, not build log.
func (b *LogBuffer) Record(ev model.RawEvent) {
	switch ev.Kind() {
	case model.KindLine:
		b.append(ev.Line)
	case model.KindStatus:
		b.append(ev.Status)
	case model.KindOther:
		if ev.Other != "" {
			b.append("ERROR: " + ev.Other)
		}
	}
}

func (b *LogBuffer) append(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// Lines returns the retained log in arrival order.
func (b *LogBuffer) Lines() []string {
	return b.lines
}

// FailureReport holds everything the failure details block renders.
type FailureReport struct {
	Log      []string
	Stats    stats.BuildStats
	Duration time.Duration
	Err      error
}

// PrintFailure prints the build log that led up to a failed build plus
// the position the build failed at and debugging tips.
func PrintFailure(out io.Writer, r FailureReport) {
	fmt.Fprintln(out, "\n🚫 ========== BUILD FAILURE DETAILS ==========")
	fmt.Fprintln(out, "\n📋 Build log leading up to the error:")
	fmt.Fprintln(out)

	for i, line := range r.Log {
		fmt.Fprintf(out, "%s %3d: %s\n", logIcon(line), i+1, line)
	}
	if r.Err != nil {
		fmt.Fprintf(out, "❌ %3d: %v\n", len(r.Log)+1, r.Err)
	}

	s := r.Stats
	fmt.Fprintln(out, "\n🔍 Build context summary:")
	if s.StepsTotal > 0 {
		fmt.Fprintf(out, "   • Step %d/%d when failure occurred\n", s.StepsCompleted, s.StepsTotal)
	} else if s.StepsCompleted > 0 {
		fmt.Fprintf(out, "   • Step %d when failure occurred\n", s.StepsCompleted)
	}
	if layers := s.LayersCached + s.LayersCompleted; layers > 0 {
		fmt.Fprintf(out, "   • %d layers processed before failure\n", layers)
	}
	if r.Duration > 0 {
		fmt.Fprintf(out, "   • Build ran for %.1fs before failing\n", r.Duration.Seconds())
	}

	fmt.Fprintln(out, "\n💡 Tips for debugging:")
	fmt.Fprintln(out, "   • Check Dockerfile syntax and commands")
	fmt.Fprintln(out, "   • Verify all COPY/ADD source files exist")
	fmt.Fprintln(out, "   • Ensure base image is accessible")
	fmt.Fprintln(out, "   • Run with --verbose for more detailed output")
	fmt.Fprintln(out, "\n🚫 ==========================================")
	fmt.Fprintln(out)
}

// logIcon picks the marker for one retained log line.
func logIcon(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "ERROR:"):
		return "❌"
	case strings.HasPrefix(trimmed, "STEP "):
		return "🔹"
	case strings.Contains(trimmed, "RUN "):
		return "⚙️ "
	case strings.Contains(trimmed, "COPY ") || strings.Contains(trimmed, "ADD "):
		return "📁"
	case strings.Contains(trimmed, "FROM "):
		return "🏗️ "
	default:
		return "  "
	}
}
