package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/buildflow/buildflow/internal/model"
	"github.com/buildflow/buildflow/pkg/narrate"
	"github.com/buildflow/buildflow/pkg/stats"
)

// feed converts lines to a closed event channel.
func feed(lines ...string) <-chan model.RawEvent {
	ch := make(chan model.RawEvent, len(lines))
	for _, line := range lines {
		ch <- model.LineEvent(line)
	}
	close(ch)
	return ch
}

// TestPipelineTwoStepBuild runs a small FROM+RUN build end to end and
// checks the flushed stats.
func TestPipelineTwoStepBuild(t *testing.T) {
	sink := &mockSink{}
	p := New(false, sink)

	s, err := p.Run(context.Background(), feed(
		"STEP 1/2: FROM alpine:latest",
		"--> e63fd7e7b356",
		"STEP 2/2: RUN echo hi",
		"--> Using cache 0dca35029b5a",
		"Successfully built 59c90a041ff7",
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := stats.BuildStats{
		StepsTotal:      2,
		StepsCompleted:  2,
		LayersCompleted: 1,
		LayersCached:    1,
		BaseImageLayers: 1,
		FinalImageID:    "59c90a04",
	}
	if s != want {
		t.Errorf("Expected %+v, got %+v", want, s)
	}

	ratio, ok := s.CacheHitRatio()
	if !ok || ratio != 0.5 {
		t.Errorf("Expected cache hit ratio 0.5, got %v (defined=%v)", ratio, ok)
	}

	if sink.flushes != 1 {
		t.Errorf("Expected exactly one flush, got %d", sink.flushes)
	}
	if sink.lastFlush != want {
		t.Errorf("Flushed snapshot differs from returned stats: %+v", sink.lastFlush)
	}
	if len(sink.messages) != 5 {
		t.Errorf("Expected 5 narration lines, got %d: %v", len(sink.messages), sink.messages)
	}
}

// TestPipelineUnrecognizedLineByMode verifies daemon chatter vanishes in
// normal mode and surfaces exactly once, text preserved, in verbose mode.
func TestPipelineUnrecognizedLineByMode(t *testing.T) {
	chatter := "some random docker daemon chatter"

	sink := &mockSink{}
	p := New(false, sink)
	if _, err := p.Run(context.Background(), feed(chatter)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sink.messages) != 0 {
		t.Errorf("Normal mode should emit nothing, got %v", sink.messages)
	}

	sink = &mockSink{}
	p = New(true, sink)
	if _, err := p.Run(context.Background(), feed(chatter)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("Verbose mode should emit one line, got %d", len(sink.messages))
	}
	if !strings.Contains(sink.messages[0].Text, chatter) {
		t.Errorf("Expected original text preserved, got %q", sink.messages[0].Text)
	}
}

// TestPipelineCancellationFlushesPartial verifies a cancelled run still
// delivers the partial snapshot to the sink.
func TestPipelineCancellationFlushesPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	events := make(chan model.RawEvent)
	sink := &mockSink{}
	p := New(false, sink)

	done := make(chan struct{})
	var got stats.BuildStats
	var runErr error
	go func() {
		got, runErr = p.Run(ctx, events)
		close(done)
	}()

	events <- model.LineEvent("STEP 1/4: FROM alpine:latest")
	cancel()
	<-done

	if !errors.Is(runErr, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", runErr)
	}
	if got.StepsCompleted != 1 || got.StepsTotal != 4 {
		t.Errorf("Expected partial 1/4 steps, got %d/%d", got.StepsCompleted, got.StepsTotal)
	}
	if got.LayersCompleted != 0 || got.LayersCached != 0 || got.BaseImageLayers != 0 {
		t.Errorf("Expected zero layer counters, got %+v", got)
	}
	if got.FinalImageID != "" {
		t.Errorf("Expected no final image id, got %q", got.FinalImageID)
	}
	if sink.flushes != 1 {
		t.Errorf("Expected partial stats flushed once, got %d", sink.flushes)
	}
	if sink.lastFlush != got {
		t.Errorf("Flushed snapshot differs from returned stats")
	}
}

// TestPipelineDeterministic verifies a fresh pipeline over the same
// event sequence produces identical narration and stats.
func TestPipelineDeterministic(t *testing.T) {
	lines := []string{
		"STEP 1/2: FROM alpine:latest",
		"Trying to pull docker.io/library/alpine:latest...",
		"Getting image source signatures",
		"Copying blob sha256:abcd done",
		"--> e63fd7e7b356",
		"STEP 2/2: RUN echo hi",
		"--> Using cache 0dca35029b5a",
		"COMMIT myapp:dev",
		"Successfully built 59c90a041ff7",
	}

	first := &mockSink{}
	s1, err := New(true, first).Run(context.Background(), feed(lines...))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	second := &mockSink{}
	s2, err := New(true, second).Run(context.Background(), feed(lines...))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if s1 != s2 {
		t.Errorf("Stats differ across identical runs: %+v vs %+v", s1, s2)
	}
	if len(first.messages) != len(second.messages) {
		t.Fatalf("Narration length differs: %d vs %d", len(first.messages), len(second.messages))
	}
	for i := range first.messages {
		if first.messages[i] != second.messages[i] {
			t.Errorf("Message %d differs: %v vs %v", i, first.messages[i], second.messages[i])
		}
	}
}

// TestPipelineFlushIdempotent verifies repeated flushes deliver the
// snapshot only once.
func TestPipelineFlushIdempotent(t *testing.T) {
	sink := &mockSink{}
	p := New(false, sink)

	p.Process(model.LineEvent("STEP 1/1: FROM alpine:latest"))
	p.Flush()
	p.Flush()

	if sink.flushes != 1 {
		t.Errorf("Expected one flush, got %d", sink.flushes)
	}
}

// TestPipelineEmptyStream verifies a build that closes without events
// flushes zero-valued stats.
func TestPipelineEmptyStream(t *testing.T) {
	sink := &mockSink{}
	p := New(false, sink)

	s, err := p.Run(context.Background(), feed())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if s != (stats.BuildStats{}) {
		t.Errorf("Expected zero stats, got %+v", s)
	}
	if sink.flushes != 1 {
		t.Errorf("Expected flush on empty stream, got %d", sink.flushes)
	}
}

// --- Mock implementations for testing ---

type mockSink struct {
	messages  []narrate.Message
	flushes   int
	lastFlush stats.BuildStats
}

func (m *mockSink) Emit(msg narrate.Message) {
	m.messages = append(m.messages, msg)
}

func (m *mockSink) Flush(snapshot stats.BuildStats) {
	m.flushes++
	m.lastFlush = snapshot
}
