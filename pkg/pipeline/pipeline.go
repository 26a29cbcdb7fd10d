// Package pipeline connects the build event stream to the classifier,
// stats aggregator, and narrator.
//
// The pipeline is single-threaded and cooperative: classification,
// aggregation, and narration for one event complete before the next
// event is read, so no locking is needed anywhere downstream. The only
// suspension point is the wait for the next raw event.
package pipeline

import (
	"context"

	"github.com/buildflow/buildflow/internal/model"
	"github.com/buildflow/buildflow/pkg/classify"
	"github.com/buildflow/buildflow/pkg/narrate"
	"github.com/buildflow/buildflow/pkg/stats"
)

// Sink receives narration messages in signal order and, once per run,
// the final stats snapshot. Emit must complete before the pipeline
// processes the next signal.
type Sink interface {
	Emit(msg narrate.Message)
	Flush(snapshot stats.BuildStats)
}

// Pipeline owns one run's classifier, aggregator, and narrator state.
// A fresh Pipeline over the same event sequence produces identical
// narration and stats.
type Pipeline struct {
	classifier *classify.Classifier
	aggregator *stats.Aggregator
	narrator   *narrate.Narrator
	sink       Sink

	flushed bool
}

// New creates a pipeline. The verbose flag is fixed for the run.
func New(verbose bool, sink Sink) *Pipeline {
	mode := classify.ModeNormal
	if verbose {
		mode = classify.ModeVerbose
	}
	return &Pipeline{
		classifier: classify.New(mode),
		aggregator: stats.NewAggregator(),
		narrator:   narrate.New(verbose),
		sink:       sink,
	}
}

// Process classifies one event and feeds the resulting signals to the
// aggregator and narrator in lockstep.
func (p *Pipeline) Process(ev model.RawEvent) {
	for _, sig := range p.classifier.Classify(ev) {
		p.aggregator.Apply(sig)
		for _, msg := range p.narrator.Narrate(sig) {
			p.sink.Emit(msg)
		}
	}
}

// Run consumes events until the feed closes or ctx is cancelled, then
// flushes the stats snapshot to the sink. On cancellation the flushed
// snapshot is partial; partial results are valid, and the context error
// is returned so the caller can tell the two endings apart.
func (p *Pipeline) Run(ctx context.Context, events <-chan model.RawEvent) (stats.BuildStats, error) {
	defer p.Flush()

	for {
		select {
		case <-ctx.Done():
			return p.aggregator.Snapshot(), ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return p.aggregator.Snapshot(), nil
			}
			p.Process(ev)
		}
	}
}

// Flush delivers the stats snapshot to the sink. It is idempotent so an
// external caller may force an early flush on shutdown paths.
func (p *Pipeline) Flush() {
	if p.flushed {
		return
	}
	p.flushed = true
	p.sink.Flush(p.aggregator.Snapshot())
}

// Stats returns the current snapshot without flushing.
func (p *Pipeline) Stats() stats.BuildStats {
	return p.aggregator.Snapshot()
}

// Reconcile forwards a verified layer count to the aggregator.
func (p *Pipeline) Reconcile(actualLayers int) {
	p.aggregator.ReconcileLayerCount(actualLayers)
}
