// Package stats folds classified build signals into build statistics.
package stats

import "github.com/buildflow/buildflow/internal/model"

// BuildStats is a snapshot of the running aggregate for one build.
type BuildStats struct {
	// StepsTotal is the declared step count, 0 until a step reports a
	// valid total. Set once; later totals are ignored.
	StepsTotal int

	// StepsCompleted is the highest step index observed.
	StepsCompleted int

	// LayersCompleted counts freshly built layers.
	LayersCompleted int

	// LayersCached counts layers satisfied from cache.
	LayersCached int

	// BaseImageLayers counts layers attributed to the first FROM step.
	BaseImageLayers int

	// FinalImageID is the short id from BuildSucceeded, "" until seen.
	FinalImageID string
}

// CacheHitRatio returns cached/(cached+completed). The boolean is false
// when no layers have been observed; callers must not read the ratio then.
func (s BuildStats) CacheHitRatio() (float64, bool) {
	total := s.LayersCached + s.LayersCompleted
	if total == 0 {
		return 0, false
	}
	return float64(s.LayersCached) / float64(total), true
}

// Aggregator reduces signals into BuildStats. It never errors: malformed
// or out-of-order signals degrade to no-ops or plain counter increments.
// Not safe for concurrent use; the pipeline feeds it in lockstep.
type Aggregator struct {
	stats BuildStats

	// Base-image attribution window: open from the first FROM step until
	// the next non-FROM step.
	seenFrom    bool
	attributing bool
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Apply folds one signal into the running stats.
func (a *Aggregator) Apply(sig model.Signal) {
	switch s := sig.(type) {
	case model.StepStarted:
		if s.Total > 0 && a.stats.StepsTotal == 0 {
			a.stats.StepsTotal = s.Total
		}
		if s.Index > a.stats.StepsCompleted {
			a.stats.StepsCompleted = s.Index
		}
		if s.Kind == model.InstructionFrom {
			if !a.seenFrom {
				a.seenFrom = true
				a.attributing = true
			}
		} else {
			a.attributing = false
		}

	case model.LayerCompleted:
		a.stats.LayersCompleted++
		if a.attributing {
			a.stats.BaseImageLayers++
		}

	case model.LayerCached:
		a.stats.LayersCached++
		if a.attributing {
			a.stats.BaseImageLayers++
		}

	case model.BuildSucceeded:
		// First occurrence wins; repeats are valid and ignored.
		if a.stats.FinalImageID == "" {
			a.stats.FinalImageID = s.ShortID
		}
	}
}

// ReconcileLayerCount folds layers the stream never reported into the
// totals. Builders skip cache messages for base layers already present
// locally, so when the final image has more layers than the stream
// accounted for, the difference is attributed to the base image as
// cache hits.
func (a *Aggregator) ReconcileLayerCount(actualLayers int) {
	counted := a.stats.LayersCached + a.stats.LayersCompleted
	if actualLayers <= counted {
		return
	}
	uncounted := actualLayers - counted
	a.stats.LayersCached += uncounted
	a.stats.BaseImageLayers += uncounted
}

// Snapshot returns a copy of the current stats.
func (a *Aggregator) Snapshot() BuildStats {
	return a.stats
}
