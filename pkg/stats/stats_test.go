package stats

import (
	"testing"

	"github.com/buildflow/buildflow/internal/model"
)

// TestAggregatorTwoStepBuild walks a small FROM+RUN build with one
// fresh layer and one cache hit and checks every counter.
func TestAggregatorTwoStepBuild(t *testing.T) {
	a := NewAggregator()

	a.Apply(model.StepStarted{Index: 1, Total: 2, Kind: model.InstructionFrom})
	a.Apply(model.LayerCompleted{ShortID: "e63fd7e7"})
	a.Apply(model.StepStarted{Index: 2, Total: 2, Kind: model.InstructionRun})
	a.Apply(model.LayerCached{ShortID: "0dca3502"})
	a.Apply(model.BuildSucceeded{ShortID: "59c90a04"})

	s := a.Snapshot()
	if s.StepsTotal != 2 || s.StepsCompleted != 2 {
		t.Errorf("Expected 2/2 steps, got %d/%d", s.StepsCompleted, s.StepsTotal)
	}
	if s.LayersCompleted != 1 || s.LayersCached != 1 {
		t.Errorf("Expected 1 completed + 1 cached, got %d + %d", s.LayersCompleted, s.LayersCached)
	}
	if s.BaseImageLayers != 1 {
		t.Errorf("Expected 1 base image layer, got %d", s.BaseImageLayers)
	}
	if s.FinalImageID != "59c90a04" {
		t.Errorf("Expected final image id 59c90a04, got %q", s.FinalImageID)
	}

	ratio, ok := s.CacheHitRatio()
	if !ok || ratio != 0.5 {
		t.Errorf("Expected cache hit ratio 0.5, got %v (defined=%v)", ratio, ok)
	}
}

// TestCacheHitRatioUndefined verifies the ratio is reported undefined
// with zero observed layers, not as 0 or NaN.
func TestCacheHitRatioUndefined(t *testing.T) {
	var s BuildStats
	if _, ok := s.CacheHitRatio(); ok {
		t.Error("Expected undefined ratio with no layers observed")
	}
}

// TestAggregatorStepsTotalSetOnce verifies the first valid total wins
// and later disagreeing totals are ignored.
func TestAggregatorStepsTotalSetOnce(t *testing.T) {
	a := NewAggregator()

	a.Apply(model.StepStarted{Index: 1, Total: 0})
	a.Apply(model.StepStarted{Index: 2, Total: 4})
	a.Apply(model.StepStarted{Index: 3, Total: 9})

	s := a.Snapshot()
	if s.StepsTotal != 4 {
		t.Errorf("Expected first valid total 4 to stick, got %d", s.StepsTotal)
	}
	if s.StepsCompleted != 3 {
		t.Errorf("Expected steps completed 3, got %d", s.StepsCompleted)
	}
}

// TestAggregatorStepsCompletedIsMax verifies out-of-order step indices
// never decrease the completed count.
func TestAggregatorStepsCompletedIsMax(t *testing.T) {
	a := NewAggregator()

	a.Apply(model.StepStarted{Index: 3, Total: 4})
	a.Apply(model.StepStarted{Index: 1, Total: 4})

	if got := a.Snapshot().StepsCompleted; got != 3 {
		t.Errorf("Expected max index 3, got %d", got)
	}
}

// TestAggregatorBaseAttributionWindow verifies layers count toward the
// base image only between the first FROM and the next non-FROM step.
func TestAggregatorBaseAttributionWindow(t *testing.T) {
	a := NewAggregator()

	a.Apply(model.StepStarted{Index: 1, Total: 3, Kind: model.InstructionFrom})
	a.Apply(model.LayerCached{ShortID: "aaaa1111"})
	a.Apply(model.LayerCached{ShortID: "bbbb2222"})
	a.Apply(model.StepStarted{Index: 2, Total: 3, Kind: model.InstructionRun})
	a.Apply(model.LayerCompleted{ShortID: "cccc3333"})
	// Multi-stage: a second FROM does not reopen the window.
	a.Apply(model.StepStarted{Index: 3, Total: 3, Kind: model.InstructionFrom})
	a.Apply(model.LayerCached{ShortID: "dddd4444"})

	s := a.Snapshot()
	if s.BaseImageLayers != 2 {
		t.Errorf("Expected 2 base image layers, got %d", s.BaseImageLayers)
	}
	if s.LayersCached != 3 || s.LayersCompleted != 1 {
		t.Errorf("Expected 3 cached + 1 completed, got %d + %d", s.LayersCached, s.LayersCompleted)
	}
}

// TestAggregatorSucceededBeforeSteps verifies a fully cached build that
// reports success with no step headers is treated as valid.
func TestAggregatorSucceededBeforeSteps(t *testing.T) {
	a := NewAggregator()

	a.Apply(model.BuildSucceeded{ShortID: "59c90a04"})

	s := a.Snapshot()
	if s.StepsCompleted != 0 || s.StepsTotal != 0 {
		t.Errorf("Expected zero steps, got %d/%d", s.StepsCompleted, s.StepsTotal)
	}
	if s.FinalImageID != "59c90a04" {
		t.Errorf("Expected final image id recorded, got %q", s.FinalImageID)
	}
}

// TestAggregatorFirstSuccessWins verifies repeated success signals keep
// the first image id.
func TestAggregatorFirstSuccessWins(t *testing.T) {
	a := NewAggregator()

	a.Apply(model.BuildSucceeded{ShortID: "11111111"})
	a.Apply(model.BuildSucceeded{ShortID: "22222222"})

	if got := a.Snapshot().FinalImageID; got != "11111111" {
		t.Errorf("Expected first id to win, got %q", got)
	}
}

// TestReconcileLayerCount verifies layers the stream never itemized are
// folded in as base-image cache hits.
func TestReconcileLayerCount(t *testing.T) {
	a := NewAggregator()

	a.Apply(model.StepStarted{Index: 1, Total: 2, Kind: model.InstructionFrom})
	a.Apply(model.StepStarted{Index: 2, Total: 2, Kind: model.InstructionRun})
	a.Apply(model.LayerCompleted{ShortID: "cccc3333"})

	a.ReconcileLayerCount(4)

	s := a.Snapshot()
	if s.LayersCached != 3 {
		t.Errorf("Expected 3 reconciled cache hits, got %d", s.LayersCached)
	}
	if s.BaseImageLayers != 3 {
		t.Errorf("Expected 3 base image layers, got %d", s.BaseImageLayers)
	}

	// A count at or below what was observed changes nothing.
	a.ReconcileLayerCount(4)
	if got := a.Snapshot().LayersCached; got != 3 {
		t.Errorf("Expected reconcile to be stable, got %d cached", got)
	}
}
