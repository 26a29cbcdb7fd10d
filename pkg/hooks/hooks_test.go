package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/buildflow/buildflow/pkg/stats"
)

// TestPreBuildOrderAndAbort verifies pre-build hooks run in order and
// the first failure aborts.
func TestPreBuildOrderAndAbort(t *testing.T) {
	m := NewManager(zerolog.Nop())

	var order []int
	m.RegisterPreBuild(func(ctx context.Context, info *BuildInfo) error {
		order = append(order, 1)
		return nil
	})
	m.RegisterPreBuild(func(ctx context.Context, info *BuildInfo) error {
		order = append(order, 2)
		return errors.New("lint failed")
	})
	m.RegisterPreBuild(func(ctx context.Context, info *BuildInfo) error {
		order = append(order, 3)
		return nil
	})

	err := m.RunPreBuild(context.Background(), &BuildInfo{Image: "myapp:dev"})
	if err == nil {
		t.Fatal("Expected pre-build failure to propagate")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("Expected hooks 1,2 to run, got %v", order)
	}
}

// TestPostBuildFailuresAreNonFatal verifies every post-build hook runs
// even when an earlier one fails.
func TestPostBuildFailuresAreNonFatal(t *testing.T) {
	m := NewManager(zerolog.Nop())

	ran := 0
	m.RegisterPostBuild(func(ctx context.Context, info *BuildInfo, result stats.BuildStats) error {
		ran++
		return errors.New("webhook down")
	})
	m.RegisterPostBuild(func(ctx context.Context, info *BuildInfo, result stats.BuildStats) error {
		ran++
		if result.FinalImageID != "59c90a04" {
			t.Errorf("Expected stats passed through, got %q", result.FinalImageID)
		}
		return nil
	})

	m.RunPostBuild(context.Background(), &BuildInfo{}, stats.BuildStats{FinalImageID: "59c90a04"})
	if ran != 2 {
		t.Errorf("Expected both hooks to run, got %d", ran)
	}
}

// TestCommandHookEnvironment verifies shell hooks see the build info in
// their environment.
func TestCommandHookEnvironment(t *testing.T) {
	dir := t.TempDir()
	hook := CommandHook(`test "$BUILDFLOW_IMAGE" = myapp:dev`)

	err := hook(context.Background(), &BuildInfo{
		Image:      "myapp:dev",
		ContextDir: dir,
		Dockerfile: "Dockerfile",
	})
	if err != nil {
		t.Errorf("Expected hook to see image env var: %v", err)
	}
}

// TestFromConfig verifies config-declared commands register as hooks.
func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	m := FromConfig(zerolog.Nop(), []string{"true"}, []string{"true"})

	info := &BuildInfo{Image: "a:b", ContextDir: dir}
	if err := m.RunPreBuild(context.Background(), info); err != nil {
		t.Errorf("Expected pre-build command to pass: %v", err)
	}
	m.RunPostBuild(context.Background(), info, stats.BuildStats{})
}
