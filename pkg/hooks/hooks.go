// Package hooks runs user-defined commands at build lifecycle points.
// Hooks allow injecting custom logic before and after builds without
// wrapping the tool in scripts.
package hooks

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/buildflow/buildflow/pkg/stats"
)

// PreBuildHook is called before the build starts.
// Use cases: code generation, lint gates, secret fetching.
type PreBuildHook func(ctx context.Context, info *BuildInfo) error

// PostBuildHook is called after a successful build.
// Use cases: notifications, deploy triggers, registry cleanup.
type PostBuildHook func(ctx context.Context, info *BuildInfo, result stats.BuildStats) error

// ErrorHook is called when the build fails.
type ErrorHook func(ctx context.Context, info *BuildInfo, err error)

// BuildInfo describes the build a hook runs against.
type BuildInfo struct {
	Image      string
	ContextDir string
	Dockerfile string
}

// Manager holds the registered hooks for one build run.
type Manager struct {
	mu sync.RWMutex

	preBuildHooks  []PreBuildHook
	postBuildHooks []PostBuildHook
	errorHooks     []ErrorHook

	log zerolog.Logger
}

// NewManager creates an empty hook manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log}
}

// RegisterPreBuild adds a pre-build hook.
func (m *Manager) RegisterPreBuild(hook PreBuildHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preBuildHooks = append(m.preBuildHooks, hook)
}

// RegisterPostBuild adds a post-build hook.
func (m *Manager) RegisterPostBuild(hook PostBuildHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postBuildHooks = append(m.postBuildHooks, hook)
}

// RegisterError adds an error hook.
func (m *Manager) RegisterError(hook ErrorHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorHooks = append(m.errorHooks, hook)
}

// RunPreBuild executes all pre-build hooks in registration order.
// The first error aborts the build.
func (m *Manager) RunPreBuild(ctx context.Context, info *BuildInfo) error {
	m.mu.RLock()
	hooks := m.preBuildHooks
	m.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, info); err != nil {
			return err
		}
	}
	return nil
}

// RunPostBuild executes all post-build hooks. Hook failures are logged,
// not fatal: the image already exists.
func (m *Manager) RunPostBuild(ctx context.Context, info *BuildInfo, result stats.BuildStats) {
	m.mu.RLock()
	hooks := m.postBuildHooks
	m.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, info, result); err != nil {
			m.log.Warn().Err(err).Msg("post-build hook failed")
		}
	}
}

// RunError executes all error hooks.
func (m *Manager) RunError(ctx context.Context, info *BuildInfo, buildErr error) {
	m.mu.RLock()
	hooks := m.errorHooks
	m.mu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, info, buildErr)
	}
}

// CommandHook wraps a shell command as a hook. The build's image
// reference and context are exposed through the environment.
func CommandHook(command string) PreBuildHook {
	return func(ctx context.Context, info *BuildInfo) error {
		return runCommand(ctx, command, info, nil)
	}
}

// PostCommandHook wraps a shell command as a post-build hook, with the
// build statistics added to the environment.
func PostCommandHook(command string) PostBuildHook {
	return func(ctx context.Context, info *BuildInfo, result stats.BuildStats) error {
		return runCommand(ctx, command, info, &result)
	}
}

func runCommand(ctx context.Context, command string, info *BuildInfo, result *stats.BuildStats) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = info.ContextDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"BUILDFLOW_IMAGE="+info.Image,
		"BUILDFLOW_CONTEXT="+info.ContextDir,
		"BUILDFLOW_DOCKERFILE="+info.Dockerfile,
	)
	if result != nil {
		cmd.Env = append(cmd.Env,
			"BUILDFLOW_IMAGE_ID="+result.FinalImageID,
			"BUILDFLOW_LAYERS_CACHED="+strconv.Itoa(result.LayersCached),
			"BUILDFLOW_LAYERS_BUILT="+strconv.Itoa(result.LayersCompleted),
		)
	}
	return cmd.Run()
}

// FromConfig builds a manager from config-declared hook commands.
func FromConfig(log zerolog.Logger, preBuild, postBuild []string) *Manager {
	m := NewManager(log)
	for _, command := range preBuild {
		m.RegisterPreBuild(CommandHook(command))
	}
	for _, command := range postBuild {
		m.RegisterPostBuild(PostCommandHook(command))
	}
	return m
}
