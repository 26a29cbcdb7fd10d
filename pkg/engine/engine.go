// Package engine invokes a Docker-compatible image builder and exposes
// its output as an ordered stream of raw events.
//
// The engine is the pipeline's event source: it does not classify or
// interpret builder output beyond splitting the wire format into
// RawEvent payloads. Podman and the classic Docker builder emit plain
// text lines; the Docker API wire format emits JSON messages, one per
// line. Both are handled transparently.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/buildflow/buildflow/internal/model"
	"github.com/buildflow/buildflow/pkg/errors"
)

// DefaultPlatform is used when no platform is requested.
const DefaultPlatform = "linux/amd64"

// BuildOptions configures one build invocation.
type BuildOptions struct {
	// ContextDir is the build context directory.
	ContextDir string

	// Dockerfile is the path to the Dockerfile, relative to ContextDir.
	Dockerfile string

	// Image is the full image reference to tag (name:tag).
	Image string

	// Platform to build for (e.g. "linux/amd64").
	Platform string

	// Pull forces pulling newer versions of base images.
	Pull bool

	// NoCache disables the layer cache.
	NoCache bool
}

// Engine drives an external builder binary.
type Engine struct {
	binary string
	log    zerolog.Logger
}

// New creates an engine for the given builder binary ("docker", "podman").
func New(binary string, log zerolog.Logger) *Engine {
	return &Engine{binary: binary, log: log}
}

// Binary returns the builder binary name.
func (e *Engine) Binary() string { return e.binary }

// Check verifies the builder binary is available.
func (e *Engine) Check() error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return errors.EngineNotFound(e.binary)
	}
	return nil
}

// Version returns the builder's version string.
func (e *Engine) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, e.binary, "version", "--format", "{{.Client.Version}}").Output()
	if err != nil {
		// Podman and older clients reject the Docker format string.
		out, err = exec.CommandContext(ctx, e.binary, "--version").Output()
		if err != nil {
			return "", errors.Wrap(err, errors.CodeEngineStart, "failed to query builder version")
		}
	}
	return strings.TrimSpace(string(out)), nil
}

// Build runs the builder and streams its output as RawEvents on events.
// The channel is closed when the build terminates, so consumers can
// range over it. The returned error reports abnormal engine exit; build
// output already streamed stays valid in that case.
func (e *Engine) Build(ctx context.Context, opts BuildOptions, events chan<- model.RawEvent) error {
	defer close(events)

	session := uuid.NewString()
	args := e.buildArgs(opts, session)

	e.log.Debug().
		Str("binary", e.binary).
		Str("session", session).
		Strs("args", args).
		Msg("starting build")

	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Dir = opts.ContextDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, errors.CodeEngineStart, "failed to open builder stdout")
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, errors.CodeEngineStart, "failed to start build engine")
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		for _, ev := range DecodeLine(scanner.Text()) {
			select {
			case <-ctx.Done():
				_ = cmd.Wait()
				return ctx.Err()
			case events <- ev:
			}
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return errors.Wrap(err, errors.CodeEngineStream, "build output stream failed")
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return errors.BuildFailed(detail)
	}
	return nil
}

// buildArgs assembles the builder command line.
func (e *Engine) buildArgs(opts BuildOptions, session string) []string {
	args := []string{"build"}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	if opts.Image != "" {
		args = append(args, "-t", opts.Image)
	}
	platform := opts.Platform
	if platform == "" {
		platform = DefaultPlatform
	}
	args = append(args, "--platform", platform)
	if opts.Pull {
		args = append(args, "--pull")
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	args = append(args, "--label", "buildflow.session="+session)
	args = append(args, ".")
	return args
}

// Push pushes a built image to its registry.
func (e *Engine) Push(ctx context.Context, image string) error {
	cmd := exec.CommandContext(ctx, e.binary, "push", image)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, errors.CodeEngineExit, "push failed").
			WithContext("image", image).
			WithContext("detail", strings.TrimSpace(stderr.String()))
	}
	return nil
}
