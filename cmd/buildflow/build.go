package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/buildflow/buildflow/internal/model"
	"github.com/buildflow/buildflow/pkg/config"
	"github.com/buildflow/buildflow/pkg/engine"
	bferrors "github.com/buildflow/buildflow/pkg/errors"
	"github.com/buildflow/buildflow/pkg/hooks"
	"github.com/buildflow/buildflow/pkg/pipeline"
	"github.com/buildflow/buildflow/pkg/telemetry"
	"github.com/buildflow/buildflow/pkg/tui"
)

func runBuild(cmd *cobra.Command, args []string) error {
	cfg := config.Global().Get()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, flushing partial results...")
		cancel()
	}()

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	report, err := executeBuild(ctx, cfg, dir)
	if report != nil {
		term := tui.NewTerminal(os.Stdout, cfg.Build.Verbose)
		term.PrintReport(*report)
	}
	return err
}

// executeBuild runs one full build cycle: resolve, stream, narrate,
// verify, push. Shared between build and watch.
func executeBuild(ctx context.Context, cfg *config.Config, dir string) (*tui.Report, error) {
	df := dockerfile
	if df == "" {
		df = cfg.Build.Dockerfile
	}
	if err := engine.CheckContext(dir, df); err != nil {
		return nil, err
	}

	image, err := engine.ResolveImage(imageName, imageTag, dir)
	if err != nil {
		return nil, err
	}

	plat := platform
	if plat == "" {
		plat = cfg.Engine.Platform
	}

	eng := engine.New(cfg.Engine.Binary, log.Logger)
	if err := eng.Check(); err != nil {
		return nil, err
	}

	// Optional trace export
	var shutdown func(context.Context) error
	exporter := telemetry.NewOTLPExporter(telemetry.OTLPConfig{
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    "buildflow",
		ServiceVersion: version,
		InsecureTLS:    true,
	})
	if cfg.Telemetry.Enabled {
		if shutdown, err = exporter.Init(ctx); err != nil {
			log.Warn().Err(err).Msg("telemetry init failed, continuing without traces")
			shutdown = nil
		}
	}
	if shutdown != nil {
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := shutdown(sctx); err != nil {
				log.Warn().Err(err).Msg("telemetry shutdown failed")
			}
		}()
	}

	spanCtx := ctx
	var span = noopSpan()
	if exporter.IsInitialized() {
		spanCtx, span = telemetry.StartBuildSpan(ctx, exporter.Tracer(), image)
	}
	defer span.End()

	opts := engine.BuildOptions{
		ContextDir: dir,
		Dockerfile: df,
		Image:      image,
		Platform:   plat,
		Pull:       pullBase || cfg.Build.Pull,
		NoCache:    noCache,
	}

	hookMgr := hooks.FromConfig(log.Logger, cfg.Hooks.PreBuild, cfg.Hooks.PostBuild)
	info := &hooks.BuildInfo{Image: image, ContextDir: dir, Dockerfile: df}
	if err := hookMgr.RunPreBuild(spanCtx, info); err != nil {
		return nil, bferrors.Wrap(err, bferrors.CodeBuildFailed, "pre-build hook failed")
	}

	term := tui.NewTerminal(os.Stdout, cfg.Build.Verbose)
	pipe := pipeline.New(cfg.Build.Verbose, term)
	raw := make(chan model.RawEvent, 64)
	events := make(chan model.RawEvent, 64)
	logBuf := tui.NewLogBuffer(200)

	log.Info().Str("image", image).Str("context", dir).Msg("starting build")
	start := time.Now()

	g, gctx := errgroup.WithContext(spanCtx)
	g.Go(func() error {
		return eng.Build(gctx, opts, raw)
	})

	// Tee the stream into the failure log before the pipeline consumes it.
	g.Go(func() error {
		defer close(events)
		for ev := range raw {
			logBuf.Record(ev)
			select {
			case events <- ev:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var buildStats = pipe.Stats()
	g.Go(func() error {
		s, err := pipe.Run(gctx, events)
		buildStats = s
		return err
	})

	buildErr := g.Wait()
	elapsed := time.Since(start)
	tui.ClearLine(os.Stdout)

	report := &tui.Report{
		Image:    image,
		Duration: elapsed,
	}

	if buildErr != nil {
		hookMgr.RunError(context.WithoutCancel(ctx), info, buildErr)
		// Cancellation still delivers the partial statistics block.
		if bferrors.IsCode(buildErr, bferrors.CodeContextCanceled) || ctx.Err() != nil {
			report.Stats = buildStats
			report.Partial = true
			return report, buildErr
		}
		tui.PrintFailure(os.Stderr, tui.FailureReport{
			Log:      logBuf.Lines(),
			Stats:    buildStats,
			Duration: elapsed,
			Err:      buildErr,
		})
		return nil, buildErr
	}

	// Fold base image layers the stream never itemized into the totals.
	if result, err := eng.Verify(spanCtx, image); err != nil {
		log.Warn().Err(err).Msg("image verification failed")
	} else {
		pipe.Reconcile(result.LayerCount)
		report.ImageSize = result.SizeBytes
	}
	report.Stats = pipe.Stats()

	if doPush {
		log.Info().Str("image", image).Msg("pushing image")
		if err := eng.Push(spanCtx, image); err != nil {
			return report, err
		}
		report.Pushed = true
	}

	hookMgr.RunPostBuild(spanCtx, info, report.Stats)

	telemetry.RecordStats(span, report.Stats)
	log.Info().
		Dur("elapsed", elapsed).
		Int("steps", report.Stats.StepsCompleted).
		Int("cached", report.Stats.LayersCached).
		Msg("build finished")

	return report, nil
}

// noopSpan stands in when telemetry is disabled so the build path
// never branches on span presence.
func noopSpan() trace.Span {
	_, span := noop.NewTracerProvider().Tracer("buildflow").Start(context.Background(), "build")
	return span
}
