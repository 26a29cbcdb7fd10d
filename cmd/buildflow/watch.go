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

	"github.com/buildflow/buildflow/pkg/config"
	"github.com/buildflow/buildflow/pkg/tui"
	"github.com/buildflow/buildflow/pkg/watch"
)

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Global().Get()

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	debounce := cfg.Watch.Debounce
	if debounceFlag != "" {
		d, err := time.ParseDuration(debounceFlag)
		if err != nil {
			return fmt.Errorf("invalid debounce %q: %w", debounceFlag, err)
		}
		debounce = d
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nStopping watch...")
		cancel()
	}()

	watcher, err := watch.NewWatcher(debounce)
	if err != nil {
		return err
	}
	defer watcher.Close()

	watcher.OnChange = func(path string) error {
		log.Info().Str("path", path).Msg("context changed, rebuilding")
		report, err := executeBuild(ctx, cfg, dir)
		if report != nil {
			term := tui.NewTerminal(os.Stdout, cfg.Build.Verbose)
			term.PrintReport(*report)
		}
		if err != nil && ctx.Err() == nil {
			// Keep watching after a failed build; the next save retries.
			fmt.Fprintln(os.Stderr, err)
		}
		return nil
	}
	watcher.OnError = func(path string, err error) {
		log.Error().Str("path", path).Err(err).Msg("watch error")
	}

	if err := watcher.Watch(dir); err != nil {
		return err
	}

	// Initial build before entering the loop
	if report, err := executeBuild(ctx, cfg, dir); report != nil {
		term := tui.NewTerminal(os.Stdout, cfg.Build.Verbose)
		term.PrintReport(*report)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	fmt.Printf("\nWatching %s (debounce %s), Ctrl-C to stop\n", dir, debounce)
	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
