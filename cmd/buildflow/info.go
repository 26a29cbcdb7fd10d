package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/buildflow/buildflow/pkg/config"
	"github.com/buildflow/buildflow/pkg/engine"
	"github.com/rs/zerolog/log"
)

func runInfo(cmd *cobra.Command, args []string) error {
	mgr := config.Global()
	cfg := mgr.Get()

	fmt.Printf("buildflow %s (%s)\n", version, commit)
	fmt.Printf("go:        %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Printf("engine:    %s\n", cfg.Engine.Binary)
	fmt.Printf("platform:  %s\n", cfg.Engine.Platform)

	eng := engine.New(cfg.Engine.Binary, log.Logger)
	if err := eng.Check(); err != nil {
		fmt.Printf("status:    not found on PATH\n")
	} else if v, err := eng.Version(cmd.Context()); err == nil {
		fmt.Printf("status:    %s\n", v)
	} else {
		fmt.Printf("status:    found, version unavailable\n")
	}

	if paths := mgr.GetPaths(); len(paths) > 0 {
		fmt.Println("config:")
		for _, p := range paths {
			fmt.Printf("  - %s\n", p)
		}
	} else {
		fmt.Println("config:    defaults (no files loaded)")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out, err := config.Global().Dump()
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
