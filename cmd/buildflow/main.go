// BuildFlow - Container build narrator
// Runs docker/podman builds and turns their raw output into readable
// progress with end-of-build cache statistics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/buildflow/buildflow/internal/logging"
	"github.com/buildflow/buildflow/pkg/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	dockerfile string
	imageName  string
	imageTag   string
	platform   string
	pullBase   bool
	noCache    bool
	doPush     bool
	verbose    bool

	// Watch flags
	debounceFlag string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "buildflow",
	Short: "BuildFlow - Readable container builds",
	Long: `BuildFlow runs container image builds through docker or podman and
narrates their progress: one human-readable line per build event in
normal mode, every raw engine line in verbose mode, and a cache
statistics summary at the end.`,
	Version: fmt.Sprintf("%s (%s)", version, commit),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mgr := config.Global()
		if err := mgr.Load(); err != nil {
			return err
		}
		cfg := mgr.Get()
		if verbose {
			cfg.Build.Verbose = true
		}
		logging.Init(cfg.Log.Level, cfg.Log.Pretty)
		return nil
	},
}

var buildCmd = &cobra.Command{
	Use:   "build [context-dir]",
	Short: "Build a container image with narrated progress",
	Long: `Build a container image from a directory containing a Dockerfile.

The image name defaults to the context directory name and the tag to
the current git commit's short hash.

Examples:
  buildflow build
  buildflow build ./services/api
  buildflow build -t myapp:latest --push
  buildflow build --verbose --no-cache`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

var watchCmd = &cobra.Command{
	Use:   "watch [context-dir]",
	Short: "Rebuild automatically when the build context changes",
	Long: `Watch the build context directory and re-run the build whenever a
file changes. Changes within the debounce window are coalesced into a
single rebuild.

Examples:
  buildflow watch
  buildflow watch ./services/api --debounce 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show engine and environment information",
	RunE:  runInfo,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage buildflow configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show every raw engine event")

	buildCmd.Flags().StringVarP(&dockerfile, "file", "f", "", "Dockerfile path relative to the context")
	buildCmd.Flags().StringVar(&imageName, "name", "", "Image name (defaults to context directory name)")
	buildCmd.Flags().StringVarP(&imageTag, "tag", "t", "", "Image tag, or full name:tag reference")
	buildCmd.Flags().StringVar(&platform, "platform", "", "Target platform (e.g. linux/amd64)")
	buildCmd.Flags().BoolVar(&pullBase, "pull", false, "Always pull newer base images")
	buildCmd.Flags().BoolVar(&noCache, "no-cache", false, "Build without layer cache")
	buildCmd.Flags().BoolVar(&doPush, "push", false, "Push the image after a successful build")

	watchCmd.Flags().StringVarP(&dockerfile, "file", "f", "", "Dockerfile path relative to the context")
	watchCmd.Flags().StringVar(&imageName, "name", "", "Image name (defaults to context directory name)")
	watchCmd.Flags().StringVarP(&imageTag, "tag", "t", "", "Image tag, or full name:tag reference")
	watchCmd.Flags().StringVar(&debounceFlag, "debounce", "", "Debounce window for change events (e.g. 500ms)")

	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(configCmd)
}
