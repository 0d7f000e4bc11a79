package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"imageharvester/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Harvest images from web image search",
	Long: `Image Harvester searches the Bing Image Search API and downloads the results.

Every image is:
  - fetched through a shared request gate with bounded retries
  - checked against a minimum width and height using its real dimensions
  - re-encoded to JPG or PNG and named after a hash of its URL
  - written atomically, so reruns never duplicate files

Each run stops after a fixed number of admitted images and waits for
in-flight work to finish before reporting.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if quiet {
			logLevel = "error"
		}
		if cmd.Name() == "search" && !quiet {
			ui.PrintBanner()
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.Out = os.Stderr
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./harvester.yaml or ~/.harvester.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print errors and the final summary")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print one line per image instead of a progress bar")

	rootCmd.SetVersionTemplate(`Image Harvester {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
