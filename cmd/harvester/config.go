package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imageharvester/pkg/config"
	"imageharvester/pkg/credentials"
	"imageharvester/pkg/ui"
)

const configHeader = `# Image Harvester configuration
#
# Values here are overridden by environment variables (HARVESTER_*,
# BING_SEARCH_API_KEY, MAX_IMAGES_PER_SEARCH, DEFAULT_REQUEST_DELAY, ...)
# and by command line flags. Durations use Go syntax: 500ms, 2s, 1m.
#
# Leave search.api_key empty and run 'harvester auth set-key' to keep the
# key out of this file.

`

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Image Harvester configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables and .env
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the default values",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging defaults, the configuration file and
the environment. The API key is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "harvester.yaml"
	switch {
	case len(args) > 0:
		path = args[0]
	case configFile != "":
		path = configFile
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := writeDefaultConfig(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'harvester auth set-key' or set BING_SEARCH_API_KEY")
	fmt.Println("2. Run 'harvester config validate' to check the configuration")
	fmt.Println("3. Start harvesting with 'harvester search <query>'")
	return nil
}

func writeDefaultConfig(path string) error {
	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := *cfg
	if display.Search.APIKey != "" {
		display.Search.APIKey = credentials.Mask(display.Search.APIKey)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintInfo("Configuration file", orNone(configFile))
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		// Load wraps the joined validation errors
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			ui.PrintError("Configuration has errors:")
			for _, e := range joined.Unwrap() {
				fmt.Printf("  - %v\n", e)
			}
			return errors.New("invalid configuration")
		}
		return err
	}

	var warnings []string
	if cfg.Search.APIKey == "" {
		warnings = append(warnings, "no API key in the configuration or environment; the stored key will be used")
	}
	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		warnings = append(warnings, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.RateLimit.RequestDelay == 0 {
		warnings = append(warnings, "request_delay is 0; requests are not spaced")
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory:     %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Output format:        %s (quality %d)\n", cfg.Output.Format, cfg.Output.JPEGQuality)
	fmt.Printf("  Minimum size:         %dx%d\n", cfg.Filter.MinWidth, cfg.Filter.MinHeight)
	fmt.Printf("  Max pixels:           %d\n", cfg.Filter.MaxPixels)
	fmt.Printf("  Max images per query: %d\n", cfg.Download.MaxImagesPerSearch)
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Printf("  Request delay:        %s\n", cfg.RateLimit.RequestDelay)
	fmt.Printf("  Log level:            %s\n", cfg.Logging.Level)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none, using search path)"
	}
	return s
}
