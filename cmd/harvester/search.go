package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"imageharvester/pkg/config"
	"imageharvester/pkg/credentials"
	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/imaging"
	"imageharvester/pkg/logger"
	"imageharvester/pkg/ui"
)

var (
	// Search command flags
	outputDir  string
	maxImages  int
	minWidth   int
	minHeight  int
	format     string
	quality    int
	concurrent int
	delay      time.Duration
	retries    int
	overwrite  bool
	writeMeta  bool
	apiKey     string
)

var errNoAPIKey = errors.New("no search API key configured")

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:     "search <query>...",
	Aliases: []string{"harvest"},
	Short:   "Search for images and download them",
	Long: `Search for each query and download up to --max-images results per query.

Images smaller than --min-width x --min-height are skipped. Saved images are
re-encoded and named after a hash of their source URL, so running the same
search again only adds new images.

The API key is read from --api-key, then HARVESTER_API_KEY or
BING_SEARCH_API_KEY (including .env), then the key stored with
'harvester auth set-key'.

Press Ctrl+C to stop: no new images are started and the ones in flight are
finished before the summary is printed.`,
	Example: `  # Download up to 100 cat pictures into ./downloads/cats
  harvester search cats

  # Several queries, larger images, PNG output
  harvester search "red panda" "snow leopard" --min-width 1024 --min-height 768 --format png

  # Slow down and write a JSON sidecar next to each image
  harvester search sunsets --delay 2s --metadata`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	f := searchCmd.Flags()
	f.StringVarP(&outputDir, "output", "o", "", "output directory (default ./downloads)")
	f.IntVarP(&maxImages, "max-images", "n", 100, "maximum images admitted per query")
	f.IntVar(&minWidth, "min-width", 400, "minimum image width in pixels")
	f.IntVar(&minHeight, "min-height", 400, "minimum image height in pixels")
	f.StringVarP(&format, "format", "f", "jpg", "output format (jpg or png)")
	f.IntVar(&quality, "quality", imaging.DefaultJPEGQuality,
		fmt.Sprintf("JPEG quality (%d-%d, 0 encodes as 1)", imaging.MinJPEGQuality, imaging.MaxJPEGQuality))
	f.IntVar(&concurrent, "concurrent", 4, "number of concurrent downloads")
	f.DurationVar(&delay, "delay", time.Second, "minimum spacing between outbound requests")
	f.IntVar(&retries, "retries", 1, "extra attempts for transient network failures")
	f.BoolVar(&overwrite, "overwrite", false, "overwrite images that already exist")
	f.BoolVar(&writeMeta, "metadata", false, "write a JSON metadata file next to each image")
	f.StringVar(&apiKey, "api-key", "", "search API key")
}

// changedFlags returns only the flags the user set, keyed the way
// config.MergeCommandLineFlags expects
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := func(name string, value interface{}) {
		if cmd.Flags().Changed(name) {
			flags[name] = value
		}
	}

	set("output", outputDir)
	set("max-images", maxImages)
	set("min-width", minWidth)
	set("min-height", minHeight)
	set("format", format)
	set("quality", quality)
	set("concurrent", concurrent)
	set("delay", delay)
	set("retries", retries)
	set("overwrite", overwrite)
	set("metadata", writeMeta)
	set("api-key", apiKey)
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Version = version
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	if err := resolveAPIKey(cfg, log); err != nil {
		credentials.ShowKeyGuide(os.Stderr)
		return err
	}

	p, err := newPipeline(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := displayBar
	switch {
	case quiet:
		mode = displaySummaryOnly
	case verbose:
		mode = displayPerImage
	}

	return harvestAll(ctx, p, args, mode)
}

// harvestAll runs each query in turn. A provider failure for one query does
// not stop the next; cancellation does.
func harvestAll(ctx context.Context, p *pipeline, queries []string, mode displayMode) error {
	var failed []string
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if mode != displaySummaryOnly {
			ui.PrintInfo("Query", q)
		}

		report, err := p.run(ctx, q, ui.Out, mode)
		if err != nil {
			failed = append(failed, q)
			ui.PrintError("Search failed", err)
			for _, hint := range errs.GetAllHints(err) {
				ui.PrintWarning("Hint: " + hint)
			}
		}
		if report.Canceled || ctx.Err() != nil {
			ui.PrintWarning("Interrupted, remaining queries skipped")
			break
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("search provider failed for %d of %d queries: %s",
			len(failed), len(queries), strings.Join(failed, ", "))
	}
	return nil
}

// resolveAPIKey falls back to the credential store when neither flags nor
// the environment supplied a key
func resolveAPIKey(cfg *config.Config, log logger.Logger) error {
	if cfg.Search.APIKey != "" {
		return nil
	}

	manager, err := credentials.NewManager("")
	if err != nil {
		log.WithError(err).Warn("Credential store unavailable")
		return errNoAPIKey
	}
	key, source, err := manager.Get(credentials.DefaultProvider)
	if err != nil {
		return errNoAPIKey
	}

	log.WithField("source", source).Debug("Using stored API key")
	cfg.Search.APIKey = key
	return nil
}
