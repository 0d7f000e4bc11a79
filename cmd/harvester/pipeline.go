package main

import (
	"context"
	"io"

	"github.com/google/uuid"

	"imageharvester/internal/downloader"
	"imageharvester/pkg/bing"
	"imageharvester/pkg/config"
	"imageharvester/pkg/harvest"
	"imageharvester/pkg/imaging"
	"imageharvester/pkg/logger"
	"imageharvester/pkg/metadata"
	"imageharvester/pkg/models"
	"imageharvester/pkg/ratelimit"
	"imageharvester/pkg/retry"
	"imageharvester/pkg/search"
	"imageharvester/pkg/storage"
	"imageharvester/pkg/ui"
)

// pipeline holds the components shared by every query of one invocation.
// The gate is shared by search calls and image downloads.
type pipeline struct {
	cfg       *config.Config
	provider  search.Provider
	fetcher   *downloader.Downloader
	filter    *imaging.Filter
	converter *imaging.Converter
	store     *storage.Manager
	logger    logger.Logger
}

func newPipeline(cfg *config.Config, log logger.Logger) (*pipeline, error) {
	gate := ratelimit.NewGate(cfg.RateLimit.RequestDelay)

	policy := retry.DownloadPolicy(cfg.Download.RetryCount, cfg.Download.RetryDelay)
	policy.Logger = log
	fetcher := downloader.New(gate, policy, downloader.Options{
		Timeout:   cfg.Download.DownloadTimeout,
		UserAgent: cfg.Download.UserAgent,
	}, log)

	format, err := models.ParseOutputFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	converter, err := imaging.NewConverter(format, cfg.Output.JPEGQuality)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewManager(storage.Options{
		BaseDirectory:      cfg.Output.BaseDirectory,
		CreateQueryFolders: cfg.Output.CreateQueryFolders,
		Overwrite:          cfg.Output.OverwriteExisting,
	}, log)
	if err != nil {
		return nil, err
	}

	filter := imaging.NewFilter(cfg.Filter.MinWidth, cfg.Filter.MinHeight)
	filter.MaxPixels = cfg.Filter.MaxPixels

	return &pipeline{
		cfg:       cfg,
		provider:  bing.NewClient(bing.OptionsFromConfig(cfg), gate, log),
		fetcher:   fetcher,
		filter:    filter,
		converter: converter,
		store:     store,
		logger:    log,
	}, nil
}

// displayMode selects how progress is printed
type displayMode int

const (
	displayBar displayMode = iota
	displayPerImage
	displaySummaryOnly
)

// run harvests one query and prints its summary to out
func (p *pipeline) run(ctx context.Context, query string, out io.Writer, mode displayMode) (*harvest.Report, error) {
	runID := uuid.NewString()

	progress := ui.NewProgressDisplay(out, query, p.cfg.Download.MaxImagesPerSearch, mode == displayPerImage)
	var reporters []harvest.Reporter
	if mode != displaySummaryOnly {
		reporters = append(reporters, progress)
	}
	if p.cfg.Output.WriteMetadata {
		reporters = append(reporters, metadata.NewRecorder(runID, p.logger))
	}

	h := harvest.New(
		p.provider,
		p.fetcher,
		p.filter,
		p.converter,
		harvest.NewSink(p.store, reporters...),
		harvest.Options{
			MaxImages:   p.cfg.Download.MaxImagesPerSearch,
			Concurrency: p.cfg.Download.ConcurrentDownloads,
			PageSize:    p.cfg.Search.PageSize,
			RunID:       runID,
		},
		p.logger,
	)

	report, err := h.Run(ctx, query)
	progress.Complete(report.Summary, report.Duration(), report.Canceled)
	if report.NotifyErr != nil {
		ui.PrintWarning("Progress reporting failed: %v", report.NotifyErr)
	}
	return report, err
}
