package harvest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"imageharvester/internal/downloader"
	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/imaging"
	"imageharvester/pkg/logger"
	"imageharvester/pkg/models"
	"imageharvester/pkg/search"
)

// Defaults applied to zero Options fields
const (
	DefaultMaxImages   = 100
	DefaultConcurrency = 4
	DefaultPageSize    = 50
)

// Fetcher downloads one reference. Failures are carried in the result.
type Fetcher interface {
	Fetch(ctx context.Context, ref models.ImageReference) models.FetchResult
}

// Options configures a run
type Options struct {
	// MaxImages caps how many references one run admits
	MaxImages   int
	Concurrency int
	PageSize    int
	// RunID labels the run; a random one is generated when empty
	RunID string
}

// Report is the result of one run. Outcomes are in completion order.
type Report struct {
	RunID    string
	Query    string
	Summary  models.Summary
	Outcomes []models.Outcome
	Pages    int
	Canceled bool
	Started  time.Time
	Finished time.Time

	// NotifyErr holds the first panic raised by the sink's Notify. It is
	// recorded but never fails the run.
	NotifyErr error
}

// Duration returns how long the run took
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Harvester runs searches through the download, filter, convert and write
// pipeline. A Harvester may run several queries one after another; each Run
// has its own cap and dedup set.
type Harvester struct {
	provider  search.Provider
	fetcher   Fetcher
	filter    *imaging.Filter
	converter *imaging.Converter
	sink      Sink
	opts      Options
	logger    logger.Logger
}

// New creates a harvester
func New(
	provider search.Provider,
	fetcher Fetcher,
	filter *imaging.Filter,
	converter *imaging.Converter,
	sink Sink,
	opts Options,
	log logger.Logger,
) *Harvester {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.MaxImages <= 0 {
		opts.MaxImages = DefaultMaxImages
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}

	return &Harvester{
		provider:  provider,
		fetcher:   fetcher,
		filter:    filter,
		converter: converter,
		sink:      sink,
		opts:      opts,
		logger:    log,
	}
}

// Run harvests images for query. It always returns a report. The error is
// non-nil only when the search provider failed; it is returned after every
// admitted reference has reached its outcome. Cancellation stops admission,
// completes pending references as canceled and is reported in
// Report.Canceled rather than as an error.
func (h *Harvester) Run(ctx context.Context, query string) (*Report, error) {
	runID := h.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := h.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"query":  query,
	})

	report := &Report{RunID: runID, Query: query, Started: time.Now()}
	qs := newQueueState(h.opts.MaxImages)

	pool := downloader.NewWorkerPool(h.opts.Concurrency, downloader.ProcessorFunc(h.Process), log)
	_ = qs.advance(StateAdmitting)
	pool.Start(ctx)

	var g errgroup.Group
	g.Go(func() error {
		var notifyErr error
		for outcome := range pool.Results() {
			if err := h.notify(outcome); err != nil && notifyErr == nil {
				notifyErr = err
			}
			report.Outcomes = append(report.Outcomes, outcome)
			report.Summary.Add(outcome)

			logOutcome(log, outcome)
			logger.LogProgress(log, query, report.Summary.Completed(), qs.admittedCount(), h.opts.MaxImages)
		}
		return notifyErr
	})

	it := search.NewIterator(h.provider, query, h.opts.PageSize)
	admitErr := h.admit(ctx, it, qs, pool, log)

	_ = qs.advance(StateDraining)
	pool.Stop()
	if err := g.Wait(); err != nil {
		report.NotifyErr = err
		log.WithError(err).Warn("Sink notification failed")
	}
	_ = qs.advance(StateDone)

	report.Summary.Admitted = qs.admittedCount()
	report.Pages = it.Pages()
	report.Finished = time.Now()
	report.Canceled = ctx.Err() != nil || errs.IsType(admitErr, errs.ErrorTypeCanceled)
	logger.LogRunSummary(log, runID, query, report.Summary.Admitted, report.Summary.Saved,
		report.Summary.Skipped, report.Summary.Failed, report.Duration())

	if report.Canceled {
		log.Warn("Harvest run canceled")
	}
	if admitErr == nil || errs.IsType(admitErr, errs.ErrorTypeCanceled) {
		return report, nil
	}

	log.WithError(admitErr).Error("Search provider failed")
	return report, errs.WithHint(errs.Wrapf(admitErr, "harvesting %q", query), providerHint(admitErr))
}

// admit pulls references in provider order and hands them to the pool
// until the cap is reached, the provider is exhausted or fails, or ctx is
// done. The pool input is unbuffered, so this blocks while every worker
// is busy.
func (h *Harvester) admit(
	ctx context.Context,
	it *search.Iterator,
	qs *queueState,
	pool *downloader.WorkerPool,
	log logger.Logger,
) error {
	seq := 0
	for {
		if cerr := errs.FromContext(ctx); cerr != nil {
			return cerr
		}
		if qs.full() {
			log.DebugWithFields("Admission cap reached", map[string]interface{}{"cap": h.opts.MaxImages})
			return nil
		}

		ref, err := it.Next(ctx)
		if errors.Is(err, search.ErrNoMoreResults) {
			return nil
		}
		if err != nil {
			return err
		}
		if ref.URL == "" {
			continue
		}

		switch qs.admit(ref.Key()) {
		case admitDuplicate:
			log.DebugWithFields("Skipping duplicate reference", map[string]interface{}{"url": ref.URL})
			continue
		case admitCapReached, admitClosed:
			return nil
		}

		if err := pool.Submit(ctx, downloader.Job{Seq: seq, Reference: ref}); err != nil {
			return err
		}
		seq++
	}
}

// Process takes one reference through fetch, filter, convert and write.
// Every path ends in exactly one outcome.
func (h *Harvester) Process(ctx context.Context, job downloader.Job) models.Outcome {
	ref := job.Reference

	res := h.fetcher.Fetch(ctx, ref)
	outcome := h.classify(ctx, res)
	outcome.Attempts = res.Attempts
	return outcome
}

func (h *Harvester) classify(ctx context.Context, res models.FetchResult) models.Outcome {
	ref := res.Reference
	if !res.OK() {
		return models.Failed(ref, res.Err)
	}

	decoded, ok, err := h.filter.Inspect(res)
	if err != nil {
		return models.Failed(ref, errs.Classify(err))
	}
	if !ok {
		return models.SkippedTooSmall(ref, decoded.Width, decoded.Height)
	}

	img, err := h.converter.Convert(decoded)
	if err != nil {
		return models.Failed(ref, errs.Classify(err))
	}

	location, err := h.sink.Write(ctx, img)
	if err != nil {
		if errs.TypeOf(err) == errs.ErrorTypeUnknown {
			return models.Failed(ref, errs.NewStorage("sink write failed", err))
		}
		return models.Failed(ref, errs.Classify(err))
	}
	return models.Saved(ref, img, location)
}

// notify hands one outcome to the sink, recovering a panicking reporter so
// the collector keeps draining results.
func (h *Harvester) notify(outcome models.Outcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.Newf("sink notify panicked on outcome %d: %v", outcome.Seq, r)
		}
	}()
	h.sink.Notify(outcome)
	return nil
}

func logOutcome(log logger.Logger, o models.Outcome) {
	fields := map[string]interface{}{
		"seq":         o.Seq,
		"attempts":    o.Attempts,
		"duration_ms": o.Duration.Milliseconds(),
	}
	switch o.Kind {
	case models.OutcomeSaved:
		fields["location"] = o.Location
		fields["width"] = o.Width
		fields["height"] = o.Height
	case models.OutcomeSkippedTooSmall:
		fields["width"] = o.Width
		fields["height"] = o.Height
	}

	var err error
	if o.Err != nil {
		err = o.Err
		fields["error_kind"] = o.Err.Kind()
	}
	logger.LogOutcome(log, string(o.Kind), o.Reference.URL, err, fields)
}

func providerHint(err error) string {
	switch errs.TypeOf(errors.Unwrap(err)) {
	case errs.ErrorTypeAuth:
		return "check BING_SEARCH_API_KEY or run 'harvester auth set-key'"
	case errs.ErrorTypeRateLimit:
		return "the provider is throttling requests; lower search.max_calls_per_second or try again later"
	case errs.ErrorTypeParsing:
		return "the provider returned an unexpected response; check search.endpoint"
	default:
		return "the search provider failed; images admitted before the failure were kept"
	}
}
