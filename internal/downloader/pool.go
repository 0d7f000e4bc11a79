package downloader

import (
	"context"
	"sync"
	"time"

	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/logger"
	"imageharvester/pkg/models"
)

// Job is one admitted reference. Seq is its admission order.
type Job struct {
	Seq       int
	Reference models.ImageReference
}

// Processor takes a job to its terminal outcome
type Processor interface {
	Process(ctx context.Context, job Job) models.Outcome
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, job Job) models.Outcome

func (f ProcessorFunc) Process(ctx context.Context, job Job) models.Outcome {
	return f(ctx, job)
}

// WorkerPool runs a fixed number of workers over an unbuffered job queue,
// so Submit blocks until a worker is free. Every submitted job yields
// exactly one outcome on Results, which must be consumed concurrently.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan models.Outcome
	wg          sync.WaitGroup
	processor   Processor
	logger      logger.Logger
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(numWorkers int, processor Processor, log logger.Logger) *WorkerPool {
	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job),
		resultQueue: make(chan models.Outcome, numWorkers),
		processor:   processor,
		logger:      log,
	}
}

// Start launches the workers. ctx is handed to the processor and checked
// before each job.
func (wp *WorkerPool) Start(ctx context.Context) {
	logger.LogComponentStart(wp.logger, "worker_pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop closes the job queue, waits for in-flight jobs and closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)

	logger.LogComponentStop(wp.logger, "worker_pool", "drained")
}

// Submit hands a job to the next free worker. If ctx is done first the job
// is completed as canceled and the cancellation is returned.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-ctx.Done():
		cerr := errs.NewCanceled(ctx.Err())
		outcome := models.Failed(job.Reference, cerr)
		outcome.Seq = job.Seq
		wp.resultQueue <- outcome
		return cerr
	}
}

// Results returns the outcome channel. It is closed by Stop.
func (wp *WorkerPool) Results() <-chan models.Outcome {
	return wp.resultQueue
}

// Size returns the number of workers
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		wp.resultQueue <- wp.run(ctx, id, job)
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

func (wp *WorkerPool) run(ctx context.Context, id int, job Job) (outcome models.Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			wp.logger.ErrorWithFields("Worker recovered from panic", map[string]interface{}{
				"worker_id": id,
				"url":       job.Reference.URL,
				"panic":     r,
			})
			outcome = models.Failed(job.Reference, &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: "processing panicked",
				Err:     errs.Newf("%v", r),
			})
		}
		outcome.Seq = job.Seq
		if outcome.Reference.URL == "" {
			outcome.Reference = job.Reference
		}
		outcome.Duration = time.Since(start)
	}()

	if cerr := errs.FromContext(ctx); cerr != nil {
		return models.Failed(job.Reference, cerr)
	}

	wp.logger.DebugWithFields("Worker processing job", map[string]interface{}{
		"worker_id": id,
		"seq":       job.Seq,
		"url":       job.Reference.URL,
	})
	return wp.processor.Process(ctx, job)
}
