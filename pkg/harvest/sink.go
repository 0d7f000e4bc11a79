package harvest

import (
	"context"

	"imageharvester/pkg/models"
)

// Writer persists a processed image and returns where it went
type Writer interface {
	Write(ctx context.Context, img models.ProcessedImage) (string, error)
}

// Reporter is told about every terminal outcome
type Reporter interface {
	Notify(outcome models.Outcome)
}

// Sink receives the pipeline's output. Write is called from workers and
// must be safe for concurrent use; Notify is called from a single
// goroutine in completion order.
type Sink interface {
	Writer
	Reporter
}

type multiSink struct {
	writer    Writer
	reporters []Reporter
}

// NewSink combines a writer with any number of reporters
func NewSink(w Writer, reporters ...Reporter) Sink {
	return &multiSink{writer: w, reporters: reporters}
}

func (s *multiSink) Write(ctx context.Context, img models.ProcessedImage) (string, error) {
	return s.writer.Write(ctx, img)
}

func (s *multiSink) Notify(outcome models.Outcome) {
	for _, r := range s.reporters {
		r.Notify(outcome)
	}
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(outcome models.Outcome)

func (f ReporterFunc) Notify(outcome models.Outcome) {
	f(outcome)
}
