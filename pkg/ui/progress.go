package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"imageharvester/pkg/models"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
	barWidth      = 20
)

// ProgressDisplay renders a one-line progress bar for a run and prints a
// summary when it completes. It implements harvest.Reporter.
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	query     string
	target    int
	summary   models.Summary
	bytes     int64
	last      string
	startTime time.Time
	verbose   bool
}

// NewProgressDisplay creates a display for one query. target is the
// admission cap and sizes the bar. In verbose mode each outcome gets its own
// line instead of redrawing the bar.
func NewProgressDisplay(out io.Writer, query string, target int, verbose bool) *ProgressDisplay {
	if out == nil {
		out = Out
	}
	return &ProgressDisplay{
		out:       out,
		query:     query,
		target:    target,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// Notify records an outcome and redraws
func (p *ProgressDisplay) Notify(o models.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.summary.Add(o)
	p.last = o.Reference.URL
	if o.Kind == models.OutcomeSaved && o.Image != nil {
		p.bytes += int64(len(o.Image.Bytes))
	}

	if p.verbose {
		p.printOutcome(o)
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) printOutcome(o models.Outcome) {
	switch o.Kind {
	case models.OutcomeSaved:
		fmt.Fprintf(p.out, "%s %s • %dx%d • %s\n", Green("✓"), o.Location, o.Width, o.Height, Dim(o.Reference.URL))
	case models.OutcomeSkippedTooSmall:
		fmt.Fprintf(p.out, "%s %dx%d • %s\n", Yellow("↷"), o.Width, o.Height, Dim(o.Reference.URL))
	default:
		fmt.Fprintf(p.out, "%s %v • %s\n", Red("✗"), o.Err, Dim(o.Reference.URL))
	}
}

// printProgress prints the progress line
func (p *ProgressDisplay) printProgress() {
	done := p.summary.Completed()
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), p.line(done))
}

func (p *ProgressDisplay) line(done int) string {
	line := fmt.Sprintf("%s [%s] %d/%d • %s saved • %s",
		Cyan(p.query),
		bar(done, p.target),
		done,
		p.target,
		Green(fmt.Sprint(p.summary.Saved)),
		formatBytes(p.bytes),
	)
	if p.summary.Skipped > 0 {
		line += fmt.Sprintf(" • %s", Yellow(fmt.Sprintf("%d skipped", p.summary.Skipped)))
	}
	if p.summary.Failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", p.summary.Failed)))
	}
	return line
}

// Complete prints the final summary of a run. elapsed is the run duration.
func (p *ProgressDisplay) Complete(s models.Summary, elapsed time.Duration, canceled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.verbose {
		fmt.Fprintln(p.out)
	}
	status, suffix := Green("✓"), ""
	if canceled {
		status, suffix = Yellow("⚠"), Yellow(" (canceled)")
	}
	fmt.Fprintf(p.out, "%s Saved %d of %d images for %q%s\n", status, s.Saved, s.Admitted, p.query, suffix)
	fmt.Fprintf(p.out, "  %s %s in %s\n", Dim("•"), formatBytes(p.bytes), formatDuration(elapsed))
	if s.Skipped > 0 {
		fmt.Fprintf(p.out, "  %s %d below minimum size\n", Dim("•"), s.Skipped)
	}
	if s.Failed > 0 {
		fmt.Fprintf(p.out, "  %s %d failed\n", Dim("•"), s.Failed)
	}
}

func bar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * barWidth / total
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
