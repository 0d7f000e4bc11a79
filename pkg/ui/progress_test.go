package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/models"
)

func init() {
	SetColor(false)
}

func TestProgressDisplayRedrawsLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "cats", 4, false)

	ref := models.ImageReference{URL: "https://example.com/a.png"}
	img := models.ProcessedImage{Bytes: make([]byte, 2048), FileName: "a.jpg", Width: 500, Height: 500}
	p.Notify(models.Saved(ref, img, "/out/a.jpg"))
	p.Notify(models.SkippedTooSmall(ref, 10, 10))

	out := buf.String()
	assert.Contains(t, out, "cats [")
	assert.Contains(t, out, "2/4")
	assert.Contains(t, out, "1 saved")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "1 skipped")
	assert.NotContains(t, out, "\n")
}

func TestProgressDisplayVerbose(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "cats", 2, true)

	ref := models.ImageReference{URL: "https://example.com/b.png"}
	p.Notify(models.Failed(ref, errs.NewHTTP(404, "Not Found")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], "✗")
	assert.Contains(t, lines[0], "https://example.com/b.png")
}

func TestProgressDisplayComplete(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "dogs", 5, true)
	p.Complete(models.Summary{Admitted: 5, Saved: 3, Skipped: 1, Failed: 1}, 1500*time.Millisecond, true)

	out := buf.String()
	assert.Contains(t, out, `Saved 3 of 5 images for "dogs" (canceled)`)
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "1 below minimum size")
	assert.Contains(t, out, "1 failed")
}

func TestBar(t *testing.T) {
	assert.Equal(t, strings.Repeat(ProgressEmpty, barWidth), bar(0, 0))
	assert.Equal(t, strings.Repeat(ProgressBar, 10)+strings.Repeat(ProgressEmpty, 10), bar(5, 10))
	assert.Equal(t, strings.Repeat(ProgressBar, barWidth), bar(12, 10))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "3.0 MB", formatBytes(3*1024*1024))
}
