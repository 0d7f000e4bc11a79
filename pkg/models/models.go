package models

import (
	"fmt"
	"time"

	errs "imageharvester/pkg/errors"
)

// ImageReference is a provider-supplied pointer to a candidate image.
// Reported dimensions are search hints; zero means the provider did not
// report them.
type ImageReference struct {
	URL            string    `json:"url"`
	ReportedWidth  int       `json:"reported_width,omitempty"`
	ReportedHeight int       `json:"reported_height,omitempty"`
	SourceQuery    string    `json:"source_query"`
	SourcePage     string    `json:"source_page,omitempty"`
	Name           string    `json:"name,omitempty"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty"`
	EncodingFormat string    `json:"encoding_format,omitempty"`
	ContentSize    int64     `json:"content_size,omitempty"`
	DatePublished  time.Time `json:"date_published,omitempty"`
	AccentColor    string    `json:"accent_color,omitempty"`
}

// Key is the dedup identity of the reference.
func (r ImageReference) Key() string {
	return NormalizeURL(r.URL)
}

type ImageFormat string

const (
	FormatJPEG    ImageFormat = "JPEG"
	FormatPNG     ImageFormat = "PNG"
	FormatGIF     ImageFormat = "GIF"
	FormatBMP     ImageFormat = "BMP"
	FormatWEBP    ImageFormat = "WEBP"
	FormatUnknown ImageFormat = "UNKNOWN"
)

// FormatFromName maps an image package format name ("jpeg", "png", ...)
func FormatFromName(name string) ImageFormat {
	switch name {
	case "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	case "bmp":
		return FormatBMP
	case "webp":
		return FormatWEBP
	default:
		return FormatUnknown
	}
}

type OutputFormat string

const (
	OutputJPG OutputFormat = "jpg"
	OutputPNG OutputFormat = "png"
)

// ParseOutputFormat accepts jpg, jpeg and png in any case.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "jpg", "jpeg", "JPG", "JPEG":
		return OutputJPG, nil
	case "png", "PNG":
		return OutputPNG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

func (f OutputFormat) Extension() string {
	return "." + string(f)
}

// FetchResult is the Downloader's product. Err is nil on success.
type FetchResult struct {
	Reference   ImageReference
	Payload     []byte
	ContentType string
	Attempts    int
	Err         *errs.Error
}

func (r FetchResult) OK() bool {
	return r.Err == nil
}

// DecodedImage carries the probed, real dimensions of a payload.
type DecodedImage struct {
	Reference ImageReference
	Payload   []byte
	Width     int
	Height    int
	Format    ImageFormat
}

// ProcessedImage is a fully encoded output ready for the sink.
type ProcessedImage struct {
	Reference    ImageReference
	Bytes        []byte
	Format       OutputFormat
	FileName     string
	Width        int
	Height       int
	SourceFormat ImageFormat
}

type OutcomeKind string

const (
	OutcomeSaved           OutcomeKind = "saved"
	OutcomeSkippedTooSmall OutcomeKind = "skipped_too_small"
	OutcomeFailed          OutcomeKind = "failed"
)

// Outcome is the terminal classification of one admitted reference.
// Image and Location are set for Saved, Width and Height for Saved and
// SkippedTooSmall, Err for Failed.
type Outcome struct {
	Kind      OutcomeKind
	Seq       int
	Reference ImageReference
	Image     *ProcessedImage
	Location  string
	Width     int
	Height    int
	Err       *errs.Error
	Attempts  int
	Duration  time.Duration
}

func Saved(ref ImageReference, img ProcessedImage, location string) Outcome {
	return Outcome{
		Kind:      OutcomeSaved,
		Reference: ref,
		Image:     &img,
		Location:  location,
		Width:     img.Width,
		Height:    img.Height,
	}
}

func SkippedTooSmall(ref ImageReference, width, height int) Outcome {
	return Outcome{Kind: OutcomeSkippedTooSmall, Reference: ref, Width: width, Height: height}
}

func Failed(ref ImageReference, err *errs.Error) Outcome {
	return Outcome{Kind: OutcomeFailed, Reference: ref, Err: err}
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSaved:
		return fmt.Sprintf("saved %s (%dx%d)", o.Location, o.Width, o.Height)
	case OutcomeSkippedTooSmall:
		return fmt.Sprintf("skipped %s (%dx%d)", o.Reference.URL, o.Width, o.Height)
	default:
		kind := "unknown"
		if o.Err != nil {
			kind = o.Err.Kind()
		}
		return fmt.Sprintf("failed %s (%s)", o.Reference.URL, kind)
	}
}

// Summary counts outcomes of one run.
type Summary struct {
	Admitted int `json:"admitted"`
	Saved    int `json:"saved"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

func (s *Summary) Add(o Outcome) {
	switch o.Kind {
	case OutcomeSaved:
		s.Saved++
	case OutcomeSkippedTooSmall:
		s.Skipped++
	default:
		s.Failed++
	}
}

// Completed is the number of admitted references that reached an outcome.
func (s Summary) Completed() int {
	return s.Saved + s.Skipped + s.Failed
}
