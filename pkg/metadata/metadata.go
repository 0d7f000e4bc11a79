package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"imageharvester/pkg/logger"
	"imageharvester/pkg/models"
)

// Extension is appended to an image path to form its sidecar path
const Extension = ".json"

// ImageMetadata describes where a saved image came from
type ImageMetadata struct {
	// Source
	SourceURL    string `json:"source_url"`
	SourcePage   string `json:"source_page,omitempty"`
	Name         string `json:"name,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Query        string `json:"query"`
	RunID        string `json:"run_id,omitempty"`

	// Dimensions as reported by the provider and as decoded
	ReportedWidth  int `json:"reported_width,omitempty"`
	ReportedHeight int `json:"reported_height,omitempty"`
	Width          int `json:"width"`
	Height         int `json:"height"`

	// Formats and sizes
	SourceFormat string `json:"source_format"`
	OutputFormat string `json:"output_format"`
	ReportedSize int64  `json:"reported_size,omitempty"`
	FileSize     int64  `json:"file_size"`
	AccentColor  string `json:"accent_color,omitempty"`

	// Timestamps
	DatePublished *time.Time `json:"date_published,omitempty"`
	HarvestedAt   time.Time  `json:"harvested_at"`

	FileName string `json:"file_name"`
}

// FromOutcome builds the metadata of a Saved outcome
func FromOutcome(o models.Outcome, runID string, harvestedAt time.Time) (*ImageMetadata, error) {
	if o.Kind != models.OutcomeSaved || o.Image == nil {
		return nil, fmt.Errorf("metadata requires a saved outcome, got %s", o.Kind)
	}

	ref := o.Reference
	img := o.Image
	meta := &ImageMetadata{
		SourceURL:      ref.URL,
		SourcePage:     ref.SourcePage,
		Name:           ref.Name,
		ThumbnailURL:   ref.ThumbnailURL,
		Query:          ref.SourceQuery,
		RunID:          runID,
		ReportedWidth:  ref.ReportedWidth,
		ReportedHeight: ref.ReportedHeight,
		Width:          img.Width,
		Height:         img.Height,
		SourceFormat:   string(img.SourceFormat),
		OutputFormat:   string(img.Format),
		ReportedSize:   ref.ContentSize,
		FileSize:       int64(len(img.Bytes)),
		AccentColor:    ref.AccentColor,
		HarvestedAt:    harvestedAt.UTC(),
		FileName:       img.FileName,
	}
	if !ref.DatePublished.IsZero() {
		published := ref.DatePublished
		meta.DatePublished = &published
	}
	return meta, nil
}

// Save writes the metadata next to the image
func (m *ImageMetadata) Save(imagePath string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(imagePath+Extension, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// Load reads the metadata stored next to an image
func Load(imagePath string) (*ImageMetadata, error) {
	data, err := os.ReadFile(imagePath + Extension)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta ImageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// Exists checks if a metadata file exists for an image
func Exists(imagePath string) bool {
	_, err := os.Stat(imagePath + Extension)
	return err == nil
}

// Recorder writes a sidecar for every Saved outcome it is notified of.
// Other outcomes are ignored. Failures are logged, never returned, since
// the image itself is already stored.
type Recorder struct {
	runID  string
	now    func() time.Time
	logger logger.Logger
}

// NewRecorder creates a recorder stamping sidecars with runID
func NewRecorder(runID string, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Recorder{runID: runID, now: time.Now, logger: log}
}

// Notify implements the harvest reporter contract
func (r *Recorder) Notify(o models.Outcome) {
	if o.Kind != models.OutcomeSaved || o.Location == "" {
		return
	}

	meta, err := FromOutcome(o, r.runID, r.now())
	if err == nil {
		err = meta.Save(o.Location)
	}
	if err != nil {
		r.logger.WithError(err).WithField("path", o.Location).Warn("Failed to write image metadata")
	}
}
