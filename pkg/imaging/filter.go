package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/models"
)

// Default dimension limits
const (
	DefaultMinWidth  = 400
	DefaultMinHeight = 400
	DefaultMaxPixels = 100_000_000
)

// Filter rejects images whose decoded dimensions fall below an inclusive
// minimum. Reported dimensions from the provider are ignored. Images
// declaring more than MaxPixels are refused before any pixel is decoded;
// zero disables the limit.
type Filter struct {
	MinWidth  int
	MinHeight int
	MaxPixels int64
}

func NewFilter(minWidth, minHeight int) *Filter {
	return &Filter{MinWidth: minWidth, MinHeight: minHeight, MaxPixels: DefaultMaxPixels}
}

// Inspect probes the payload header for its real size and format. ok is
// false when the image is too small. A failed fetch result is passed
// through as its own error; an undecodable payload is a decode error.
func (f *Filter) Inspect(res models.FetchResult) (img models.DecodedImage, ok bool, err error) {
	if !res.OK() {
		return models.DecodedImage{}, false, res.Err
	}
	if len(res.Payload) == 0 {
		return models.DecodedImage{}, false, errs.NewDecode("empty payload", nil)
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(res.Payload))
	if err != nil {
		return models.DecodedImage{}, false, errs.NewDecode(describePayload(res), err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return models.DecodedImage{}, false, errs.NewDecode(fmt.Sprintf("invalid dimensions %dx%d", cfg.Width, cfg.Height), nil)
	}
	if f.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > f.MaxPixels {
		return models.DecodedImage{}, false, errs.NewDecode(
			fmt.Sprintf("pixel count exceeds limit: %dx%d > %d", cfg.Width, cfg.Height, f.MaxPixels), nil)
	}

	img = models.DecodedImage{
		Reference: res.Reference,
		Payload:   res.Payload,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    models.FormatFromName(name),
	}
	return img, f.Accepts(cfg.Width, cfg.Height), nil
}

// Accepts reports whether both dimensions meet the minimum
func (f *Filter) Accepts(width, height int) bool {
	return width >= f.MinWidth && height >= f.MinHeight
}

func describePayload(res models.FetchResult) string {
	if res.ContentType != "" {
		return fmt.Sprintf("unrecognized image data (content type %s)", res.ContentType)
	}
	return "unrecognized image data"
}
