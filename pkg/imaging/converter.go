package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/models"
)

// JPEG quality bounds and default. The encoder treats anything below 1 as 1.
const (
	MinJPEGQuality     = 0
	MaxJPEGQuality     = 100
	DefaultJPEGQuality = 90
)

// nameLength is the number of hex characters of the URL digest kept in
// file names
const nameLength = 32

// Converter re-encodes accepted images into the output format. It always
// re-encodes, even when the source is already in that format.
type Converter struct {
	Format  models.OutputFormat
	Quality int
}

// NewConverter validates the target format and quality
func NewConverter(format models.OutputFormat, quality int) (*Converter, error) {
	switch format {
	case models.OutputJPG, models.OutputPNG:
	default:
		return nil, errs.NewEncode(fmt.Sprintf("unsupported output format %q", format), nil)
	}
	if quality < MinJPEGQuality || quality > MaxJPEGQuality {
		return nil, errs.NewEncode(fmt.Sprintf("jpeg quality %d out of range %d-%d", quality, MinJPEGQuality, MaxJPEGQuality), nil)
	}
	if quality < 1 {
		quality = 1
	}
	return &Converter{Format: format, Quality: quality}, nil
}

// Convert decodes the pixels and encodes them in memory. Images with
// transparency are flattened onto white for JPG.
func (c *Converter) Convert(img models.DecodedImage) (models.ProcessedImage, error) {
	src, _, err := image.Decode(bytes.NewReader(img.Payload))
	if err != nil {
		return models.ProcessedImage{}, errs.NewDecode("failed to decode pixels", err)
	}

	var buf bytes.Buffer
	switch c.Format {
	case models.OutputJPG:
		if err := jpeg.Encode(&buf, flatten(src), &jpeg.Options{Quality: c.Quality}); err != nil {
			return models.ProcessedImage{}, errs.NewEncode("jpeg encoding failed", err)
		}
	case models.OutputPNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := enc.Encode(&buf, src); err != nil {
			return models.ProcessedImage{}, errs.NewEncode("png encoding failed", err)
		}
	default:
		return models.ProcessedImage{}, errs.NewEncode(fmt.Sprintf("unsupported output format %q", c.Format), nil)
	}

	bounds := src.Bounds()
	return models.ProcessedImage{
		Reference:    img.Reference,
		Bytes:        buf.Bytes(),
		Format:       c.Format,
		FileName:     FileName(img.Reference.URL, c.Format),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		SourceFormat: img.Format,
	}, nil
}

// FileName derives a stable name from the normalized URL, so the same
// image maps to the same file across runs.
func FileName(rawURL string, format models.OutputFormat) string {
	sum := sha256.Sum256([]byte(models.NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])[:nameLength] + format.Extension()
}

type opaquer interface {
	Opaque() bool
}

func flatten(src image.Image) image.Image {
	if o, ok := src.(opaquer); ok && o.Opaque() {
		return src
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	return dst
}
