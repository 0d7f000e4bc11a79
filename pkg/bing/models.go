package bing

import (
	"strconv"
	"strings"
	"time"

	"imageharvester/pkg/models"
)

// SearchResponse represents the Images answer returned by the search endpoint
type SearchResponse struct {
	Type                  string        `json:"_type"`
	ReadLink              string        `json:"readLink,omitempty"`
	WebSearchURL          string        `json:"webSearchUrl,omitempty"`
	TotalEstimatedMatches int           `json:"totalEstimatedMatches"`
	NextOffset            int           `json:"nextOffset"`
	Value                 []ImageObject `json:"value"`
}

// ImageObject is one image result
type ImageObject struct {
	Name               string     `json:"name"`
	ContentURL         string     `json:"contentUrl"`
	HostPageURL        string     `json:"hostPageUrl"`
	ThumbnailURL       string     `json:"thumbnailUrl"`
	Width              int        `json:"width"`
	Height             int        `json:"height"`
	ContentSize        string     `json:"contentSize"`
	EncodingFormat     string     `json:"encodingFormat"`
	DatePublished      string     `json:"datePublished"`
	AccentColor        string     `json:"accentColor"`
	ImageID            string     `json:"imageId,omitempty"`
	Thumbnail          *Dimension `json:"thumbnail,omitempty"`
	HostPageDisplayURL string     `json:"hostPageDisplayUrl,omitempty"`
}

// Dimension is a width/height pair
type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ErrorResponse is the body of a failed request. Bing uses the errors
// array; some gateways answer with a single error object instead.
type ErrorResponse struct {
	Type   string        `json:"_type"`
	Errors []ErrorDetail `json:"errors"`
	Error  *ErrorDetail  `json:"error"`
}

// ErrorDetail describes one provider error
type ErrorDetail struct {
	Code      string `json:"code"`
	SubCode   string `json:"subCode,omitempty"`
	Message   string `json:"message"`
	Parameter string `json:"parameter,omitempty"`
}

// Message returns the first provider-supplied message, if any
func (r *ErrorResponse) Message() string {
	if r == nil {
		return ""
	}
	if r.Error != nil && r.Error.Message != "" {
		return r.Error.Message
	}
	for _, e := range r.Errors {
		if e.Message != "" {
			return e.Message
		}
	}
	return ""
}

// Reference converts the result into a pipeline reference
func (o ImageObject) Reference(query string) models.ImageReference {
	return models.ImageReference{
		URL:            strings.TrimSpace(o.ContentURL),
		ReportedWidth:  o.Width,
		ReportedHeight: o.Height,
		SourceQuery:    query,
		SourcePage:     o.HostPageURL,
		Name:           o.Name,
		ThumbnailURL:   o.ThumbnailURL,
		EncodingFormat: o.EncodingFormat,
		ContentSize:    ParseContentSize(o.ContentSize),
		DatePublished:  ParseDatePublished(o.DatePublished),
		AccentColor:    o.AccentColor,
	}
}

// ParseContentSize parses sizes such as "12345 B". Unparseable values
// yield 0.
func ParseContentSize(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "B"))
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

var publishedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.0000000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDatePublished parses the provider timestamp. Unknown layouts yield
// the zero time.
func ParseDatePublished(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
