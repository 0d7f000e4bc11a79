package bing

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultEndpoint is the Bing Image Search v7 endpoint
	DefaultEndpoint = "https://api.bing.microsoft.com/v7.0/images/search"

	// SubscriptionKeyHeader carries the API key on every request
	SubscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

	// DefaultCount is the page size used when none is given
	DefaultCount = 50

	// MaxCount is the largest page the API will return
	MaxCount = 150
)

// SearchParams are the query parameters of one search call
type SearchParams struct {
	Query      string
	Count      int
	Offset     int
	Market     string
	SafeSearch string
	ImageType  string
	Filter     string
	MinWidth   int
	MinHeight  int
}

// ClampCount keeps a page size within what the API accepts
func ClampCount(count int) int {
	if count <= 0 {
		return DefaultCount
	}
	if count > MaxCount {
		return MaxCount
	}
	return count
}

// GetSearchURL constructs the URL for one page of image results
func GetSearchURL(endpoint string, p SearchParams) (string, error) {
	if strings.TrimSpace(p.Query) == "" {
		return "", fmt.Errorf("search query is empty")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q: scheme and host are required", endpoint)
	}

	params := u.Query()
	params.Set("q", p.Query)
	params.Set("count", strconv.Itoa(ClampCount(p.Count)))
	params.Set("offset", strconv.Itoa(max(p.Offset, 0)))
	if p.Market != "" {
		params.Set("mkt", p.Market)
	}
	if p.SafeSearch != "" {
		params.Set("safeSearch", p.SafeSearch)
	}
	if p.ImageType != "" {
		params.Set("imageType", p.ImageType)
	}
	if p.Filter != "" {
		params.Set("$filter", p.Filter)
	}
	if p.MinWidth > 0 {
		params.Set("minWidth", strconv.Itoa(p.MinWidth))
	}
	if p.MinHeight > 0 {
		params.Set("minHeight", strconv.Itoa(p.MinHeight))
	}

	u.RawQuery = params.Encode()
	return u.String(), nil
}

// ParseOffsetToken converts a continuation token back into an offset.
// The empty token is the first page.
func ParseOffsetToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid continuation token %q", token)
	}
	return offset, nil
}
