package bing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"imageharvester/pkg/config"
	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/logger"
	"imageharvester/pkg/ratelimit"
	"imageharvester/pkg/retry"
	"imageharvester/pkg/search"
)

const (
	// maxResponseBytes bounds how much of a search response is read
	maxResponseBytes = 8 << 20

	// maxRetryAfter caps a server-requested pause
	maxRetryAfter = time.Minute
)

// Options configures the search client
type Options struct {
	APIKey     string
	Endpoint   string
	Market     string
	SafeSearch string
	ImageType  string
	Filter     string

	// MinWidth and MinHeight are sent as a size hint; zero omits them
	MinWidth  int
	MinHeight int

	Timeout           time.Duration
	RetryAttempts     int
	MaxCallsPerSecond int
	UserAgent         string
}

// OptionsFromConfig builds client options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		APIKey:            cfg.Search.APIKey,
		Endpoint:          cfg.Search.Endpoint,
		Market:            cfg.Search.Market,
		SafeSearch:        cfg.Search.SafeSearch,
		ImageType:         cfg.Search.ImageType,
		Filter:            cfg.Search.Filter,
		Timeout:           cfg.Search.Timeout,
		RetryAttempts:     cfg.Search.RetryAttempts,
		MaxCallsPerSecond: cfg.Search.MaxCallsPerSecond,
		UserAgent:         cfg.Download.UserAgent,
	}
	if cfg.Search.SizeHint {
		opts.MinWidth = cfg.Filter.MinWidth
		opts.MinHeight = cfg.Filter.MinHeight
	}
	return opts
}

// Client talks to the Bing Image Search API. It implements search.Provider.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	opts       Options
	gate       ratelimit.Limiter
	quota      ratelimit.Limiter
	policy     *retry.Policy
	logger     logger.Logger
}

var _ search.Provider = (*Client)(nil)

// NewClient creates a new search client. gate is the request gate shared
// with the downloader and may be nil.
func NewClient(opts Options, gate ratelimit.Limiter, log logger.Logger) *Client {
	// Use default logger if none provided
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		headers: map[string]string{
			SubscriptionKeyHeader: opts.APIKey,
			"Accept":              "application/json",
		},
		opts:   opts,
		gate:   gate,
		logger: log,
	}
	if opts.UserAgent != "" {
		c.headers["User-Agent"] = opts.UserAgent
	}
	if opts.MaxCallsPerSecond > 0 {
		c.quota = ratelimit.NewSlidingWindow(opts.MaxCallsPerSecond, time.Second)
	}

	c.policy = retry.SearchPolicy(opts.RetryAttempts)
	c.policy.DelayFor = retryAfterDelay
	c.policy.Logger = log
	return c
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetRetryPolicy replaces the provider retry policy
func (c *Client) SetRetryPolicy(p *retry.Policy) {
	if p.DelayFor == nil {
		p.DelayFor = retryAfterDelay
	}
	c.policy = p
}

// FetchPage returns one page of references. The continuation token is the
// offset of the next page as reported by the API.
func (c *Client) FetchPage(ctx context.Context, query string, pageSize int, token string) (search.Page, error) {
	offset, err := ParseOffsetToken(token)
	if err != nil {
		return search.Page{}, &errs.Error{Type: errs.ErrorTypeParsing, Message: "bad continuation token", Err: err}
	}

	resp, err := c.Search(ctx, query, ClampCount(pageSize), offset)
	if err != nil {
		return search.Page{}, err
	}

	page := search.Page{TotalEstimated: resp.TotalEstimatedMatches}
	for _, obj := range resp.Value {
		ref := obj.Reference(query)
		if ref.URL == "" {
			continue
		}
		page.References = append(page.References, ref)
	}

	if len(resp.Value) > 0 && resp.NextOffset > offset &&
		(resp.TotalEstimatedMatches == 0 || resp.NextOffset < resp.TotalEstimatedMatches) {
		page.Next = strconv.Itoa(resp.NextOffset)
	}

	c.logger.DebugWithFields("fetched search page", map[string]interface{}{
		"query":           query,
		"offset":          offset,
		"results":         len(page.References),
		"next":            page.Next,
		"total_estimated": resp.TotalEstimatedMatches,
	})
	return page, nil
}

// Search performs one search call, retried under the provider policy.
// Every attempt passes through the quota window and the shared gate.
func (c *Client) Search(ctx context.Context, query string, count, offset int) (*SearchResponse, error) {
	reqURL, err := GetSearchURL(c.opts.Endpoint, SearchParams{
		Query:      query,
		Count:      count,
		Offset:     offset,
		Market:     c.opts.Market,
		SafeSearch: c.opts.SafeSearch,
		ImageType:  c.opts.ImageType,
		Filter:     c.opts.Filter,
		MinWidth:   c.opts.MinWidth,
		MinHeight:  c.opts.MinHeight,
	})
	if err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeProvider, Message: "invalid search request", Err: err}
	}

	return retry.DoWithResult(ctx, c.policy, func(attempt int) (*SearchResponse, error) {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		var response SearchResponse
		if err := c.GetJSON(ctx, reqURL, &response); err != nil {
			return nil, err
		}
		return &response, nil
	})
}

func (c *Client) wait(ctx context.Context) error {
	if c.quota != nil {
		if err := c.quota.Wait(ctx); err != nil {
			return errs.NewCanceled(err)
		}
	}
	if c.gate != nil {
		if err := c.gate.Wait(ctx); err != nil {
			return errs.NewCanceled(err)
		}
	}
	return nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		logger.LogRequest(c.logger, req.Method, req.URL.String(), 0, duration)
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, errs.NewCanceled(ctxErr)
		}
		return nil, errs.FromTransport("search request failed", err)
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &errs.Error{Type: errs.ErrorTypeUnknown, Message: "failed to create request", Err: err}
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errs.FromTransport("failed to read response body", err)
	}

	if err := c.checkResponseStatus(resp, url, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "failed to parse search response",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	return nil
}

// checkResponseStatus maps a non-2xx response to a typed error. Throttling
// and server errors are transient; the rest are not.
func (c *Client) checkResponseStatus(resp *http.Response, url string, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	message := providerMessage(body)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    url,
	}
	if message != "" {
		fields["provider_message"] = message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", fields)
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: orDefault(message, "invalid or missing subscription key"),
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		logger.LogRateLimit(c.logger, url, retryAfter)
		return &throttledError{
			err: &errs.Error{
				Type:      errs.ErrorTypeRateLimit,
				Message:   orDefault(message, "rate limit exceeded"),
				Code:      resp.StatusCode,
				Transient: true,
			},
			retryAfter: retryAfter,
		}
	case resp.StatusCode >= 500:
		c.logger.ErrorWithFields("server error", fields)
		return &errs.Error{
			Type:      errs.ErrorTypeProvider,
			Message:   orDefault(message, "server error"),
			Code:      resp.StatusCode,
			Transient: true,
		}
	default:
		c.logger.ErrorWithFields("unexpected API error", fields)
		return &errs.Error{
			Type:    errs.ErrorTypeProvider,
			Message: orDefault(message, fmt.Sprintf("unexpected status code: %d", resp.StatusCode)),
			Code:    resp.StatusCode,
		}
	}
}

func providerMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return ""
	}
	return er.Message()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// throttledError carries the server-requested pause of a 429 response
type throttledError struct {
	err        *errs.Error
	retryAfter time.Duration
}

func (t *throttledError) Error() string { return t.err.Error() }
func (t *throttledError) Unwrap() error { return t.err }

func retryAfterDelay(err error) (time.Duration, bool) {
	var t *throttledError
	if errs.As(err, &t) && t.retryAfter > 0 {
		return t.retryAfter, true
	}
	return 0, false
}

// parseRetryAfter accepts delta-seconds or an HTTP date
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = t.Sub(now)
	}
	if d < 0 {
		return 0
	}
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}
