package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/logger"
	"imageharvester/pkg/models"
	"imageharvester/pkg/ratelimit"
	"imageharvester/pkg/retry"
)

// DefaultMaxPayload bounds the size of a single image download
const DefaultMaxPayload int64 = 50 << 20

// Options configures the image downloader
type Options struct {
	// Timeout bounds one HTTP attempt including the body read
	Timeout    time.Duration
	UserAgent  string
	MaxPayload int64
}

// Downloader fetches image payloads through the shared request gate
type Downloader struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	policy     *retry.Policy
	userAgent  string
	maxPayload int64
	logger     logger.Logger
}

// New creates a downloader. Every attempt, retries included, waits on
// limiter before the request is dispatched.
func New(limiter ratelimit.Limiter, policy *retry.Policy, opts Options, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxPayload <= 0 {
		opts.MaxPayload = DefaultMaxPayload
	}
	if policy == nil {
		policy = retry.DownloadPolicy(1, 0)
	}
	if limiter == nil {
		limiter = ratelimit.NewGate(0)
	}

	return &Downloader{
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		policy:     policy,
		userAgent:  opts.UserAgent,
		maxPayload: opts.MaxPayload,
		logger:     log,
	}
}

// SetHTTPClient replaces the underlying HTTP client
func (d *Downloader) SetHTTPClient(c *http.Client) {
	d.httpClient = c
}

// Fetch downloads the referenced image. It never returns an error: failures
// are carried in the result. Run cancellation stops a pending limiter wait
// or retry pause but not a request already in flight.
func (d *Downloader) Fetch(ctx context.Context, ref models.ImageReference) models.FetchResult {
	result := models.FetchResult{Reference: ref}
	inflight := context.WithoutCancel(ctx)

	err := retry.Do(ctx, d.policy, func(attempt int) error {
		result.Attempts = attempt
		if err := d.limiter.Wait(ctx); err != nil {
			return errs.NewCanceled(err)
		}

		payload, contentType, err := d.fetchOnce(inflight, ref.URL)
		if err != nil {
			return err
		}
		result.Payload = payload
		result.ContentType = contentType
		return nil
	})
	if err != nil {
		result.Err = errs.Classify(err)
		d.logger.DebugWithFields("download failed", map[string]interface{}{
			"url":      ref.URL,
			"attempts": result.Attempts,
			"error":    err.Error(),
		})
	}
	return result
}

func (d *Downloader) fetchOnce(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", errs.NewNetwork("invalid image URL", err, false)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		logger.LogRequest(d.logger, req.Method, url, 0, time.Since(start))
		return nil, "", errs.FromTransport("download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.LogRequest(d.logger, req.Method, url, resp.StatusCode, time.Since(start))
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, "", errs.NewHTTP(resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, d.maxPayload+1))
	logger.LogRequest(d.logger, req.Method, url, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, "", errs.FromTransport("failed to read image body", err)
	}
	if int64(len(payload)) > d.maxPayload {
		return nil, "", errs.NewDecode(fmt.Sprintf("payload exceeds %d bytes", d.maxPayload), nil)
	}

	return payload, resp.Header.Get("Content-Type"), nil
}
