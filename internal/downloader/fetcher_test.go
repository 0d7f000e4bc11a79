package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/logger"
	"imageharvester/pkg/models"
	"imageharvester/pkg/ratelimit"
	"imageharvester/pkg/retry"
)

// countingLimiter records Wait calls without delaying
type countingLimiter struct {
	waits atomic.Int32
}

func (l *countingLimiter) Allow() bool { return true }
func (l *countingLimiter) Reset()      {}
func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits.Add(1)
	return ctx.Err()
}

func newTestDownloader(limiter ratelimit.Limiter, retries int, timeout time.Duration) *Downloader {
	return New(limiter, retry.DownloadPolicy(retries, time.Millisecond), Options{
		Timeout:   timeout,
		UserAgent: "harvester-test",
	}, logger.NewNopLogger())
}

func ref(url string) models.ImageReference {
	return models.ImageReference{URL: url, SourceQuery: "test"}
}

func TestFetchSuccess(t *testing.T) {
	var ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	limiter := &countingLimiter{}
	d := newTestDownloader(limiter, 1, time.Second)

	res := d.Fetch(context.Background(), ref(server.URL+"/a.png"))
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, []byte("payload"), res.Payload)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), limiter.waits.Load())
	assert.Equal(t, "harvester-test", ua)
}

func TestFetchHTTPErrorIsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
			}))
			defer server.Close()

			limiter := &countingLimiter{}
			res := newTestDownloader(limiter, 3, time.Second).Fetch(context.Background(), ref(server.URL))

			require.NotNil(t, res.Err)
			assert.Equal(t, errs.ErrorTypeHTTP, res.Err.Type)
			assert.Equal(t, status, res.Err.Code)
			assert.Nil(t, res.Payload)
			assert.Equal(t, 1, res.Attempts)
			assert.Equal(t, int32(1), calls.Load())
			assert.Equal(t, int32(1), limiter.waits.Load())
		})
	}
}

func TestFetchRetriesTimeoutOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	limiter := &countingLimiter{}
	res := newTestDownloader(limiter, 1, 100*time.Millisecond).Fetch(context.Background(), ref(server.URL))

	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), limiter.waits.Load(), "each attempt acquires the limiter")
}

func TestFetchTimeoutExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	res := newTestDownloader(&countingLimiter{}, 1, 50*time.Millisecond).Fetch(context.Background(), ref(server.URL))

	require.NotNil(t, res.Err)
	assert.Equal(t, errs.ErrorTypeNetwork, res.Err.Type)
	assert.True(t, res.Err.Transient)
	assert.Equal(t, 2, res.Attempts)
}

func TestFetchConnectionRefusedIsNotRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	limiter := &countingLimiter{}
	res := newTestDownloader(limiter, 3, time.Second).Fetch(context.Background(), ref(url))

	require.NotNil(t, res.Err)
	assert.Equal(t, errs.ErrorTypeNetwork, res.Err.Type)
	assert.False(t, res.Err.Transient)
	assert.Equal(t, 1, res.Attempts)
}

func TestFetchCanceledBeforeDispatch(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestDownloader(&countingLimiter{}, 1, time.Second).Fetch(ctx, ref(server.URL))
	require.NotNil(t, res.Err)
	assert.Equal(t, errs.ErrorTypeCanceled, res.Err.Type)
	assert.Zero(t, calls.Load())
}

func TestFetchInFlightSurvivesCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	res := newTestDownloader(&countingLimiter{}, 0, time.Second).Fetch(ctx, ref(server.URL))
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, []byte("late"), res.Payload)
}

func TestFetchRejectsOversizedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer server.Close()

	d := New(&countingLimiter{}, retry.DownloadPolicy(0, 0), Options{MaxPayload: 16}, logger.NewNopLogger())
	res := d.Fetch(context.Background(), ref(server.URL))
	require.NotNil(t, res.Err)
	assert.Equal(t, errs.ErrorTypeDecode, res.Err.Type)
}

func TestFetchSpacesDispatchesThroughGate(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	interval := 60 * time.Millisecond
	d := newTestDownloader(ratelimit.NewGate(interval), 0, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := d.Fetch(context.Background(), ref(server.URL))
			assert.True(t, res.OK())
		}()
	}
	wg.Wait()

	require.Len(t, stamps, 4)
	tolerance := 15 * time.Millisecond
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, interval-tolerance, "dispatch %d too close to previous", i)
	}
}
