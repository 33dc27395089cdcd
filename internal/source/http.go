package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/iliyamo/venue-directory/internal/ingest"
	"github.com/iliyamo/venue-directory/internal/logging"
	"github.com/iliyamo/venue-directory/internal/metrics"
)

// StatusError is a non-2xx feed response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// BreakerSettings tunes the per-source circuit breaker.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before a probe.
	Timeout time.Duration
}

var defaultBreaker = BreakerSettings{FailureThreshold: 3, Timeout: 10 * time.Minute}

// HTTPFeed fetches a JSON feed over HTTP. Calls are throttled by a limiter
// shared with every source on the same host and guarded by a breaker so a
// dead upstream is not hammered on each scheduled run.
type HTTPFeed struct {
	name    string
	kind    ingest.SourceKind
	url     string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewHTTPFeed builds an HTTP adapter. A nil limiter disables throttling.
func NewHTTPFeed(name string, kind ingest.SourceKind, url string, client *http.Client, limiter *rate.Limiter, bs BreakerSettings) *HTTPFeed {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if bs.FailureThreshold == 0 {
		bs.FailureThreshold = defaultBreaker.FailureThreshold
	}
	if bs.Timeout <= 0 {
		bs.Timeout = defaultBreaker.Timeout
	}
	return &HTTPFeed{
		name:    name,
		kind:    kind,
		url:     url,
		client:  client,
		limiter: limiter,
		cb:      newBreaker(name, bs),
	}
}

func newBreaker(name string, bs BreakerSettings) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.FailureThreshold
		},
		// A cancelled run says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("source circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (f *HTTPFeed) Name() string            { return f.name }
func (f *HTTPFeed) Kind() ingest.SourceKind { return f.kind }

// Fetch downloads and decodes the feed.
func (f *HTTPFeed) Fetch(ctx context.Context) ([]ingest.RawRecord, error) {
	body, err := f.cb.Execute(func() ([]byte, error) {
		return f.get(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("circuit open for %s: %w", f.name, err)
		}
		return nil, err
	}
	return decodeFeed(f.name, body)
}

func (f *HTTPFeed) get(ctx context.Context) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "venue-directory-sync/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: f.url, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.url, err)
	}
	if len(body) > maxFeedBytes {
		return nil, fmt.Errorf("feed %s exceeds %d bytes", f.url, maxFeedBytes)
	}
	return body, nil
}
