package source

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/iliyamo/venue-directory/internal/config"
	"github.com/iliyamo/venue-directory/internal/ingest"
)

// HostLimiters hands out one limiter per upstream host so sources that
// share a site also share its request budget.
type HostLimiters struct {
	mu       sync.Mutex
	perSec   rate.Limit
	limiters map[string]*rate.Limiter
}

// NewHostLimiters allows rps requests per second per host with a burst of
// one. rps <= 0 disables throttling.
func NewHostLimiters(rps float64) *HostLimiters {
	return &HostLimiters{perSec: rate.Limit(rps), limiters: map[string]*rate.Limiter{}}
}

// For returns the limiter for host, or nil when throttling is disabled.
func (h *HostLimiters) For(host string) *rate.Limiter {
	if h == nil || h.perSec <= 0 {
		return nil
	}
	host = strings.ToLower(host)
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.perSec, 1)
		h.limiters[host] = l
	}
	return l
}

// Options are shared by every adapter Build creates.
type Options struct {
	Client   *http.Client
	Limiters *HostLimiters
	Breaker  BreakerSettings
}

// Build turns configured sources into adapters, preserving order.
func Build(specs config.SourceList, opts Options) ([]ingest.Adapter, error) {
	adapters := make([]ingest.Adapter, 0, len(specs))
	for _, s := range specs {
		kind := ingest.SourceKind(s.Kind)
		if kind != ingest.KindEvents && kind != ingest.KindCinema {
			return nil, fmt.Errorf("source %s: unknown kind %q", s.Name, s.Kind)
		}
		if !isHTTP(s.Location) {
			adapters = append(adapters, NewFileFeed(s.Name, kind, s.Location))
			continue
		}
		u, err := url.Parse(s.Location)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("source %s: invalid url %q", s.Name, s.Location)
		}
		adapters = append(adapters, NewHTTPFeed(s.Name, kind, s.Location, opts.Client, opts.Limiters.For(u.Hostname()), opts.Breaker))
	}
	return adapters, nil
}

func isHTTP(loc string) bool {
	l := strings.ToLower(loc)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
