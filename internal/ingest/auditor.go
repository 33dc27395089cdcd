package ingest

import (
	"context"
	"time"

	"github.com/iliyamo/venue-directory/internal/logging"
	"github.com/iliyamo/venue-directory/internal/metrics"
	"github.com/iliyamo/venue-directory/internal/model"
)

// OrphanLister returns movies flagged now-showing that no chain lists.
type OrphanLister interface {
	ListOrphans(ctx context.Context) ([]model.Movie, error)
}

// RunHistory answers freshness questions from the run log.
type RunHistory interface {
	// LastSuccessful returns the newest completed run per source.
	LastSuccessful(ctx context.Context) (map[string]time.Time, error)
}

// UnmatchedVenues ranks venue names that ingestion could not resolve.
type UnmatchedVenues interface {
	TopUnmatchedVenues(ctx context.Context, limit int) ([]model.VenueNameCount, error)
}

// SourceFreshness reports when a source last completed.
type SourceFreshness struct {
	Source        string     `json:"source"`
	LastSuccessAt *time.Time `json:"lastSuccessAt"`
	Stale         bool       `json:"stale"`
}

// Report is the full audit result.
type Report struct {
	GeneratedAt     time.Time              `json:"generatedAt"`
	Orphans         []model.Movie          `json:"orphans"`
	Sources         []SourceFreshness      `json:"sources"`
	UnmatchedVenues []model.VenueNameCount `json:"unmatchedVenues"`
}

// Auditor inspects the catalog without writing to it.
type Auditor struct {
	Movies OrphanLister
	Runs   RunHistory
	Venues UnmatchedVenues
	// Sources are the configured adapter names; a source that never
	// completed is reported stale.
	Sources    []string
	StaleAfter time.Duration
	TopVenues  int
	Now        func() time.Time
}

// Orphans lists movies that claim to be showing but carry no chain tag.
func (a *Auditor) Orphans(ctx context.Context) ([]model.Movie, error) {
	movies, err := a.Movies.ListOrphans(ctx)
	if err != nil {
		return nil, err
	}
	metrics.OrphanMovies.Set(float64(len(movies)))
	if len(movies) > 0 {
		logging.Warn().Int("count", len(movies)).Msg("orphan movies found")
	}
	if movies == nil {
		movies = []model.Movie{}
	}
	return movies, nil
}

// Report runs every check.
func (a *Auditor) Report(ctx context.Context) (*Report, error) {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	orphans, err := a.Orphans(ctx)
	if err != nil {
		return nil, err
	}
	r := &Report{
		GeneratedAt:     now,
		Orphans:         orphans,
		Sources:         []SourceFreshness{},
		UnmatchedVenues: []model.VenueNameCount{},
	}

	if a.Runs != nil {
		last, err := a.Runs.LastSuccessful(ctx)
		if err != nil {
			return nil, err
		}
		staleAfter := a.StaleAfter
		if staleAfter <= 0 {
			staleAfter = 48 * time.Hour
		}
		for _, name := range a.Sources {
			f := SourceFreshness{Source: name, Stale: true}
			if at, ok := last[name]; ok {
				at := at
				f.LastSuccessAt = &at
				f.Stale = now.Sub(at) > staleAfter
			}
			r.Sources = append(r.Sources, f)
		}
	}

	if a.Venues != nil {
		limit := a.TopVenues
		if limit <= 0 {
			limit = 20
		}
		names, err := a.Venues.TopUnmatchedVenues(ctx, limit)
		if err != nil {
			return nil, err
		}
		if names != nil {
			r.UnmatchedVenues = names
		}
	}
	return r, nil
}
