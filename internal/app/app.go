// Package app assembles the ingestion pipeline from configuration. Both
// binaries share it so the HTTP trigger and the CLI run the same thing.
package app

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/iliyamo/venue-directory/internal/config"
	"github.com/iliyamo/venue-directory/internal/ingest"
	"github.com/iliyamo/venue-directory/internal/repository"
	"github.com/iliyamo/venue-directory/internal/service"
	"github.com/iliyamo/venue-directory/internal/source"
)

// Pipeline is the wired orchestrator and auditor plus the repositories the
// HTTP layer reads directly.
type Pipeline struct {
	Orchestrator *ingest.Orchestrator
	Auditor      *ingest.Auditor
	Events       *repository.EventRepo
	Movies       *repository.MovieRepo
	Runs         *repository.SyncRunRepo
}

// Build wires adapters, repositories and the optional run publisher.
func Build(cfg config.Config, db *sql.DB) (*Pipeline, error) {
	sc := cfg.Sync
	adapters, err := source.Build(sc.Sources, source.Options{
		Client:   &http.Client{Timeout: sc.HTTPTimeout},
		Limiters: source.NewHostLimiters(sc.RequestsPerSecond),
	})
	if err != nil {
		return nil, err
	}

	loc := sc.Location()
	now := func() time.Time { return time.Now().In(loc) }

	events := repository.NewEventRepo(db)
	movies := repository.NewMovieRepo(db)
	runs := repository.NewSyncRunRepo(db)

	orch := &ingest.Orchestrator{
		Adapters:   adapters,
		Normalizer: NewNormalizer(sc),
		Venues:     repository.NewVenueRepo(db),
		Aliases:    ingest.MergeAliases(ingest.DefaultVenueAliases, sc.VenueAliases),
		Events:     events,
		Movies:     movies,
		Runs:       runs,
		Now:        now,
	}
	if cfg.RabbitURL != "" {
		orch.Notifier = service.NewRunPublisher(cfg.RabbitURL)
	}

	audit := &ingest.Auditor{
		Movies:     movies,
		Runs:       runs,
		Venues:     events,
		Sources:    sc.Sources.Names(),
		StaleAfter: sc.StaleAfter,
		Now:        now,
	}
	return &Pipeline{Orchestrator: orch, Auditor: audit, Events: events, Movies: movies, Runs: runs}, nil
}

// NewNormalizer maps sync settings onto the record normalizer.
func NewNormalizer(sc config.SyncConfig) *ingest.Normalizer {
	fixes := make([]ingest.TimezoneFix, 0, len(sc.TimezoneFixes))
	for _, f := range sc.TimezoneFixes {
		fixes = append(fixes, ingest.TimezoneFix{Source: f.Source, Region: f.Region, Hours: f.Hours})
	}
	return &ingest.Normalizer{
		HomeCountry:     sc.HomeCountry,
		DefaultCurrency: sc.DefaultCurrency,
		TimezoneFixes:   fixes,
		Location:        sc.Location(),
	}
}
