package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-directory/internal/logging"
	"github.com/iliyamo/venue-directory/internal/metrics"
	"github.com/iliyamo/venue-directory/internal/model"
)

// RunStore persists the per-source run log.
type RunStore interface {
	Start(ctx context.Context, runID, source string, startedAt time.Time) (uint64, error)
	Finish(ctx context.Context, run *model.SyncRun) error
}

// Notifier is told about every finished orchestration.
type Notifier interface {
	RunFinished(ctx context.Context, s *Summary) error
}

// SourceResult is one source's share of a Summary.
type SourceResult struct {
	Source  string           `json:"source"`
	Kind    SourceKind       `json:"kind"`
	Status  string           `json:"status"`
	Found   int              `json:"found"`
	Added   int              `json:"added"`
	Updated int              `json:"updated"`
	Skipped int              `json:"skipped"`
	Pruned  int64            `json:"pruned,omitempty"`
	Errors  []model.RunError `json:"errors"`
}

// Summary is the outcome of one orchestration; it is also the trigger
// endpoint's response body.
type Summary struct {
	RunID         string         `json:"runId"`
	Success       bool           `json:"success"`
	StartedAt     time.Time      `json:"startedAt"`
	FinishedAt    time.Time      `json:"finishedAt"`
	EventsFound   int            `json:"eventsFound"`
	EventsAdded   int            `json:"eventsAdded"`
	EventsUpdated int            `json:"eventsUpdated"`
	MoviesFound   int            `json:"moviesFound"`
	MoviesAdded   int            `json:"moviesAdded"`
	MoviesUpdated int            `json:"moviesUpdated"`
	FlagsRepaired int64          `json:"flagsRepaired"`
	Sources       []SourceResult `json:"sources"`
	Errors        []string       `json:"errors"`
}

// Orchestrator runs every configured adapter through the pipeline. It holds
// no state between runs; each call builds its own matcher snapshot and
// engine.
type Orchestrator struct {
	Adapters   []Adapter
	Normalizer *Normalizer
	Venues     VenueLister
	Aliases    map[string]string
	Events     EventStore
	Movies     MovieStore
	Runs       RunStore
	Notifier   Notifier
	Now        func() time.Time
}

// Run executes every adapter.
func (o *Orchestrator) Run(ctx context.Context) *Summary {
	return o.run(ctx, func(Adapter) bool { return true })
}

// RunKind executes only the adapters feeding kind.
func (o *Orchestrator) RunKind(ctx context.Context, kind SourceKind) *Summary {
	return o.run(ctx, func(a Adapter) bool { return a.Kind() == kind })
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) run(ctx context.Context, include func(Adapter) bool) *Summary {
	s := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: o.now(),
		Sources:   []SourceResult{},
		Errors:    []string{},
	}
	log := logging.With().Str("run_id", s.RunID).Logger()

	var selected []Adapter
	for _, a := range o.Adapters {
		if include(a) {
			selected = append(selected, a)
		}
	}
	log.Info().Int("adapters", len(selected)).Msg("sync run started")

	matcher := NewMatcher(nil, o.Aliases)
	if needsMatcher(selected) && o.Venues != nil {
		m, err := LoadMatcher(ctx, o.Venues, o.Aliases)
		if err != nil {
			// events are still stored, with venue_id left null
			log.Error().Err(err).Msg("venue snapshot failed; matching disabled for this run")
			s.Errors = append(s.Errors, "venue snapshot: "+err.Error())
		} else {
			matcher = m
		}
	}

	engine := NewEngine(o.Events, o.Movies, o.now)
	cinemaRan := false
	for _, a := range selected {
		res := o.runSource(ctx, log, s.RunID, a, matcher, engine)
		s.Sources = append(s.Sources, res)
		if res.Status == model.RunCompleted {
			s.Success = true
		}
		switch a.Kind() {
		case KindCinema:
			cinemaRan = true
			s.MoviesFound += res.Found
			s.MoviesAdded += res.Added
			s.MoviesUpdated += res.Updated
		default:
			s.EventsFound += res.Found
			s.EventsAdded += res.Added
			s.EventsUpdated += res.Updated
		}
		for _, e := range res.Errors {
			s.Errors = append(s.Errors, res.Source+": "+e.Message)
		}
	}

	if cinemaRan && o.Movies != nil {
		n, err := o.Movies.RefreshShowingFlags(ctx, o.now())
		if err != nil {
			log.Error().Err(err).Msg("showing flag refresh failed")
			s.Errors = append(s.Errors, "showing flags: "+err.Error())
		} else {
			s.FlagsRepaired = n
		}
	}

	s.FinishedAt = o.now()
	log.Info().
		Bool("success", s.Success).
		Int("sources", len(s.Sources)).
		Int("events_added", s.EventsAdded).
		Int("movies_added", s.MoviesAdded).
		Int("errors", len(s.Errors)).
		Msg("sync run finished")

	if o.Notifier != nil {
		if err := o.Notifier.RunFinished(ctx, s); err != nil {
			log.Warn().Err(err).Msg("run notification failed")
		}
	}
	return s
}

func needsMatcher(adapters []Adapter) bool {
	for _, a := range adapters {
		if a.Kind() == KindEvents {
			return true
		}
	}
	return false
}

// runSource drives one adapter. Nothing here returns an error: failures are
// recorded on the result and in the run log.
func (o *Orchestrator) runSource(ctx context.Context, runLog zerolog.Logger, runID string, a Adapter, matcher *Matcher, engine *Engine) SourceResult {
	name := a.Name()
	log := runLog.With().Str("source", name).Logger()
	res := SourceResult{Source: name, Kind: a.Kind(), Status: model.RunRunning, Errors: []model.RunError{}}
	started := o.now()

	var logID uint64
	if o.Runs != nil {
		id, err := o.Runs.Start(ctx, runID, name, started)
		if err != nil {
			log.Error().Err(err).Msg("could not open run log entry")
		}
		logID = id
	}

	defer func() {
		finished := o.now()
		metrics.SourceRuns.WithLabelValues(name, res.Status).Inc()
		metrics.SourceDuration.WithLabelValues(name).Observe(finished.Sub(started).Seconds())
		if o.Runs == nil || logID == 0 {
			return
		}
		entry := &model.SyncRun{
			ID:         logID,
			RunID:      runID,
			Source:     name,
			Status:     res.Status,
			Found:      res.Found,
			Added:      res.Added,
			Updated:    res.Updated,
			Skipped:    res.Skipped,
			Errors:     res.Errors,
			StartedAt:  started,
			FinishedAt: &finished,
		}
		if err := o.Runs.Finish(context.WithoutCancel(ctx), entry); err != nil {
			log.Error().Err(err).Msg("could not close run log entry")
		}
	}()

	records, err := a.Fetch(ctx)
	if err != nil {
		uerr := &AdapterUnavailableError{Source: name, Err: err}
		log.Error().Err(err).Msg("source unavailable")
		res.Status = model.RunFailed
		res.Errors = append(res.Errors, model.RunError{Kind: errorKind(uerr), Message: uerr.Error()})
		return res
	}
	res.Found = len(records)

	persistFailed := false
	for i := range records {
		if err := ctx.Err(); err != nil {
			log.Error().Err(err).Int("remaining", len(records)-i).Msg("run aborted")
			res.Status = model.RunFailed
			res.Errors = append(res.Errors, model.RunError{Kind: "aborted", Message: err.Error()})
			return res
		}
		raw := records[i]
		// tags, seen ids and pruning all key on the adapter name
		raw.SourceName = name
		outcome, err := o.processRecord(ctx, a.Kind(), raw, matcher, engine)
		metrics.RecordsProcessed.WithLabelValues(name, outcome).Inc()
		switch outcome {
		case "insert":
			res.Added++
		case "update":
			res.Updated++
		case "skip":
			res.Skipped++
		case "conflict":
			res.Skipped++
			log.Warn().Str("source_id", raw.SourceEventID).Str("title", raw.Title).Msg("identity conflict with a concurrent run, skipped")
		default:
			var pers *PersistenceError
			if errors.As(err, &pers) {
				persistFailed = true
			}
			log.Warn().Err(err).Str("source_id", raw.SourceEventID).Msg("record rejected")
			res.Errors = append(res.Errors, model.RunError{
				Kind:     errorKind(err),
				Message:  err.Error(),
				SourceID: raw.SourceEventID,
				Title:    raw.Title,
			})
		}
	}

	// a chain that listed nothing it failed to store vouches only for what it returned
	if a.Kind() == KindCinema && o.Movies != nil && !persistFailed {
		n, err := o.Movies.PruneSourceTag(ctx, name, engine.SeenMovies(name))
		if err != nil {
			log.Error().Err(err).Msg("tag prune failed")
			res.Errors = append(res.Errors, model.RunError{Kind: "persistence", Message: "prune tags: " + err.Error()})
		} else {
			res.Pruned = n
			metrics.TagsPruned.WithLabelValues(name).Add(float64(n))
		}
	}

	res.Status = model.RunCompleted
	log.Info().
		Int("found", res.Found).
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("errors", len(res.Errors)).
		Msg("source synced")
	return res
}

// processRecord runs one record through normalize, match and upsert and
// reports an outcome label: insert, update, skip, conflict, malformed or
// error.
func (o *Orchestrator) processRecord(ctx context.Context, kind SourceKind, raw RawRecord, matcher *Matcher, engine *Engine) (string, error) {
	norm := o.Normalizer
	if norm == nil {
		norm = &Normalizer{}
	}
	rec, err := norm.Normalize(kind, raw)
	if err != nil {
		return "malformed", err
	}
	if kind == KindEvents {
		rec.VenueID = matcher.Match(rec.VenueName, rec.VenueAddress)
	}
	result, err := engine.Upsert(ctx, rec)
	if errors.Is(err, ErrIdentityConflict) {
		return "conflict", nil
	}
	if err != nil {
		return "error", err
	}
	return string(result.Action), nil
}
