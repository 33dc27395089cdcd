package ingest

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/iliyamo/venue-directory/internal/model"
	"github.com/iliyamo/venue-directory/internal/repository"
)

// Action is the engine's decision for one record.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Result is what Upsert did with one record.
type Result struct {
	Action Action
	// ID is the catalog row the record landed on; zero when skipped on a
	// conflict.
	ID uint64
}

// EventStore is the event table as the engine sees it. Find methods return
// nil (or an empty slice) and no error when nothing matches. Insert returns
// repository.ErrDuplicate on a unique-key conflict; Update returns
// repository.ErrNoChange when the row already holds the patch values.
type EventStore interface {
	FindBySource(ctx context.Context, source, sourceID string) (*model.Event, error)
	FindByTitleDate(ctx context.Context, source, titleKey, date string) ([]model.Event, error)
	Insert(ctx context.Context, e *model.Event) error
	Update(ctx context.Context, id uint64, p repository.EventPatch) error
}

// MovieStore is the movie table plus its movie_sources mapping.
type MovieStore interface {
	FindBySource(ctx context.Context, source, sourceID string) (*model.Movie, error)
	FindBySlug(ctx context.Context, slug string) (*model.Movie, error)
	Insert(ctx context.Context, m *model.Movie, sourceID string) error
	Update(ctx context.Context, id uint64, p repository.MoviePatch) error
	// Tag adds source to the movie's scraped_from set and maps
	// (source, sourceID) to the movie. Both halves are idempotent.
	Tag(ctx context.Context, movieID uint64, source, sourceID string) error
	// PruneSourceTag removes source from every movie not in keep and
	// returns how many rows changed.
	PruneSourceTag(ctx context.Context, source string, keep []uint64) (int64, error)
	// RefreshShowingFlags recomputes is_now_showing / is_coming_soon from
	// release dates for the whole table.
	RefreshShowingFlags(ctx context.Context, today time.Time) (int64, error)
}

// Engine decides insert, update or skip for normalized records. An Engine
// lives for one run: it remembers which rows the weak title+date key
// already claimed so two distinct items are never merged into one row.
type Engine struct {
	events  EventStore
	movies  MovieStore
	now     func() time.Time
	claimed map[uint64]bool
	seen    map[string]map[uint64]bool
}

// NewEngine builds an engine for one run.
func NewEngine(events EventStore, movies MovieStore, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		events:  events,
		movies:  movies,
		now:     now,
		claimed: map[uint64]bool{},
		seen:    map[string]map[uint64]bool{},
	}
}

// Upsert stores one record. A unique-key race with another run yields a
// skip result together with ErrIdentityConflict; other store failures are
// wrapped in *PersistenceError.
func (e *Engine) Upsert(ctx context.Context, rec *Record) (Result, error) {
	if rec.Kind == KindCinema {
		return e.upsertMovie(ctx, rec)
	}
	return e.upsertEvent(ctx, rec)
}

// SeenMovies returns the movie ids a cinema source touched in this run.
func (e *Engine) SeenMovies(source string) []uint64 {
	ids := make([]uint64, 0, len(e.seen[source]))
	for id := range e.seen[source] {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) upsertEvent(ctx context.Context, rec *Record) (Result, error) {
	existing, err := e.findEvent(ctx, rec)
	if err != nil {
		return Result{}, &PersistenceError{Op: "find event", Err: err}
	}
	if existing == nil {
		ev := newEvent(rec)
		if err := e.events.Insert(ctx, ev); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return Result{Action: ActionSkip}, ErrIdentityConflict
			}
			return Result{}, &PersistenceError{Op: "insert event", Err: err}
		}
		e.claimed[ev.ID] = true
		return Result{Action: ActionInsert, ID: ev.ID}, nil
	}

	e.claimed[existing.ID] = true
	patch := eventPatch(existing, rec)
	if patch.IsEmpty() {
		return Result{Action: ActionSkip, ID: existing.ID}, nil
	}
	if err := e.events.Update(ctx, existing.ID, patch); err != nil {
		if errors.Is(err, repository.ErrNoChange) {
			return Result{Action: ActionSkip, ID: existing.ID}, nil
		}
		return Result{}, &PersistenceError{Op: "update event", Err: err}
	}
	return Result{Action: ActionUpdate, ID: existing.ID}, nil
}

// findEvent resolves a record's identity. With a stable source id the pair
// (source, id) decides. Without one the weaker (source, title, date) key
// is used, and it leans towards "new": rows already claimed in this run
// are never reused, an exact time match wins, and a lone remaining
// candidate is taken. Several candidates with no time match yield nil, so
// the record is inserted rather than merged into a guess.
func (e *Engine) findEvent(ctx context.Context, rec *Record) (*model.Event, error) {
	if rec.SourceID != "" {
		return e.events.FindBySource(ctx, rec.Source, rec.SourceID)
	}
	candidates, err := e.events.FindByTitleDate(ctx, rec.Source, TitleKey(rec.Title), rec.Date)
	if err != nil {
		return nil, err
	}
	var open []*model.Event
	for i := range candidates {
		c := &candidates[i]
		if e.claimed[c.ID] {
			continue
		}
		if c.Time == rec.Time {
			return c, nil
		}
		open = append(open, c)
	}
	if len(open) == 1 {
		return open[0], nil
	}
	return nil, nil
}

func newEvent(rec *Record) *model.Event {
	source := rec.Source
	ev := &model.Event{
		Title:        rec.Title,
		Description:  rec.Description,
		Date:         rec.Date,
		Time:         rec.Time,
		StartAt:      rec.StartAt,
		EndAt:        rec.EndAt,
		VenueName:    rec.VenueName,
		VenueAddress: rec.VenueAddress,
		VenueID:      rec.VenueID,
		Category:     rec.Category,
		Status:       model.StatusPending,
		SourceName:   &source,
		SourceURL:    rec.SourceURL,
		ImageURL:     rec.ImageURL,
		PriceText:    rec.PriceText,
		Currency:     rec.Currency,
		Country:      rec.Country,
		City:         rec.City,
	}
	if rec.SourceID != "" {
		id := rec.SourceID
		ev.SourceEventID = &id
	}
	return ev
}

// eventPatch lists the supplied fields that differ from the stored row.
// Defaults never overwrite, venue_id is never cleared, and once an admin
// moved the row out of pending its venue and category are left alone.
func eventPatch(cur *model.Event, rec *Record) repository.EventPatch {
	var p repository.EventPatch
	str := func(field, next, current string) *string {
		if !rec.supplied(field, next) || next == current {
			return nil
		}
		v := next
		return &v
	}
	curated := cur.Status != model.StatusPending

	p.Title = str("title", rec.Title, cur.Title)
	p.Description = str("description", rec.Description, cur.Description)
	p.Date = str("date", rec.Date, cur.Date)
	p.Time = str("time", rec.Time, cur.Time)
	if rec.StartAt != nil && (cur.StartAt == nil || !rec.StartAt.Equal(*cur.StartAt)) {
		p.StartAt = rec.StartAt
	}
	if rec.EndAt != nil && (cur.EndAt == nil || !rec.EndAt.Equal(*cur.EndAt)) {
		p.EndAt = rec.EndAt
	}
	p.VenueName = str("venue_name", rec.VenueName, cur.VenueName)
	p.VenueAddress = str("venue_address", rec.VenueAddress, cur.VenueAddress)
	if rec.VenueID != nil && (cur.VenueID == nil || (!curated && *cur.VenueID != *rec.VenueID)) {
		id := *rec.VenueID
		p.VenueID = &id
	}
	if !curated || cur.Category == "" {
		p.Category = str("category", rec.Category, cur.Category)
	}
	p.PriceText = str("price_text", rec.PriceText, cur.PriceText)
	p.Currency = str(FieldCurrency, rec.Currency, cur.Currency)
	p.Country = str(FieldCountry, rec.Country, cur.Country)
	p.City = str("city", rec.City, cur.City)
	p.ImageURL = str("image_url", rec.ImageURL, cur.ImageURL)
	p.SourceURL = str("source_url", rec.SourceURL, cur.SourceURL)
	return p
}

func (e *Engine) upsertMovie(ctx context.Context, rec *Record) (Result, error) {
	var (
		existing *model.Movie
		err      error
		mapped   bool
	)
	if rec.SourceID != "" {
		existing, err = e.movies.FindBySource(ctx, rec.Source, rec.SourceID)
		if err != nil {
			return Result{}, &PersistenceError{Op: "find movie", Err: err}
		}
		mapped = existing != nil
	}
	slug := Slugify(rec.Title)
	if existing == nil {
		existing, err = e.movies.FindBySlug(ctx, slug)
		if err != nil {
			return Result{}, &PersistenceError{Op: "find movie", Err: err}
		}
	}

	today := e.now()
	if existing == nil {
		now, soon := model.ShowingFlags(rec.ReleaseDate, today)
		m := &model.Movie{
			Title:        rec.Title,
			Slug:         slug,
			Synopsis:     rec.Synopsis,
			PosterURL:    rec.PosterURL,
			Rating:       rec.Rating,
			Genre:        rec.Genre,
			DurationMins: rec.DurationMins,
			ReleaseDate:  rec.ReleaseDate,
			ScrapedFrom:  []string{rec.Source},
			IsNowShowing: now,
			IsComingSoon: soon,
		}
		if err := e.movies.Insert(ctx, m, rec.SourceID); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				// the racing run's row still counts as listed by this source
				if winner, ferr := e.movies.FindBySlug(ctx, slug); ferr == nil && winner != nil {
					e.markSeen(rec.Source, winner.ID)
				}
				return Result{Action: ActionSkip}, ErrIdentityConflict
			}
			return Result{}, &PersistenceError{Op: "insert movie", Err: err}
		}
		e.markSeen(rec.Source, m.ID)
		return Result{Action: ActionInsert, ID: m.ID}, nil
	}

	e.markSeen(rec.Source, existing.ID)
	changed := false
	if !existing.HasTag(rec.Source) || (rec.SourceID != "" && !mapped) {
		if err := e.movies.Tag(ctx, existing.ID, rec.Source, rec.SourceID); err != nil {
			return Result{}, &PersistenceError{Op: "tag movie", Err: err}
		}
		changed = !existing.HasTag(rec.Source)
	}
	patch := moviePatch(existing, rec, today)
	if !patch.IsEmpty() {
		err := e.movies.Update(ctx, existing.ID, patch)
		switch {
		case err == nil:
			changed = true
		case errors.Is(err, repository.ErrNoChange):
		default:
			return Result{}, &PersistenceError{Op: "update movie", Err: err}
		}
	}
	if !changed {
		return Result{Action: ActionSkip, ID: existing.ID}, nil
	}
	return Result{Action: ActionUpdate, ID: existing.ID}, nil
}

// moviePatch refreshes supplied content fields. The display title follows
// the first chain in scraped_from only, so two chains' spellings do not
// overwrite each other on every run.
func moviePatch(cur *model.Movie, rec *Record, today time.Time) repository.MoviePatch {
	var p repository.MoviePatch
	str := func(next, current string) *string {
		if next == "" || next == current {
			return nil
		}
		v := next
		return &v
	}
	if len(cur.ScrapedFrom) > 0 && cur.ScrapedFrom[0] == rec.Source {
		p.Title = str(rec.Title, cur.Title)
	}
	p.Synopsis = str(rec.Synopsis, cur.Synopsis)
	p.PosterURL = str(rec.PosterURL, cur.PosterURL)
	p.Rating = str(rec.Rating, cur.Rating)
	p.Genre = str(rec.Genre, cur.Genre)
	if rec.DurationMins > 0 && rec.DurationMins != cur.DurationMins {
		d := rec.DurationMins
		p.DurationMins = &d
	}
	release := cur.ReleaseDate
	if rec.ReleaseDate != nil && (cur.ReleaseDate == nil || !sameDay(*rec.ReleaseDate, *cur.ReleaseDate)) {
		p.ReleaseDate = rec.ReleaseDate
		release = rec.ReleaseDate
	}
	now, soon := model.ShowingFlags(release, today)
	if now != cur.IsNowShowing {
		p.IsNowShowing = &now
	}
	if soon != cur.IsComingSoon {
		p.IsComingSoon = &soon
	}
	return p
}

func (e *Engine) markSeen(source string, id uint64) {
	if e.seen[source] == nil {
		e.seen[source] = map[uint64]bool{}
	}
	e.seen[source][id] = true
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// TitleKey is the normalized title used by the weak identity key.
func TitleKey(title string) string {
	return strings.ToLower(collapseSpace(title))
}

var (
	trailingTags = regexp.MustCompile(`(\s*[\(\[][^\)\]]*[\)\]])+\s*$`)
	nonSlug      = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify builds the cross-chain movie key from a title. Trailing
// bracketed screening tags such as "(2D)" or "[Arabic]" are dropped so two
// chains' spellings of one film converge.
func Slugify(title string) string {
	t := trailingTags.ReplaceAllString(title, "")
	if strings.TrimSpace(t) == "" {
		t = title
	}
	t = strings.ReplaceAll(strings.ToLower(t), "&", " and ")
	return strings.Trim(nonSlug.ReplaceAllString(t, "-"), "-")
}
