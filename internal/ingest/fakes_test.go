package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/venue-directory/internal/model"
	"github.com/iliyamo/venue-directory/internal/repository"
)

// memEvents is an in-memory EventStore with the same unique key as the
// events table.
type memEvents struct {
	mu      sync.Mutex
	rows    map[uint64]*model.Event
	nextID  uint64
	updates int
	failOn  string // title whose insert/update fails
}

func newMemEvents() *memEvents {
	return &memEvents{rows: map[uint64]*model.Event{}}
}

func (m *memEvents) FindBySource(_ context.Context, source, sourceID string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.sorted() {
		if e.SourceName != nil && *e.SourceName == source && e.SourceEventID != nil && *e.SourceEventID == sourceID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memEvents) FindByTitleDate(_ context.Context, source, titleKey, date string) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, e := range m.sorted() {
		if e.SourceName != nil && *e.SourceName == source && e.SourceEventID == nil &&
			TitleKey(e.Title) == titleKey && e.Date == date {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memEvents) Insert(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && e.Title == m.failOn {
		return errors.New("connection reset")
	}
	if e.SourceEventID != nil {
		for _, row := range m.rows {
			if row.SourceEventID != nil && *row.SourceEventID == *e.SourceEventID && *row.SourceName == *e.SourceName {
				return repository.ErrDuplicate
			}
		}
	}
	m.nextID++
	e.ID = m.nextID
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *memEvents) Update(_ context.Context, id uint64, p repository.EventPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	if m.failOn != "" && row.Title == m.failOn {
		return errors.New("connection reset")
	}
	changed := false
	setStr := func(dst *string, v *string) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setStr(&row.Title, p.Title)
	setStr(&row.Description, p.Description)
	setStr(&row.Date, p.Date)
	setStr(&row.Time, p.Time)
	if p.StartAt != nil {
		row.StartAt = p.StartAt
		changed = true
	}
	if p.EndAt != nil {
		row.EndAt = p.EndAt
		changed = true
	}
	setStr(&row.VenueName, p.VenueName)
	setStr(&row.VenueAddress, p.VenueAddress)
	if p.VenueID != nil {
		v := *p.VenueID
		row.VenueID = &v
		changed = true
	}
	setStr(&row.Category, p.Category)
	setStr(&row.PriceText, p.PriceText)
	setStr(&row.Currency, p.Currency)
	setStr(&row.Country, p.Country)
	setStr(&row.City, p.City)
	setStr(&row.ImageURL, p.ImageURL)
	setStr(&row.SourceURL, p.SourceURL)
	if !changed {
		return repository.ErrNoChange
	}
	m.updates++
	return nil
}

func (m *memEvents) get(id uint64) model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memEvents) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memEvents) sorted() []*model.Event {
	out := make([]*model.Event, 0, len(m.rows))
	for _, e := range m.rows {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type movieKey struct{ source, id string }

// memMovies is an in-memory MovieStore with a movie_sources mapping.
type memMovies struct {
	mu      sync.Mutex
	rows    map[uint64]*model.Movie
	sources map[movieKey]uint64
	nextID  uint64
}

func newMemMovies() *memMovies {
	return &memMovies{rows: map[uint64]*model.Movie{}, sources: map[movieKey]uint64{}}
}

func (m *memMovies) copyOf(id uint64) *model.Movie {
	cp := *m.rows[id]
	cp.ScrapedFrom = append([]string(nil), cp.ScrapedFrom...)
	return &cp
}

func (m *memMovies) FindBySource(_ context.Context, source, sourceID string) (*model.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.sources[movieKey{source, sourceID}]
	if !ok {
		return nil, nil
	}
	return m.copyOf(id), nil
}

func (m *memMovies) FindBySlug(_ context.Context, slug string) (*model.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, row := range m.rows {
		if row.Slug == slug {
			return m.copyOf(id), nil
		}
	}
	return nil, nil
}

func (m *memMovies) Insert(_ context.Context, mv *model.Movie, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Slug == mv.Slug {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	mv.ID = m.nextID
	cp := *mv
	cp.ScrapedFrom = append([]string(nil), mv.ScrapedFrom...)
	m.rows[mv.ID] = &cp
	if sourceID != "" && len(mv.ScrapedFrom) > 0 {
		m.sources[movieKey{mv.ScrapedFrom[0], sourceID}] = mv.ID
	}
	return nil
}

func (m *memMovies) Update(_ context.Context, id uint64, p repository.MoviePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.rows[id]
	if p.IsEmpty() {
		return repository.ErrNoChange
	}
	if p.Title != nil {
		row.Title = *p.Title
	}
	if p.Synopsis != nil {
		row.Synopsis = *p.Synopsis
	}
	if p.PosterURL != nil {
		row.PosterURL = *p.PosterURL
	}
	if p.Rating != nil {
		row.Rating = *p.Rating
	}
	if p.Genre != nil {
		row.Genre = *p.Genre
	}
	if p.DurationMins != nil {
		row.DurationMins = *p.DurationMins
	}
	if p.ReleaseDate != nil {
		row.ReleaseDate = p.ReleaseDate
	}
	if p.IsNowShowing != nil {
		row.IsNowShowing = *p.IsNowShowing
	}
	if p.IsComingSoon != nil {
		row.IsComingSoon = *p.IsComingSoon
	}
	return nil
}

func (m *memMovies) Tag(_ context.Context, movieID uint64, source, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.rows[movieID]
	if !row.HasTag(source) {
		row.ScrapedFrom = append(row.ScrapedFrom, source)
	}
	if sourceID != "" {
		m.sources[movieKey{source, sourceID}] = movieID
	}
	return nil
}

func (m *memMovies) PruneSourceTag(_ context.Context, source string, keep []uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := map[uint64]bool{}
	for _, id := range keep {
		kept[id] = true
	}
	var n int64
	for id, row := range m.rows {
		if kept[id] || !row.HasTag(source) {
			continue
		}
		var tags []string
		for _, t := range row.ScrapedFrom {
			if t != source {
				tags = append(tags, t)
			}
		}
		row.ScrapedFrom = tags
		n++
	}
	return n, nil
}

func (m *memMovies) RefreshShowingFlags(_ context.Context, today time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, row := range m.rows {
		now, soon := model.ShowingFlags(row.ReleaseDate, today)
		if now != row.IsNowShowing || soon != row.IsComingSoon {
			row.IsNowShowing, row.IsComingSoon = now, soon
			n++
		}
	}
	return n, nil
}

func (m *memMovies) ListOrphans(_ context.Context) ([]model.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Movie
	for id, row := range m.rows {
		if row.IsOrphan() {
			out = append(out, *m.copyOf(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memMovies) bySlug(slug string) *model.Movie {
	mv, _ := m.FindBySlug(context.Background(), slug)
	return mv
}

func (m *memMovies) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type staticVenues struct {
	venues []model.Venue
	err    error
}

func (s staticVenues) ListVenues(context.Context) ([]model.Venue, error) {
	return s.venues, s.err
}

// memRuns records the run log.
type memRuns struct {
	mu       sync.Mutex
	started  []string
	finished []model.SyncRun
}

func (r *memRuns) Start(_ context.Context, _ string, source string, _ time.Time) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, source)
	return uint64(len(r.started)), nil
}

func (r *memRuns) Finish(_ context.Context, run *model.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, *run)
	return nil
}

func (r *memRuns) byName(source string) *model.SyncRun {
	for i := range r.finished {
		if r.finished[i].Source == source {
			return &r.finished[i]
		}
	}
	return nil
}

// stubAdapter returns fixed records or a fixed error.
type stubAdapter struct {
	name    string
	kind    SourceKind
	records []RawRecord
	err     error
	calls   int
}

func (a *stubAdapter) Name() string     { return a.name }
func (a *stubAdapter) Kind() SourceKind { return a.kind }
func (a *stubAdapter) Fetch(context.Context) ([]RawRecord, error) {
	a.calls++
	return a.records, a.err
}

type captureNotifier struct{ got *Summary }

func (c *captureNotifier) RunFinished(_ context.Context, s *Summary) error {
	c.got = s
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var syncDay = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
