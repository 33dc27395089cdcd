package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-directory/internal/ingest"
	"github.com/iliyamo/venue-directory/internal/model"
	"github.com/iliyamo/venue-directory/internal/repository"
)

type fakeRunner struct {
	kinds   []ingest.SourceKind
	success bool
	ctxErr  error
}

func (f *fakeRunner) Run(ctx context.Context) *ingest.Summary {
	return f.RunKind(ctx, "")
}

func (f *fakeRunner) RunKind(ctx context.Context, kind ingest.SourceKind) *ingest.Summary {
	f.kinds = append(f.kinds, kind)
	f.ctxErr = ctx.Err()
	s := &ingest.Summary{RunID: "r-1", Success: f.success, MoviesFound: 3, MoviesUpdated: 1, Errors: []string{}}
	if !f.success {
		s.Errors = []string{"cinema-x: source cinema-x unavailable: status 503"}
	}
	return s
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSyncHandler(t *testing.T) {
	tests := []struct {
		path     string
		success  bool
		wantKind ingest.SourceKind
		want     int
	}{
		{"/sync", true, "", http.StatusOK},
		{"/sync-events", true, ingest.KindEvents, http.StatusOK},
		{"/sync-movies", false, ingest.KindCinema, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r := &fakeRunner{success: tt.success}
			h := &SyncHandler{Runner: r, Timeout: time.Minute}
			e := echo.New()
			e.POST("/sync", h.SyncAll)
			e.POST("/sync-events", h.SyncEvents)
			e.POST("/sync-movies", h.SyncMovies)

			rec := do(e, http.MethodPost, tt.path, "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if len(r.kinds) != 1 || r.kinds[0] != tt.wantKind {
				t.Errorf("kinds = %v", r.kinds)
			}
			var body struct {
				Success       bool     `json:"success"`
				MoviesFound   int      `json:"moviesFound"`
				MoviesUpdated int      `json:"moviesUpdated"`
				Errors        []string `json:"errors"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Success != tt.success || body.MoviesFound != 3 || body.MoviesUpdated != 1 || body.Errors == nil {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestSyncHandlerIgnoresClientCancel(t *testing.T) {
	r := &fakeRunner{success: true}
	h := &SyncHandler{Runner: r}
	e := echo.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	if err := h.SyncAll(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatal(err)
	}
	if r.ctxErr != nil {
		t.Errorf("run context err = %v, want nil", r.ctxErr)
	}
}

type fakeModerator struct {
	events    map[uint64]*model.Event
	updateErr error
	hidden    map[uint64]bool
}

func (f *fakeModerator) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeModerator) UpdateStatus(_ context.Context, id uint64, from, to model.Status) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.events[id].Status != from {
		return repository.ErrStaleStatus
	}
	f.events[id].Status = to
	return nil
}

func (f *fakeModerator) SetHidden(_ context.Context, id uint64, hidden bool) error {
	if _, ok := f.events[id]; !ok {
		return repository.ErrEventNotFound
	}
	f.hidden[id] = hidden
	return nil
}

type fakeRuns struct {
	source string
	limit  int
}

func (f *fakeRuns) List(_ context.Context, source string, limit int) ([]model.SyncRun, error) {
	f.source, f.limit = source, limit
	return []model.SyncRun{{ID: 1, RunID: "r-1", Source: source, Status: model.RunCompleted}}, nil
}

type fakeAudit struct{ err error }

func (f fakeAudit) Orphans(context.Context) ([]model.Movie, error) {
	return []model.Movie{{ID: 9, Title: "Gone", IsNowShowing: true, ScrapedFrom: []string{}}}, f.err
}

func (f fakeAudit) Report(context.Context) (*ingest.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.Report{Orphans: []model.Movie{}}, nil
}

func newAdminServer(mod *fakeModerator, runs *fakeRuns, audit Audits) *echo.Echo {
	h := NewAdminHandler(runs, audit, mod)
	e := echo.New()
	e.GET("/runs", h.ListSyncRuns)
	e.GET("/orphans", h.Orphans)
	e.GET("/report", h.AuditReport)
	e.PATCH("/events/:id/status", h.SetStatus)
	e.PATCH("/events/:id/visibility", h.SetVisibility)
	return e
}

func TestAdminSetStatus(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		body      string
		updateErr error
		want      int
		wantState model.Status
	}{
		{"publish pending", "1", `{"status":"published"}`, nil, http.StatusOK, model.StatusPublished},
		{"same state", "1", `{"status":"pending"}`, nil, http.StatusOK, model.StatusPending},
		{"unknown status", "1", `{"status":"archived"}`, nil, http.StatusBadRequest, model.StatusPending},
		{"missing status", "1", `{}`, nil, http.StatusBadRequest, model.StatusPending},
		{"bad id", "x", `{"status":"published"}`, nil, http.StatusBadRequest, model.StatusPending},
		{"not found", "99", `{"status":"published"}`, nil, http.StatusNotFound, model.StatusPending},
		{"lost race", "1", `{"status":"draft"}`, repository.ErrStaleStatus, http.StatusConflict, model.StatusPending},
		{"db down", "1", `{"status":"draft"}`, errors.New("boom"), http.StatusInternalServerError, model.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := &fakeModerator{events: map[uint64]*model.Event{1: {ID: 1, Status: model.StatusPending}}, updateErr: tt.updateErr}
			e := newAdminServer(mod, &fakeRuns{}, fakeAudit{})
			rec := do(e, http.MethodPatch, "/events/"+tt.id+"/status", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if got := mod.events[1].Status; got != tt.wantState {
				t.Errorf("state = %s, want %s", got, tt.wantState)
			}
		})
	}
}

func TestAdminSetStatusRejectsDisallowedTransition(t *testing.T) {
	mod := &fakeModerator{events: map[uint64]*model.Event{1: {ID: 1, Status: model.StatusPublished}}}
	e := newAdminServer(mod, &fakeRuns{}, fakeAudit{})
	rec := do(e, http.MethodPatch, "/events/1/status", `{"status":"pending"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if mod.events[1].Status != model.StatusPublished {
		t.Errorf("state changed to %s", mod.events[1].Status)
	}
}

func TestAdminSetVisibility(t *testing.T) {
	mod := &fakeModerator{events: map[uint64]*model.Event{1: {ID: 1, Status: model.StatusPublished}}, hidden: map[uint64]bool{}}
	e := newAdminServer(mod, &fakeRuns{}, fakeAudit{})

	if rec := do(e, http.MethodPatch, "/events/1/visibility", `{"is_hidden":true}`); rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if !mod.hidden[1] || mod.events[1].Status != model.StatusPublished {
		t.Errorf("hidden=%v status=%s", mod.hidden[1], mod.events[1].Status)
	}
	if rec := do(e, http.MethodPatch, "/events/1/visibility", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing flag: status = %d", rec.Code)
	}
	if rec := do(e, http.MethodPatch, "/events/7/visibility", `{"is_hidden":false}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown event: status = %d", rec.Code)
	}
}

func TestAdminReads(t *testing.T) {
	runs := &fakeRuns{}
	e := newAdminServer(&fakeModerator{}, runs, fakeAudit{})

	rec := do(e, http.MethodGet, "/runs?source=cinema-x&limit=5", "")
	if rec.Code != http.StatusOK || runs.source != "cinema-x" || runs.limit != 5 {
		t.Errorf("runs: status=%d source=%q limit=%d", rec.Code, runs.source, runs.limit)
	}
	if rec := do(e, http.MethodGet, "/runs?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d", rec.Code)
	}
	rec = do(e, http.MethodGet, "/orphans", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("orphans: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/report", ""); rec.Code != http.StatusOK {
		t.Errorf("report: status = %d", rec.Code)
	}

	failing := newAdminServer(&fakeModerator{}, runs, fakeAudit{err: errors.New("db")})
	if rec := do(failing, http.MethodGet, "/report", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("failing report: status = %d", rec.Code)
	}
}

type fakeListings struct {
	filter  repository.EventFilter
	showing repository.Showing
}

func (f *fakeListings) ListPublic(_ context.Context, fl repository.EventFilter) ([]model.Event, error) {
	f.filter = fl
	src := "platinumlist"
	return []model.Event{
		{ID: 1, Title: "Comedy Night", Date: "2026-10-24", Status: model.StatusPublished, SourceName: &src},
		{ID: 2, Title: "Hidden", Date: "2026-10-24", Status: model.StatusPublished, IsHidden: true},
	}, nil
}

func (f *fakeListings) ListShowing(_ context.Context, which repository.Showing, _ int) ([]model.Movie, error) {
	f.showing = which
	return []model.Movie{{ID: 3, Title: "Dune", Slug: "dune", ScrapedFrom: []string{"cinema-a"}}}, nil
}

func TestPublicListings(t *testing.T) {
	l := &fakeListings{}
	p := &PublicHandler{Events: l, Movies: l}
	e := echo.New()
	e.GET("/events", p.ListEvents)
	e.GET("/movies", p.ListMovies)

	rec := do(e, http.MethodGet, "/events?from=2026-10-19&category=comedy&venue_id=4&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("events: status = %d", rec.Code)
	}
	if l.filter != (repository.EventFilter{From: "2026-10-19", Category: "comedy", VenueID: 4, Limit: 10}) {
		t.Errorf("filter = %+v", l.filter)
	}
	body := rec.Body.String()
	if strings.Contains(body, "Hidden") || strings.Contains(body, "source_name") || strings.Contains(body, `"status"`) {
		t.Errorf("public body leaks fields: %s", body)
	}

	for _, bad := range []string{"/events?from=19-10-2026", "/events?venue_id=x", "/movies?showing=later"} {
		if rec := do(e, http.MethodGet, bad, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", bad, rec.Code)
		}
	}

	rec = do(e, http.MethodGet, "/movies?showing=soon", "")
	if rec.Code != http.StatusOK || l.showing != repository.ShowingSoon || !strings.Contains(rec.Body.String(), `"cinemas":["cinema-a"]`) {
		t.Errorf("movies: %d showing=%s %s", rec.Code, l.showing, rec.Body.String())
	}
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/ok", Health(pinger{}))
	e.GET("/down", Health(pinger{err: errors.New("refused")}))
	if rec := do(e, http.MethodGet, "/ok", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("ok: %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/down", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("down: %d", rec.Code)
	}
}
