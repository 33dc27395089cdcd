package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-directory/internal/handler"
	"github.com/iliyamo/venue-directory/internal/ingest"
	"github.com/iliyamo/venue-directory/internal/model"
	"github.com/iliyamo/venue-directory/internal/repository"
)

type stubRunner struct{}

func (stubRunner) Run(context.Context) *ingest.Summary { return &ingest.Summary{Success: true} }
func (stubRunner) RunKind(context.Context, ingest.SourceKind) *ingest.Summary {
	return &ingest.Summary{Success: true}
}

type stubStore struct{}

func (stubStore) List(context.Context, string, int) ([]model.SyncRun, error) { return nil, nil }
func (stubStore) Orphans(context.Context) ([]model.Movie, error)             { return nil, nil }
func (stubStore) Report(context.Context) (*ingest.Report, error)             { return &ingest.Report{}, nil }
func (stubStore) GetByID(context.Context, uint64) (*model.Event, error) {
	return nil, repository.ErrEventNotFound
}
func (stubStore) UpdateStatus(context.Context, uint64, model.Status, model.Status) error { return nil }
func (stubStore) SetHidden(context.Context, uint64, bool) error                          { return nil }
func (stubStore) ListPublic(context.Context, repository.EventFilter) ([]model.Event, error) {
	return nil, nil
}
func (stubStore) ListShowing(context.Context, repository.Showing, int) ([]model.Movie, error) {
	return nil, nil
}

func newServer() *echo.Echo {
	e := echo.New()
	RegisterRoutes(e, nil)
	RegisterSync(e, &handler.SyncHandler{Runner: stubRunner{}}, "cron-secret")
	RegisterAdmin(e, handler.NewAdminHandler(stubStore{}, stubStore{}, stubStore{}), "jwt-secret")
	RegisterPublic(e, &handler.PublicHandler{Events: stubStore{}, Movies: stubStore{}})
	return e
}

func TestRoutes(t *testing.T) {
	admin, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1", "role": "ADMIN", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("jwt-secret"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		method string
		path   string
		auth   string
		want   int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/cron/sync", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/cron/sync", "Bearer cron-secret", http.StatusOK},
		{http.MethodGet, "/api/cron/sync-movies", "Bearer cron-secret", http.StatusOK},
		{http.MethodGet, "/v1/admin/sync-runs", "", http.StatusUnauthorized},
		{http.MethodGet, "/v1/admin/sync-runs", "Bearer " + admin, http.StatusOK},
		{http.MethodGet, "/v1/admin/audit/report", "Bearer cron-secret", http.StatusUnauthorized},
		{http.MethodGet, "/v1/events", "", http.StatusOK},
		{http.MethodGet, "/v1/movies?showing=now", "", http.StatusOK},
	}
	e := newServer()
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.auth != "" {
			req.Header.Set(echo.HeaderAuthorization, tt.auth)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}
