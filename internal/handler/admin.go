package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-directory/internal/ingest"
	"github.com/iliyamo/venue-directory/internal/logging"
	"github.com/iliyamo/venue-directory/internal/middleware"
	"github.com/iliyamo/venue-directory/internal/model"
	"github.com/iliyamo/venue-directory/internal/repository"
)

// RunLister reads the sync run log.
type RunLister interface {
	List(ctx context.Context, source string, limit int) ([]model.SyncRun, error)
}

// Audits is satisfied by *ingest.Auditor.
type Audits interface {
	Orphans(ctx context.Context) ([]model.Movie, error)
	Report(ctx context.Context) (*ingest.Report, error)
}

// EventModerator is the slice of the event repository moderation needs.
type EventModerator interface {
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	UpdateStatus(ctx context.Context, id uint64, from, to model.Status) error
	SetHidden(ctx context.Context, id uint64, hidden bool) error
}

// AdminHandler serves the routes behind JWTAuth + RequireRole(ADMIN).
type AdminHandler struct {
	Runs   RunLister
	Audit  Audits
	Events EventModerator

	validate *validator.Validate
}

func NewAdminHandler(runs RunLister, audit Audits, events EventModerator) *AdminHandler {
	return &AdminHandler{Runs: runs, Audit: audit, Events: events, validate: validator.New()}
}

// ListSyncRuns returns the run log, newest first. Query: source, limit.
func (h *AdminHandler) ListSyncRuns(c echo.Context) error {
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		limit = n
	}
	runs, err := h.Runs.List(c.Request().Context(), c.QueryParam("source"), limit)
	if err != nil {
		logging.Error().Err(err).Msg("list sync runs")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": runs})
}

// Orphans lists movies flagged as showing that no chain vouches for.
func (h *AdminHandler) Orphans(c echo.Context) error {
	movies, err := h.Audit.Orphans(c.Request().Context())
	if err != nil {
		logging.Error().Err(err).Msg("audit orphans")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": movies, "count": len(movies)})
}

// AuditReport returns orphans, source freshness and unmatched venues.
func (h *AdminHandler) AuditReport(c echo.Context) error {
	rep, err := h.Audit.Report(c.Request().Context())
	if err != nil {
		logging.Error().Err(err).Msg("audit report")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, rep)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending published draft rejected"`
}

// SetStatus applies a moderation transition.
func (h *AdminHandler) SetStatus(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be one of pending, published, draft, rejected"})
	}

	ctx := c.Request().Context()
	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return eventError(c, err)
	}
	to, err := model.Transition(ev.Status, model.Status(req.Status))
	if err != nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	if err := h.Events.UpdateStatus(ctx, id, ev.Status, to); err != nil {
		return eventError(c, err)
	}
	logging.Info().Uint64("event_id", id).Str("from", string(ev.Status)).Str("to", string(to)).
		Str("admin", userID(c)).Msg("event status changed")
	ev.Status = to
	return c.JSON(http.StatusOK, ev)
}

type visibilityRequest struct {
	Hidden *bool `json:"is_hidden" validate:"required"`
}

// SetVisibility hides or unhides an event without touching its status.
func (h *AdminHandler) SetVisibility(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req visibilityRequest
	if err := c.Bind(&req); err != nil || h.validate.Struct(req) != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "is_hidden is required"})
	}
	if err := h.Events.SetHidden(c.Request().Context(), id, *req.Hidden); err != nil {
		return eventError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "is_hidden": *req.Hidden})
}

func eventError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case errors.Is(err, repository.ErrStaleStatus):
		return c.JSON(http.StatusConflict, echo.Map{"error": "event status changed concurrently, reload and retry"})
	default:
		logging.Error().Err(err).Msg("event moderation")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

func userID(c echo.Context) string {
	s, _ := c.Get(middleware.ContextUserID).(string)
	return s
}
