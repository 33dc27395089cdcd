// Package handler exposes the HTTP surface of the directory: the
// scheduler-facing sync trigger, the admin read and moderation API, and
// the public listings.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-directory/internal/ingest"
)

// SyncRunner is satisfied by *ingest.Orchestrator.
type SyncRunner interface {
	Run(ctx context.Context) *ingest.Summary
	RunKind(ctx context.Context, kind ingest.SourceKind) *ingest.Summary
}

// SyncHandler serves the cron trigger endpoints. Each request runs one
// orchestration to completion and returns its summary.
type SyncHandler struct {
	Runner SyncRunner
	// Timeout is the host ceiling for one run. Zero means none.
	Timeout time.Duration
}

// SyncAll runs every configured source.
func (h *SyncHandler) SyncAll(c echo.Context) error {
	return h.respond(c, func(ctx context.Context) *ingest.Summary { return h.Runner.Run(ctx) })
}

// SyncEvents runs event sources only.
func (h *SyncHandler) SyncEvents(c echo.Context) error {
	return h.respond(c, func(ctx context.Context) *ingest.Summary { return h.Runner.RunKind(ctx, ingest.KindEvents) })
}

// SyncMovies runs cinema sources only.
func (h *SyncHandler) SyncMovies(c echo.Context) error {
	return h.respond(c, func(ctx context.Context) *ingest.Summary { return h.Runner.RunKind(ctx, ingest.KindCinema) })
}

func (h *SyncHandler) respond(c echo.Context, run func(context.Context) *ingest.Summary) error {
	// A scheduler that hangs up must not abort the run halfway.
	ctx := context.WithoutCancel(c.Request().Context())
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	s := run(ctx)
	status := http.StatusOK
	if !s.Success {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, s)
}
