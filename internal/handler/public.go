package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-directory/internal/logging"
	"github.com/iliyamo/venue-directory/internal/model"
	"github.com/iliyamo/venue-directory/internal/repository"
)

type EventLister interface {
	ListPublic(ctx context.Context, f repository.EventFilter) ([]model.Event, error)
}

type MovieLister interface {
	ListShowing(ctx context.Context, which repository.Showing, limit int) ([]model.Movie, error)
}

// PublicHandler serves unauthenticated listings. Moderation and source
// bookkeeping fields are stripped from responses.
type PublicHandler struct {
	Events EventLister
	Movies MovieLister
}

// PublicEvent is an event as listed publicly.
type PublicEvent struct {
	ID          uint64     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Date        string     `json:"date"`
	Time        string     `json:"time,omitempty"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	VenueName   string     `json:"venue_name,omitempty"`
	VenueID     *uint64    `json:"venue_id,omitempty"`
	Category    string     `json:"category,omitempty"`
	IsFeatured  bool       `json:"is_featured"`
	ImageURL    string     `json:"image_url,omitempty"`
	SourceURL   string     `json:"source_url,omitempty"`
	PriceText   string     `json:"price_text,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	City        string     `json:"city,omitempty"`
	Country     string     `json:"country"`
}

// PublicMovie is a movie as listed publicly.
type PublicMovie struct {
	ID           uint64     `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Synopsis     string     `json:"synopsis,omitempty"`
	PosterURL    string     `json:"poster_url,omitempty"`
	Rating       string     `json:"rating,omitempty"`
	Genre        string     `json:"genre,omitempty"`
	DurationMins int        `json:"duration_mins,omitempty"`
	ReleaseDate  *time.Time `json:"release_date,omitempty"`
	Cinemas      []string   `json:"cinemas"`
}

// ListEvents returns published, visible events. Query: from (YYYY-MM-DD),
// category, venue_id, limit, offset.
func (h *PublicHandler) ListEvents(c echo.Context) error {
	f := repository.EventFilter{Category: c.QueryParam("category")}
	if from := c.QueryParam("from"); from != "" {
		if _, err := time.Parse("2006-01-02", from); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be YYYY-MM-DD"})
		}
		f.From = from
	}
	var err error
	if f.VenueID, err = uintParam(c, "venue_id"); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue_id"})
	}
	limit, err := uintParam(c, "limit")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
	}
	offset, err := uintParam(c, "offset")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid offset"})
	}
	f.Limit, f.Offset = int(limit), int(offset)

	events, err := h.Events.ListPublic(c.Request().Context(), f)
	if err != nil {
		logging.Error().Err(err).Msg("list public events")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicEvent, 0, len(events))
	for _, e := range events {
		if !e.IsPublic() {
			continue
		}
		out = append(out, PublicEvent{
			ID: e.ID, Title: e.Title, Description: e.Description, Date: e.Date, Time: e.Time,
			StartAt: e.StartAt, EndAt: e.EndAt, VenueName: e.VenueName, VenueID: e.VenueID,
			Category: e.Category, IsFeatured: e.IsFeatured, ImageURL: e.ImageURL, SourceURL: e.SourceURL,
			PriceText: e.PriceText, Currency: e.Currency, City: e.City, Country: e.Country,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// ListMovies returns movies now showing (default) or coming soon.
func (h *PublicHandler) ListMovies(c echo.Context) error {
	which := repository.ShowingNow
	switch c.QueryParam("showing") {
	case "", "now":
	case "soon":
		which = repository.ShowingSoon
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showing must be now or soon"})
	}
	limit, err := uintParam(c, "limit")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
	}
	movies, err := h.Movies.ListShowing(c.Request().Context(), which, int(limit))
	if err != nil {
		logging.Error().Err(err).Msg("list movies")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicMovie, 0, len(movies))
	for _, m := range movies {
		out = append(out, PublicMovie{
			ID: m.ID, Title: m.Title, Slug: m.Slug, Synopsis: m.Synopsis, PosterURL: m.PosterURL,
			Rating: m.Rating, Genre: m.Genre, DurationMins: m.DurationMins, ReleaseDate: m.ReleaseDate,
			Cinemas: m.ScrapedFrom,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// uintParam parses an optional unsigned query parameter; absent is 0.
func uintParam(c echo.Context, name string) (uint64, error) {
	s := c.QueryParam(name)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
