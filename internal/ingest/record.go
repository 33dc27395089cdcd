package ingest

import (
	"context"
	"time"
)

// SourceKind selects which catalog table a source feeds.
type SourceKind string

const (
	KindEvents SourceKind = "events"
	KindCinema SourceKind = "cinema"
)

// Adapter fetches one external catalog and returns its items already in
// the RawRecord shape. Parsing of upstream pages lives behind this
// interface.
type Adapter interface {
	Name() string
	Kind() SourceKind
	Fetch(ctx context.Context) ([]RawRecord, error)
}

// RawRecord is the common record shape adapters produce. Event sources fill
// the event block, cinema sources the movie block.
type RawRecord struct {
	SourceName    string `json:"source_name"`
	SourceEventID string `json:"source_event_id"`
	Title         string `json:"title" validate:"required"`
	Description   string `json:"description"`

	Date         string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time         string `json:"time" validate:"omitempty,datetime=15:04"`
	EndDate      string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	EndTime      string `json:"end_time" validate:"omitempty,datetime=15:04"`
	VenueName    string `json:"venue_name"`
	VenueAddress string `json:"venue_address"`
	Category     string `json:"category"`
	PriceText    string `json:"price_text"`
	Currency     string `json:"currency" validate:"omitempty,len=3"`
	Region       string `json:"region"`
	Country      string `json:"country"`
	City         string `json:"city"`
	ImageURL     string `json:"image_url"`
	SourceURL    string `json:"source_url"`

	ReleaseDate  string `json:"release_date" validate:"omitempty,datetime=2006-01-02"`
	Synopsis     string `json:"synopsis"`
	PosterURL    string `json:"poster_url"`
	Rating       string `json:"rating"`
	Genre        string `json:"genre"`
	DurationMins int    `json:"duration_mins" validate:"gte=0"`
}

// Record is a normalized RawRecord, ready for matching and upsert.
type Record struct {
	Kind     SourceKind
	Source   string
	SourceID string

	Title       string
	Description string

	Date         string
	Time         string
	StartAt      *time.Time
	EndAt        *time.Time
	VenueName    string
	VenueAddress string
	VenueID      *uint64
	Category     string
	PriceText    string
	Currency     string
	Country      string
	City         string
	ImageURL     string
	SourceURL    string

	ReleaseDate  *time.Time
	Synopsis     string
	PosterURL    string
	Rating       string
	Genre        string
	DurationMins int

	// Defaulted names the fields the normalizer filled in because the
	// source did not supply them.
	Defaulted map[string]bool
}

// Field names used in Record.Defaulted.
const (
	FieldCountry  = "country"
	FieldCurrency = "currency"
)

// supplied reports whether a string field came from the source.
func (r *Record) supplied(field, value string) bool {
	return value != "" && !r.Defaulted[field]
}
