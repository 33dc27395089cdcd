package model

import "time"

// Event is a row in the `events` table: one listing in the public
// directory, either ingested from an external source or entered by an
// admin.
//
// Fields:
//
//	ID            – primary key identifier.
//	Title         – display title.
//	Description   – free text, already cleaned by the normalizer.
//	Date          – local calendar date, "YYYY-MM-DD".
//	Time          – local time of day, "HH:MM" (empty when unknown).
//	StartAt/EndAt – combined timestamps; nil when not derivable.
//	VenueName     – free-text venue as published by the source.
//	VenueAddress  – free-text address as published by the source.
//	VenueID       – canonical venue, nil when the matcher found none.
//	Category      – listing category (music, comedy, family, ...).
//	Status        – moderation state, see moderation.go.
//	IsHidden      – suppresses the row from public listings without touching Status.
//	IsFeatured    – editorial flag owned by admins.
//	SourceName    – adapter that produced the row; nil for manual entries.
//	SourceEventID – the adapter's stable item id; nil when the source has none.
//	SourceURL     – link back to the upstream page.
//	ImageURL      – poster or banner.
//	PriceText     – price as published ("from 10 BHD").
//	Currency      – ISO currency code.
//	Country, City – geography.
//	ViewCount     – monotonically increasing public view counter.
type Event struct {
	ID            uint64     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Date          string     `json:"date"`
	Time          string     `json:"time,omitempty"`
	StartAt       *time.Time `json:"start_at,omitempty"`
	EndAt         *time.Time `json:"end_at,omitempty"`
	VenueName     string     `json:"venue_name,omitempty"`
	VenueAddress  string     `json:"venue_address,omitempty"`
	VenueID       *uint64    `json:"venue_id,omitempty"`
	Category      string     `json:"category,omitempty"`
	Status        Status     `json:"status"`
	IsHidden      bool       `json:"is_hidden"`
	IsFeatured    bool       `json:"is_featured"`
	SourceName    *string    `json:"source_name,omitempty"`
	SourceEventID *string    `json:"source_event_id,omitempty"`
	SourceURL     string     `json:"source_url,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	PriceText     string     `json:"price_text,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Country       string     `json:"country"`
	City          string     `json:"city,omitempty"`
	ViewCount     uint64     `json:"view_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsPublic reports whether the event may appear on public listing pages.
func (e *Event) IsPublic() bool {
	return e.Status == StatusPublished && !e.IsHidden
}
