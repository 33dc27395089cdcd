package repository

import (
	"strings"
	"time"
)

// EventPatch lists the event columns an ingestion update may write. A nil
// field is left untouched. Status, is_hidden and is_featured are absent on
// purpose: they belong to moderation.
type EventPatch struct {
	Title        *string
	Description  *string
	Date         *string
	Time         *string
	StartAt      *time.Time
	EndAt        *time.Time
	VenueName    *string
	VenueAddress *string
	VenueID      *uint64
	Category     *string
	PriceText    *string
	Currency     *string
	Country      *string
	City         *string
	ImageURL     *string
	SourceURL    *string
}

// IsEmpty reports whether the patch writes nothing.
func (p EventPatch) IsEmpty() bool {
	return len(p.assignments()) == 0
}

func (p EventPatch) assignments() []assignment {
	var out []assignment
	addStr := func(col string, v *string) {
		if v != nil {
			out = append(out, assignment{col, *v})
		}
	}
	addTime := func(col string, v *time.Time) {
		if v != nil {
			out = append(out, assignment{col, *v})
		}
	}
	addStr("title", p.Title)
	addStr("description", p.Description)
	addStr("date", p.Date)
	addStr("time", p.Time)
	addTime("start_at", p.StartAt)
	addTime("end_at", p.EndAt)
	addStr("venue_name", p.VenueName)
	addStr("venue_address", p.VenueAddress)
	if p.VenueID != nil {
		out = append(out, assignment{"venue_id", *p.VenueID})
	}
	addStr("category", p.Category)
	addStr("price_text", p.PriceText)
	addStr("currency", p.Currency)
	addStr("country", p.Country)
	addStr("city", p.City)
	addStr("image_url", p.ImageURL)
	addStr("source_url", p.SourceURL)
	return out
}

// MoviePatch lists the movie columns an ingestion update may write.
// Showing flags are recomputed by the caller whenever ReleaseDate is set.
type MoviePatch struct {
	Title        *string
	Synopsis     *string
	PosterURL    *string
	Rating       *string
	Genre        *string
	DurationMins *int
	ReleaseDate  *time.Time
	IsNowShowing *bool
	IsComingSoon *bool
}

// IsEmpty reports whether the patch writes nothing.
func (p MoviePatch) IsEmpty() bool {
	return len(p.assignments()) == 0
}

func (p MoviePatch) assignments() []assignment {
	var out []assignment
	if p.Title != nil {
		out = append(out, assignment{"title", *p.Title})
	}
	if p.Synopsis != nil {
		out = append(out, assignment{"synopsis", *p.Synopsis})
	}
	if p.PosterURL != nil {
		out = append(out, assignment{"poster_url", *p.PosterURL})
	}
	if p.Rating != nil {
		out = append(out, assignment{"rating", *p.Rating})
	}
	if p.Genre != nil {
		out = append(out, assignment{"genre", *p.Genre})
	}
	if p.DurationMins != nil {
		out = append(out, assignment{"duration_mins", *p.DurationMins})
	}
	if p.ReleaseDate != nil {
		out = append(out, assignment{"release_date", *p.ReleaseDate})
	}
	if p.IsNowShowing != nil {
		out = append(out, assignment{"is_now_showing", *p.IsNowShowing})
	}
	if p.IsComingSoon != nil {
		out = append(out, assignment{"is_coming_soon", *p.IsComingSoon})
	}
	return out
}

type assignment struct {
	column string
	value  any
}

// setClause renders "a = ?, b = ?" plus its args for the assignments.
func setClause(as []assignment) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(as))
	for i, a := range as {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.column)
		b.WriteString(" = ?")
		args = append(args, a.value)
	}
	return b.String(), args
}
