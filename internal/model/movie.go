package model

import "time"

// Movie is a row in the `movies` table. A movie can be listed by several
// cinema chains at once; ScrapedFrom holds the union of the chain tags that
// currently vouch for it.
//
// IsNowShowing and IsComingSoon are derived from ReleaseDate, see
// ShowingFlags.
type Movie struct {
	ID           uint64     `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Synopsis     string     `json:"synopsis,omitempty"`
	PosterURL    string     `json:"poster_url,omitempty"`
	Rating       string     `json:"rating,omitempty"`
	Genre        string     `json:"genre,omitempty"`
	DurationMins int        `json:"duration_mins,omitempty"`
	ReleaseDate  *time.Time `json:"release_date,omitempty"`
	ScrapedFrom  []string   `json:"scraped_from"`
	IsNowShowing bool       `json:"is_now_showing"`
	IsComingSoon bool       `json:"is_coming_soon"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ShowingFlags derives the two showing flags from a release date. A movie
// without a release date is listed by a cinema right now, so it counts as
// showing. Only the calendar date of today is compared.
func ShowingFlags(release *time.Time, today time.Time) (nowShowing, comingSoon bool) {
	if release == nil {
		return true, false
	}
	r := time.Date(release.Year(), release.Month(), release.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if r.After(t) {
		return false, true
	}
	return true, false
}

// HasTag reports whether the given chain tag is in ScrapedFrom.
func (m *Movie) HasTag(tag string) bool {
	for _, t := range m.ScrapedFrom {
		if t == tag {
			return true
		}
	}
	return false
}

// IsOrphan reports whether the movie is flagged as showing but no source
// vouches for it anymore.
func (m *Movie) IsOrphan() bool {
	return m.IsNowShowing && len(m.ScrapedFrom) == 0
}
