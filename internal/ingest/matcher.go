package ingest

import (
	"context"
	"sort"
	"strings"

	"github.com/iliyamo/venue-directory/internal/model"
)

// DefaultVenueAliases maps scraped venue names to canonical venue names
// for venues whose published name differs from the directory's, e.g. after
// a sponsorship rename. Keys and values are compared case-insensitively.
var DefaultVenueAliases = map[string]string{
	"al dana amphitheatre":     "beyon al dana amphitheatre",
	"al dana amphitheater":     "beyon al dana amphitheatre",
	"bahrain national theater": "bahrain national theatre",
	"bic":                      "bahrain international circuit",
	"bahrain intl circuit":     "bahrain international circuit",
	"exhibition world":         "exhibition world bahrain",
	"ewb":                      "exhibition world bahrain",
}

// MergeAliases layers configured aliases over the defaults. Keys are
// compared normalized, so a configured "BIC" replaces the default "bic".
func MergeAliases(defaults, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(defaults)+len(overrides))
	for from, to := range defaults {
		out[venueKey(from)] = to
	}
	for from, to := range overrides {
		out[venueKey(from)] = to
	}
	return out
}

// VenueLister reads the canonical venue table.
type VenueLister interface {
	ListVenues(ctx context.Context) ([]model.Venue, error)
}

// Matcher resolves free-text venue names to canonical venue ids. It is
// built from one snapshot of the venue table and never changes afterwards,
// so the same input always yields the same answer.
type Matcher struct {
	byName  map[string][]model.Venue
	aliases map[string]string
}

// LoadMatcher snapshots the venue table.
func LoadMatcher(ctx context.Context, venues VenueLister, aliases map[string]string) (*Matcher, error) {
	list, err := venues.ListVenues(ctx)
	if err != nil {
		return nil, err
	}
	return NewMatcher(list, aliases), nil
}

// NewMatcher indexes venues by normalized name. Rejected venues are left
// out.
func NewMatcher(venues []model.Venue, aliases map[string]string) *Matcher {
	m := &Matcher{byName: map[string][]model.Venue{}, aliases: map[string]string{}}
	for _, v := range venues {
		if v.Status == model.VenueRejected {
			continue
		}
		key := venueKey(v.Name)
		if key == "" {
			continue
		}
		m.byName[key] = append(m.byName[key], v)
	}
	for key := range m.byName {
		vs := m.byName[key]
		sort.Slice(vs, func(i, j int) bool { return vs[i].ID < vs[j].ID })
	}
	for from, to := range aliases {
		m.aliases[venueKey(from)] = venueKey(to)
	}
	return m
}

// Match returns the canonical venue id for a free-text name, or nil when
// neither the exact name nor an alias resolves. address breaks ties between
// venues sharing a name.
func (m *Matcher) Match(name, address string) *uint64 {
	key := venueKey(name)
	if key == "" {
		return nil
	}
	candidates := m.byName[key]
	if len(candidates) == 0 {
		if canonical, ok := m.aliases[key]; ok {
			candidates = m.byName[canonical]
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	pick := candidates[0]
	if len(candidates) > 1 && address != "" {
		addr := strings.ToLower(address)
		for _, c := range candidates {
			if c.Area != "" && strings.Contains(addr, strings.ToLower(c.Area)) {
				pick = c
				break
			}
		}
	}
	id := pick.ID
	return &id
}

func venueKey(s string) string {
	return strings.ToLower(collapseSpace(s))
}
