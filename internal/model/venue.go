package model

import "time"

// Venue is a canonical venue owned by the admin and venue-portal side of
// the application. Ingestion only reads it.
//
// Fields:
//
//	ID        – primary key identifier.
//	Name      – canonical display name ("Beyon Al Dana Amphitheatre").
//	Slug      – URL slug.
//	Category  – venue category (amphitheatre, hotel, cinema, ...).
//	Area      – neighbourhood or area used to tell same-named venues apart.
//	Address   – street address.
//	Status    – approval state: pending, approved or rejected.
type Venue struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Category  string    `json:"category,omitempty"`
	Area      string    `json:"area,omitempty"`
	Address   string    `json:"address,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Venue approval states.
const (
	VenuePending  = "pending"
	VenueApproved = "approved"
	VenueRejected = "rejected"
)

// VenueNameCount is a free-text venue spelling that no canonical venue
// matched, with the number of events carrying it.
type VenueNameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
