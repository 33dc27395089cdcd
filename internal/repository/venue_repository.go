package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/venue-directory/internal/model"
)

// VenueRepo reads the canonical venues table. Venues are owned by the
// admin and venue-portal side; nothing in this service writes them.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo constructs a VenueRepo with the provided DB handle.
func NewVenueRepo(db *sql.DB) *VenueRepo {
	return &VenueRepo{db: db}
}

// ListVenues returns every venue ordered by id, rejected ones included;
// the matcher decides what to skip.
func (r *VenueRepo) ListVenues(ctx context.Context) ([]model.Venue, error) {
	const q = `SELECT id, name, slug, COALESCE(category, ''), COALESCE(area, ''),
		COALESCE(address, ''), status, created_at, updated_at
		FROM venues ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Venue
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Slug, &v.Category, &v.Area,
			&v.Address, &v.Status, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
