package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/venue-directory/internal/model"
)

// eventColumns is the SELECT list shared by every event query. DATE and
// TIME columns are formatted in SQL so they scan into plain strings even
// with parseTime=true.
const eventColumns = `id, title, COALESCE(description, ''), DATE_FORMAT(date, '%Y-%m-%d'),
	COALESCE(TIME_FORMAT(time, '%H:%i'), ''), start_at, end_at,
	COALESCE(venue_name, ''), COALESCE(venue_address, ''), venue_id, COALESCE(category, ''),
	status, is_hidden, is_featured, source_name, source_event_id,
	COALESCE(source_url, ''), COALESCE(image_url, ''), COALESCE(price_text, ''),
	COALESCE(currency, ''), COALESCE(country, ''), COALESCE(city, ''),
	view_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(s rowScanner) (*model.Event, error) {
	var (
		e        model.Event
		start    sql.NullTime
		end      sql.NullTime
		venueID  sql.NullInt64
		source   sql.NullString
		sourceID sql.NullString
	)
	err := s.Scan(
		&e.ID, &e.Title, &e.Description, &e.Date,
		&e.Time, &start, &end,
		&e.VenueName, &e.VenueAddress, &venueID, &e.Category,
		&e.Status, &e.IsHidden, &e.IsFeatured, &source, &sourceID,
		&e.SourceURL, &e.ImageURL, &e.PriceText,
		&e.Currency, &e.Country, &e.City,
		&e.ViewCount, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		e.StartAt = &start.Time
	}
	if end.Valid {
		e.EndAt = &end.Time
	}
	if venueID.Valid {
		id := uint64(venueID.Int64)
		e.VenueID = &id
	}
	if source.Valid {
		e.SourceName = &source.String
	}
	if sourceID.Valid {
		e.SourceEventID = &sourceID.String
	}
	return &e, nil
}

// EventRepo reads and writes the events table.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo constructs an EventRepo with the provided DB handle.
func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// FindBySource looks an event up by its source identity. It returns nil
// and no error when the pair is unknown.
func (r *EventRepo) FindBySource(ctx context.Context, source, sourceID string) (*model.Event, error) {
	q := "SELECT " + eventColumns + " FROM events WHERE source_name = ? AND source_event_id = ?"
	e, err := scanEvent(r.db.QueryRowContext(ctx, q, source, sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// FindByTitleDate returns the id-less rows of one source sharing a
// lower-cased title and a date, lowest id first. It backs identity for
// items that carry no stable id; rows stored under a source id are never
// returned.
func (r *EventRepo) FindByTitleDate(ctx context.Context, source, titleKey, date string) ([]model.Event, error) {
	q := "SELECT " + eventColumns + ` FROM events
		WHERE source_name = ? AND LOWER(title) = ? AND date = ? AND source_event_id IS NULL
		ORDER BY id`
	return r.list(ctx, q, source, titleKey, date)
}

// GetByID fetches one event or returns ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	q := "SELECT " + eventColumns + " FROM events WHERE id = ?"
	e, err := scanEvent(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

// Insert stores a new event and sets its ID. A clash on the
// (source_name, source_event_id) unique key is reported as ErrDuplicate.
func (r *EventRepo) Insert(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (title, description, date, time, start_at, end_at,
		venue_name, venue_address, venue_id, category, status, is_hidden, is_featured,
		source_name, source_event_id, source_url, image_url, price_text, currency, country, city)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	status := e.Status
	if status == "" {
		status = model.StatusPending
	}
	res, err := r.db.ExecContext(ctx, q,
		e.Title, nullString(e.Description), e.Date, nullString(e.Time), nullTime(e.StartAt), nullTime(e.EndAt),
		nullString(e.VenueName), nullString(e.VenueAddress), nullID(e.VenueID), nullString(e.Category),
		string(status), e.IsHidden, e.IsFeatured,
		nullStringPtr(e.SourceName), nullStringPtr(e.SourceEventID), nullString(e.SourceURL),
		nullString(e.ImageURL), nullString(e.PriceText), nullString(e.Currency),
		nullString(e.Country), nullString(e.City),
	)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	e.Status = status
	return nil
}

// Update writes the patch. updated_at moves through the column's
// ON UPDATE clause, so a patch that changes nothing affects no rows and is
// reported as ErrNoChange.
func (r *EventRepo) Update(ctx context.Context, id uint64, p EventPatch) error {
	as := p.assignments()
	if len(as) == 0 {
		return ErrNoChange
	}
	set, args := setClause(as)
	res, err := r.db.ExecContext(ctx, "UPDATE events SET "+set+" WHERE id = ?", append(args, id)...)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return r.noChangeOrMissing(ctx, id)
}

// UpdateStatus moves an event from one moderation state to another. The
// WHERE clause carries the expected current state; if another admin got
// there first the update matches nothing and ErrStaleStatus is returned.
func (r *EventRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.Status) error {
	if from == to {
		return nil
	}
	const q = "UPDATE events SET status = ? WHERE id = ? AND status = ?"
	res, err := r.db.ExecContext(ctx, q, string(to), id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if err := r.noChangeOrMissing(ctx, id); errors.Is(err, ErrEventNotFound) {
		return err
	}
	return ErrStaleStatus
}

// SetHidden toggles is_hidden without touching status. Setting the current
// value again is not an error.
func (r *EventRepo) SetHidden(ctx context.Context, id uint64, hidden bool) error {
	const q = "UPDATE events SET is_hidden = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, q, hidden, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if err := r.noChangeOrMissing(ctx, id); errors.Is(err, ErrEventNotFound) {
		return err
	}
	return nil
}

// EventFilter narrows the public listing.
type EventFilter struct {
	From     string // inclusive "YYYY-MM-DD"; empty means no lower bound
	Category string
	VenueID  uint64
	Limit    int
	Offset   int
}

// ListPublic returns published, visible events ordered by date and time.
func (r *EventRepo) ListPublic(ctx context.Context, f EventFilter) ([]model.Event, error) {
	q := "SELECT " + eventColumns + " FROM events WHERE status = ? AND is_hidden = FALSE"
	args := []any{string(model.StatusPublished)}
	if f.From != "" {
		q += " AND date >= ?"
		args = append(args, f.From)
	}
	if f.Category != "" {
		q += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.VenueID != 0 {
		q += " AND venue_id = ?"
		args = append(args, f.VenueID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q += " ORDER BY is_featured DESC, date, time, id LIMIT ? OFFSET ?"
	args = append(args, limit, max(f.Offset, 0))
	return r.list(ctx, q, args...)
}

// TopUnmatchedVenues ranks the ingested venue names that never resolved to
// a canonical venue.
func (r *EventRepo) TopUnmatchedVenues(ctx context.Context, limit int) ([]model.VenueNameCount, error) {
	const q = `SELECT venue_name, COUNT(*) AS n FROM events
		WHERE venue_id IS NULL AND source_name IS NOT NULL AND venue_name IS NOT NULL AND venue_name <> ''
		GROUP BY venue_name
		ORDER BY n DESC, venue_name
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.VenueNameCount
	for rows.Next() {
		var v model.VenueNameCount
		if err := rows.Scan(&v.Name, &v.Count); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *EventRepo) list(ctx context.Context, q string, args ...any) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// noChangeOrMissing tells an UPDATE that matched nothing apart from one
// whose row does not exist.
func (r *EventRepo) noChangeOrMissing(ctx context.Context, id uint64) error {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM events WHERE id = ? LIMIT 1", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("check event %d: %w", id, err)
	}
	return ErrNoChange
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullID(id *uint64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
