package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/iliyamo/venue-directory/internal/model"
)

const movieColumns = `m.id, m.title, m.slug, COALESCE(m.synopsis, ''), COALESCE(m.poster_url, ''),
	COALESCE(m.rating, ''), COALESCE(m.genre, ''), COALESCE(m.duration_mins, 0), m.release_date,
	m.scraped_from, m.is_now_showing, m.is_coming_soon, m.created_at, m.updated_at`

func scanMovie(s rowScanner) (*model.Movie, error) {
	var (
		m       model.Movie
		release sql.NullTime
		tags    []byte
	)
	err := s.Scan(
		&m.ID, &m.Title, &m.Slug, &m.Synopsis, &m.PosterURL,
		&m.Rating, &m.Genre, &m.DurationMins, &release,
		&tags, &m.IsNowShowing, &m.IsComingSoon, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if release.Valid {
		m.ReleaseDate = &release.Time
	}
	m.ScrapedFrom, err = decodeTags(tags)
	if err != nil {
		return nil, fmt.Errorf("movie %d scraped_from: %w", m.ID, err)
	}
	return &m, nil
}

func decodeTags(raw []byte) ([]string, error) {
	tags := []string{}
	if len(raw) == 0 {
		return tags, nil
	}
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// MovieRepo reads and writes the movies table and its movie_sources
// mapping, which ties a chain's own movie id to the shared movie row.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the provided DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: db}
}

// FindBySource resolves a chain's movie id through movie_sources.
func (r *MovieRepo) FindBySource(ctx context.Context, source, sourceID string) (*model.Movie, error) {
	q := "SELECT " + movieColumns + ` FROM movies m
		JOIN movie_sources ms ON ms.movie_id = m.id
		WHERE ms.source_name = ? AND ms.source_event_id = ?`
	m, err := scanMovie(r.db.QueryRowContext(ctx, q, source, sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// FindBySlug looks a movie up by its cross-chain slug.
func (r *MovieRepo) FindBySlug(ctx context.Context, slug string) (*model.Movie, error) {
	q := "SELECT " + movieColumns + " FROM movies m WHERE m.slug = ?"
	m, err := scanMovie(r.db.QueryRowContext(ctx, q, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// Insert stores a new movie and, when sourceID is set, maps the first
// scraped_from tag's id to it in the same transaction.
func (r *MovieRepo) Insert(ctx context.Context, m *model.Movie, sourceID string) (err error) {
	tags, err := json.Marshal(nonNilTags(m.ScrapedFrom))
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	const q = `INSERT INTO movies (title, slug, synopsis, poster_url, rating, genre, duration_mins,
		release_date, scraped_from, is_now_showing, is_coming_soon)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		m.Title, m.Slug, nullString(m.Synopsis), nullString(m.PosterURL), nullString(m.Rating),
		nullString(m.Genre), nullInt(m.DurationMins), nullDate(m.ReleaseDate), string(tags),
		m.IsNowShowing, m.IsComingSoon,
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
	m.ID = uint64(id)

	if sourceID != "" && len(m.ScrapedFrom) > 0 {
		if err = mapSource(ctx, tx, m.ScrapedFrom[0], sourceID, m.ID); err != nil {
			return err
		}
	}
	return nil
}

// Update writes the patch; ErrNoChange when every value was current.
func (r *MovieRepo) Update(ctx context.Context, id uint64, p MoviePatch) error {
	as := p.assignments()
	if len(as) == 0 {
		return ErrNoChange
	}
	for i := range as {
		if t, ok := as[i].value.(time.Time); ok && as[i].column == "release_date" {
			as[i].value = t.Format(dateLayout)
		}
	}
	set, args := setClause(as)
	res, err := r.db.ExecContext(ctx, "UPDATE movies SET "+set+" WHERE id = ?", append(args, id)...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM movies WHERE id = ? LIMIT 1", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMovieNotFound
	}
	if err != nil {
		return err
	}
	return ErrNoChange
}

// Tag adds source to scraped_from unless it is already there, and maps
// (source, sourceID) to the movie.
func (r *MovieRepo) Tag(ctx context.Context, movieID uint64, source, sourceID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	const q = `UPDATE movies
		SET scraped_from = JSON_ARRAY_APPEND(COALESCE(scraped_from, JSON_ARRAY()), '$', ?)
		WHERE id = ? AND NOT JSON_CONTAINS(COALESCE(scraped_from, JSON_ARRAY()), JSON_QUOTE(?))`
	if _, err = tx.ExecContext(ctx, q, source, movieID, source); err != nil {
		return err
	}
	if sourceID != "" {
		if err = mapSource(ctx, tx, source, sourceID, movieID); err != nil {
			return err
		}
	}
	return nil
}

func mapSource(ctx context.Context, tx *sql.Tx, source, sourceID string, movieID uint64) error {
	const q = `INSERT INTO movie_sources (source_name, source_event_id, movie_id) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE movie_id = VALUES(movie_id)`
	_, err := tx.ExecContext(ctx, q, source, sourceID, movieID)
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PruneSourceTag removes source from scraped_from on every movie not in
// keep. The movie rows and their other tags are left alone.
func (r *MovieRepo) PruneSourceTag(ctx context.Context, source string, keep []uint64) (int64, error) {
	q := `UPDATE movies
		SET scraped_from = JSON_REMOVE(scraped_from, JSON_UNQUOTE(JSON_SEARCH(scraped_from, 'one', ?)))
		WHERE JSON_CONTAINS(scraped_from, JSON_QUOTE(?))`
	args := []any{likeEscaper.Replace(source), source}
	if len(keep) > 0 {
		q += " AND id NOT IN (?" + strings.Repeat(", ?", len(keep)-1) + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RefreshShowingFlags recomputes both showing flags from release_date for
// rows whose flags went stale, e.g. a coming-soon film whose release day
// has passed.
func (r *MovieRepo) RefreshShowingFlags(ctx context.Context, today time.Time) (int64, error) {
	const q = `UPDATE movies
		SET is_now_showing = (release_date IS NULL OR release_date <= ?),
		    is_coming_soon = (release_date IS NOT NULL AND release_date > ?)
		WHERE is_now_showing <> (release_date IS NULL OR release_date <= ?)
		   OR is_coming_soon <> (release_date IS NOT NULL AND release_date > ?)`
	d := today.Format(dateLayout)
	res, err := r.db.ExecContext(ctx, q, d, d, d, d)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListOrphans returns movies flagged now-showing with no chain tag.
func (r *MovieRepo) ListOrphans(ctx context.Context) ([]model.Movie, error) {
	q := "SELECT " + movieColumns + ` FROM movies m
		WHERE m.is_now_showing = TRUE
		  AND (m.scraped_from IS NULL OR JSON_LENGTH(m.scraped_from) = 0)
		ORDER BY m.id`
	return r.list(ctx, q)
}

// Showing selects the public movie listing.
type Showing string

const (
	ShowingNow  Showing = "now"
	ShowingSoon Showing = "soon"
)

// ListShowing returns the movies at least one chain currently lists, now
// showing or coming soon.
func (r *MovieRepo) ListShowing(ctx context.Context, which Showing, limit int) ([]model.Movie, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	q := "SELECT " + movieColumns + " FROM movies m WHERE JSON_LENGTH(m.scraped_from) > 0 AND "
	if which == ShowingSoon {
		q += "m.is_coming_soon = TRUE ORDER BY m.release_date, m.id LIMIT ?"
	} else {
		q += "m.is_now_showing = TRUE ORDER BY m.release_date DESC, m.id LIMIT ?"
	}
	return r.list(ctx, q, limit)
}

func (r *MovieRepo) list(ctx context.Context, q string, args ...any) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const dateLayout = "2006-01-02"

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}
