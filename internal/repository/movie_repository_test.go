package repository

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/venue-directory/internal/model"
)

var movieHeader = []string{
	"id", "title", "slug", "synopsis", "poster_url", "rating", "genre", "duration_mins",
	"release_date", "scraped_from", "is_now_showing", "is_coming_soon", "created_at", "updated_at",
}

func TestMovieRepoFindBySlug(t *testing.T) {
	db, mock := newMock(t)
	ts := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	release := time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM movies m WHERE m.slug = ?")).
		WithArgs("dune-part-two").
		WillReturnRows(sqlmock.NewRows(movieHeader).AddRow(
			3, "Dune: Part Two", "dune-part-two", "", "", "PG-13", "Sci-Fi", 166,
			release, []byte(`["cinema-a","cinema-b"]`), true, false, ts, ts))

	m, err := NewMovieRepo(db).FindBySlug(context.Background(), "dune-part-two")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"cinema-a", "cinema-b"}; !reflect.DeepEqual(m.ScrapedFrom, want) {
		t.Errorf("scraped_from = %v, want %v", m.ScrapedFrom, want)
	}
	if m.ReleaseDate == nil || !m.ReleaseDate.Equal(release) || m.DurationMins != 166 {
		t.Errorf("movie = %+v", m)
	}
}

func TestMovieRepoFindBySourceMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("JOIN movie_sources").WillReturnRows(sqlmock.NewRows(movieHeader))

	m, err := NewMovieRepo(db).FindBySource(context.Background(), "cinema-x", "101")
	if err != nil || m != nil {
		t.Fatalf("got %v, %v; want nil, nil", m, err)
	}
}

func TestMovieRepoInsertMapsSource(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO movies").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO movie_sources").
		WithArgs("cinema-x", "101", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m := &model.Movie{Title: "Movie", Slug: "movie", ScrapedFrom: []string{"cinema-x"}, IsNowShowing: true}
	if err := NewMovieRepo(db).Insert(context.Background(), m, "101"); err != nil {
		t.Fatal(err)
	}
	if m.ID != 5 {
		t.Errorf("id = %d, want 5", m.ID)
	}
}

func TestMovieRepoInsertDuplicateRollsBack(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO movies").WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'movie'"})
	mock.ExpectRollback()

	err := NewMovieRepo(db).Insert(context.Background(), &model.Movie{Title: "Movie", Slug: "movie", ScrapedFrom: []string{"cinema-x"}}, "101")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestMovieRepoTag(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("JSON_ARRAY_APPEND").
		WithArgs("cinema-b", int64(3), "cinema-b").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO movie_sources").
		WithArgs("cinema-b", "b1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewMovieRepo(db).Tag(context.Background(), 3, "cinema-b", "b1"); err != nil {
		t.Fatal(err)
	}
}

func TestMovieRepoPruneSourceTag(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("WHERE JSON_CONTAINS(scraped_from, JSON_QUOTE(?)) AND id NOT IN (?, ?)")).
		WithArgs(`cinema\_x`, "cinema_x", int64(3), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := NewMovieRepo(db).PruneSourceTag(context.Background(), "cinema_x", []uint64{3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
}

func TestMovieRepoPruneWithNothingKept(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("JSON_REMOVE").
		WithArgs("cinema-a", "cinema-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := NewMovieRepo(db).PruneSourceTag(context.Background(), "cinema-a", nil); err != nil {
		t.Fatal(err)
	}
}

func TestMovieRepoRefreshShowingFlags(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE movies").
		WithArgs("2026-10-19", "2026-10-19", "2026-10-19", "2026-10-19").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewMovieRepo(db).RefreshShowingFlags(context.Background(), time.Date(2026, 10, 19, 23, 0, 0, 0, time.UTC))
	if err != nil || n != 3 {
		t.Fatalf("got %d, %v; want 3, nil", n, err)
	}
}

func TestMovieRepoUpdateFormatsReleaseDate(t *testing.T) {
	db, mock := newMock(t)
	release := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	now, soon := false, true
	mock.ExpectExec(regexp.QuoteMeta("UPDATE movies SET release_date = ?, is_now_showing = ?, is_coming_soon = ? WHERE id = ?")).
		WithArgs("2026-11-01", false, true, int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewMovieRepo(db).Update(context.Background(), 8, MoviePatch{ReleaseDate: &release, IsNowShowing: &now, IsComingSoon: &soon})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMovieRepoListOrphans(t *testing.T) {
	db, mock := newMock(t)
	ts := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("JSON_LENGTH\\(m.scraped_from\\) = 0").
		WillReturnRows(sqlmock.NewRows(movieHeader).AddRow(
			9, "Gone Film", "gone-film", "", "", "", "", 0, nil, []byte(`[]`), true, false, ts, ts))

	got, err := NewMovieRepo(db).ListOrphans(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].IsOrphan() {
		t.Fatalf("orphans = %+v", got)
	}
}
