// Package repository holds the MySQL data access for the catalog tables
// the ingestion pipeline touches: events, movies, movie_sources, venues and
// sync_runs. Sentinel errors let the pipeline and the handlers tell a lost
// race from a real failure.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicate is returned when an insert hits a unique key, typically the
// (source_name, source_event_id) identity written by an overlapping run.
var ErrDuplicate = errors.New("duplicate key")

// ErrNoChange indicates an UPDATE matched the row but every value was
// already current.
var ErrNoChange = errors.New("no change")

// ErrEventNotFound is returned when an event id does not exist.
var ErrEventNotFound = errors.New("event not found")

// ErrMovieNotFound is returned when a movie id does not exist.
var ErrMovieNotFound = errors.New("movie not found")

// ErrRunClosed is returned when a run log entry was already finalized.
var ErrRunClosed = errors.New("sync run already finished")

// ErrStaleStatus is returned when a moderation update lost a race with
// another status change.
var ErrStaleStatus = errors.New("status changed concurrently")

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
