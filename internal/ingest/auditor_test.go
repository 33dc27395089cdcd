package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iliyamo/venue-directory/internal/metrics"
	"github.com/iliyamo/venue-directory/internal/model"
)

type fixedHistory map[string]time.Time

func (h fixedHistory) LastSuccessful(context.Context) (map[string]time.Time, error) {
	return h, nil
}

type fixedUnmatched []model.VenueNameCount

func (u fixedUnmatched) TopUnmatchedVenues(_ context.Context, limit int) ([]model.VenueNameCount, error) {
	if len(u) > limit {
		return u[:limit], nil
	}
	return u, nil
}

func TestAuditorOrphans(t *testing.T) {
	movies := newMemMovies()
	ctx := context.Background()
	run := NewEngine(nil, movies, fixedClock(syncDay))
	mustUpsert(t, run, movieRec("cinema-a", "1", "Gone Film", nil), ActionInsert)
	mustUpsert(t, run, movieRec("cinema-a", "2", "Kept Film", nil), ActionInsert)

	// next run lists only the second film
	run = NewEngine(nil, movies, fixedClock(syncDay))
	mustUpsert(t, run, movieRec("cinema-a", "2", "Kept Film", nil), ActionSkip)
	if _, err := movies.PruneSourceTag(ctx, "cinema-a", run.SeenMovies("cinema-a")); err != nil {
		t.Fatal(err)
	}

	a := &Auditor{Movies: movies}
	orphans, err := a.Orphans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0].Title != "Gone Film" {
		t.Fatalf("orphans = %+v, want only Gone Film", orphans)
	}
	if got := testutil.ToFloat64(metrics.OrphanMovies); got != 1 {
		t.Errorf("orphan gauge = %v, want 1", got)
	}
}

func TestAuditorReport(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	a := &Auditor{
		Movies: newMemMovies(),
		Runs: fixedHistory{
			"platinumlist": now.Add(-2 * time.Hour),
			"cinema-x":     now.Add(-72 * time.Hour),
		},
		Venues:     fixedUnmatched{{Name: "Cultural Hall", Count: 4}, {Name: "Block 338", Count: 2}},
		Sources:    []string{"platinumlist", "cinema-x", "never-ran"},
		StaleAfter: 48 * time.Hour,
		TopVenues:  1,
		Now:        func() time.Time { return now },
	}

	r, err := a.Report(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Orphans) != 0 {
		t.Errorf("orphans = %d, want 0", len(r.Orphans))
	}

	stale := map[string]bool{}
	for _, s := range r.Sources {
		stale[s.Source] = s.Stale
	}
	want := map[string]bool{"platinumlist": false, "cinema-x": true, "never-ran": true}
	for src, w := range want {
		if stale[src] != w {
			t.Errorf("%s stale = %v, want %v", src, stale[src], w)
		}
	}
	if len(r.UnmatchedVenues) != 1 || r.UnmatchedVenues[0].Name != "Cultural Hall" {
		t.Errorf("unmatched = %+v", r.UnmatchedVenues)
	}
}
