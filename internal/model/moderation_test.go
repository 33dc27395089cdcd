package model

import (
	"errors"
	"testing"
	"time"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"approve pending", StatusPending, StatusPublished, false},
		{"reject pending", StatusPending, StatusRejected, false},
		{"unpublish to draft", StatusPublished, StatusDraft, false},
		{"published back to pending", StatusPublished, StatusPending, true},
		{"rejected straight to published", StatusRejected, StatusPublished, true},
		{"same state", StatusDraft, StatusDraft, false},
		{"unknown source state", Status("archived"), StatusDraft, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.to)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				if got != tt.from {
					t.Errorf("state changed on rejected transition: %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.to {
				t.Errorf("got %s, want %s", got, tt.to)
			}
		})
	}
}

func TestHiddenIsIndependentOfStatus(t *testing.T) {
	e := Event{Status: StatusPublished, IsHidden: true}
	if e.IsPublic() {
		t.Error("hidden published event must not be public")
	}
	if e.Status != StatusPublished {
		t.Error("hiding must not change status")
	}
	e.IsHidden = false
	if !e.IsPublic() {
		t.Error("visible published event should be public")
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("published"); err != nil {
		t.Errorf("published: %v", err)
	}
	if _, err := ParseStatus("PUBLISHED"); err == nil {
		t.Error("expected error for unknown casing")
	}
}

func TestShowingFlags(t *testing.T) {
	today := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)
	sameDay := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		release  *time.Time
		now, soon bool
	}{
		{"released yesterday", &yesterday, true, false},
		{"released today", &sameDay, true, false},
		{"releases tomorrow", &tomorrow, false, true},
		{"no release date", nil, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now, soon := ShowingFlags(tt.release, today)
			if now != tt.now || soon != tt.soon {
				t.Errorf("got (%v,%v), want (%v,%v)", now, soon, tt.now, tt.soon)
			}
		})
	}
}

func TestMovieIsOrphan(t *testing.T) {
	m := Movie{IsNowShowing: true}
	if !m.IsOrphan() {
		t.Error("showing movie with no tags should be an orphan")
	}
	m.ScrapedFrom = []string{"cineco"}
	if m.IsOrphan() {
		t.Error("tagged movie is not an orphan")
	}
	if !m.HasTag("cineco") || m.HasTag("vox") {
		t.Error("HasTag mismatch")
	}
}
