package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"confgrid/internal/grid"
)

func TestCurrentDay(t *testing.T) {
	e := grid.NewEngine(grid.DefaultConfig(), time.UTC)
	days := []string{"2024-03-01", "2024-03-02", "2024-03-03"}

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"matching day", time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC), "2024-03-02"},
		{"outside range", time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), "2024-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := currentDay(e, days, tt.now); got != tt.want {
				t.Fatalf("currentDay = %q, want %q", got, tt.want)
			}
		})
	}

	if got := currentDay(e, nil, time.Now()); got != "" {
		t.Fatalf("currentDay(nil) = %q, want empty", got)
	}
}

func TestIsTodaySlashedKey(t *testing.T) {
	e := grid.NewEngine(grid.DefaultConfig(), time.UTC)
	now := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

	if !isToday(e, "03/02/2024", now) {
		t.Fatal("expected slashed key to match")
	}
	if isToday(e, "not a day", now) {
		t.Fatal("invalid key must not match")
	}
}

func TestLoadRoute(t *testing.T) {
	if pts, err := loadRoute(""); err != nil || pts != nil {
		t.Fatalf("empty path: got %v, %v", pts, err)
	}

	path := filepath.Join(t.TempDir(), "tour.gpx")
	doc := `<?xml version="1.0"?>
<gpx><trk><trkseg>
<trkpt lat="48.2" lon="16.37"/>
<trkpt lat="48.21" lon="16.38"/>
</trkseg></trk></gpx>`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	pts, err := loadRoute(path)
	if err != nil {
		t.Fatalf("loadRoute: %v", err)
	}
	if len(pts) != 2 || pts[1].Lng != 16.38 {
		t.Fatalf("unexpected points: %+v", pts)
	}

	if _, err := loadRoute(filepath.Join(t.TempDir(), "missing.gpx")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
