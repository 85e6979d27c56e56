package web

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"confgrid/internal/grid"
	"confgrid/internal/ics"
	"confgrid/internal/live"
	appLog "confgrid/internal/log"
)

//go:embed schedule.html.tmpl
var schedulePageSrc string

var schedulePage = template.Must(template.New("schedule").Funcs(template.FuncMap{
	"px": func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64) + "px"
	},
	"hourX": func(l grid.Layout, i int) float64 {
		return float64(i) * l.Grid.HourWidth()
	},
}).Parse(schedulePageSrc))

type daysResponse struct {
	Days  []string `json:"days"`
	Error string   `json:"error,omitempty"`
}

func (s *Server) handleDays(w http.ResponseWriter, _ *http.Request) {
	_, engine, _ := s.current()
	snap, err := s.snapshot()
	writeJSON(w, http.StatusOK, daysResponse{
		Days:  engine.Days(snap.Items),
		Error: errorNote(err),
	})
}

// layoutResponse is the JSON shape for /api/layout: the grid geometry plus
// where "now" sits and where to scroll so that it is centered.
type layoutResponse struct {
	grid.Layout
	Now      float64 `json:"now"`
	ScrollTo float64 `json:"scroll_to"`
	Error    string  `json:"error,omitempty"`
}

// buildLayout lays out day from the current snapshot.
func (s *Server) buildLayout(day string, viewport float64) layoutResponse {
	cfg, engine, _ := s.current()
	snap, err := s.snapshot()

	if viewport <= 0 {
		viewport = cfg.ViewportWidth
	}
	layout := engine.Build(snap.Items, snap.Venues, day)
	now := engine.OffsetAt(s.clock(), layout.StartHour)
	return layoutResponse{
		Layout:   layout,
		Now:      now,
		ScrollTo: grid.ScrollTarget(now, viewport),
		Error:    errorNote(err),
	}
}

// handleLayout returns the geometry of one day.
//
// GET /api/layout?day=2024-01-01&viewport=390
//   - day:      day key; empty selects the first day
//   - viewport: visible grid width in px (default config viewport_width)
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp := s.buildLayout(q.Get("day"), parseFloatDefault(q.Get("viewport"), 0))
	appLog.Debug("api layout request", "day", resp.Day, "events", len(resp.Events))
	writeJSON(w, http.StatusOK, resp)
}

type readyResponse struct {
	Day      string  `json:"day"`
	ScrollTo float64 `json:"scroll_to"`
	Fired    bool    `json:"fired"`
}

// handleLayoutReady is the grid page's post-layout event. A new day re-arms
// the indicator; the first call per day answers with the scroll position
// that centers "now", later calls with fired=false.
//
// POST /api/layout/ready?day=2024-01-01&viewport=390
func (s *Server) handleLayoutReady(w http.ResponseWriter, r *http.Request) {
	cfg, engine, ind := s.current()
	snap, _ := s.snapshot()

	q := r.URL.Query()
	day := q.Get("day")
	if day == "" {
		if days := engine.Days(snap.Items); len(days) > 0 {
			day = days[0]
		}
	}
	viewport := parseFloatDefault(q.Get("viewport"), cfg.ViewportWidth)

	s.mu.Lock()
	changed := s.readyDay != day
	s.readyDay = day
	ctx := s.runCtx
	s.mu.Unlock()

	if changed {
		if ctx == nil {
			ctx = context.Background()
		}
		if err := ind.SelectDay(ctx, cfg.Grid.StartHour); err != nil {
			appLog.Error("live indicator day change failed", err, "day", day)
		}
	}

	scroll, fired := ind.LayoutReady(viewport)
	appLog.Debug("layout ready", "day", day, "fired", fired, "scroll_to", scroll)
	writeJSON(w, http.StatusOK, readyResponse{Day: day, ScrollTo: scroll, Fired: fired})
}

type nowResponse struct {
	live.Update
	Origin   int     `json:"origin"`
	ScrollTo float64 `json:"scroll_to"`
}

// handleNow returns the live indicator position.
//
// GET /api/now?viewport=390
func (s *Server) handleNow(w http.ResponseWriter, r *http.Request) {
	cfg, _, ind := s.current()
	u := ind.Snapshot()
	if u.At.IsZero() {
		ind.Tick()
		u = ind.Snapshot()
	}
	viewport := parseFloatDefault(r.URL.Query().Get("viewport"), cfg.ViewportWidth)
	writeJSON(w, http.StatusOK, nowResponse{
		Update:   u,
		Origin:   ind.Origin(),
		ScrollTo: grid.ScrollTarget(u.Offset, viewport),
	})
}

// handleNowStream pushes an event whenever the live indicator ticks.
func (s *Server) handleNowStream(w http.ResponseWriter, r *http.Request) {
	_, _, ind := s.current()
	ch, cancel := ind.Subscribe()
	defer cancel()
	serveEvents(w, r, "now", ch)
}

type schedulePageData struct {
	Layout  grid.Layout
	Now     float64
	ShowNow bool
	Error   string
}

// handleSchedulePage renders the day grid as HTML. The grid root carries
// data-ready="true" once it has scrolled to "now", which headless capture
// waits for.
func (s *Server) handleSchedulePage(w http.ResponseWriter, r *http.Request) {
	resp := s.buildLayout(r.URL.Query().Get("day"), 0)
	data := schedulePageData{
		Layout:  resp.Layout,
		Now:     resp.Now,
		ShowNow: resp.Now >= 0 && resp.Now <= resp.Width,
		Error:   resp.Error,
	}

	var buf bytes.Buffer
	if err := schedulePage.Execute(&buf, data); err != nil {
		appLog.Error("schedule page render failed", err, "day", resp.Day)
		writeError(w, http.StatusInternalServerError, "failed to render schedule")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleScheduleICS exports the whole program as an iCalendar feed.
func (s *Server) handleScheduleICS(w http.ResponseWriter, _ *http.Request) {
	cfg, _, _ := s.current()
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, errorNote(err))
		return
	}

	body, err := ics.Export(snap.Items, snap.Venues, cfg.Location(), snap.FetchedAt)
	if errors.Is(err, ics.ErrNoEvents) {
		writeError(w, http.StatusNotFound, "no exportable events")
		return
	}
	if err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.ics"`)
	if !snap.FetchedAt.IsZero() {
		w.Header().Set("Last-Modified", snap.FetchedAt.UTC().Format(time.RFC1123))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
