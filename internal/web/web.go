package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"confgrid/internal/config"
	"confgrid/internal/grid"
	"confgrid/internal/live"
	"confgrid/internal/location"
	appLog "confgrid/internal/log"
	"confgrid/internal/mapgen"
	"confgrid/internal/model"
	"confgrid/internal/sheet"
)

// Source is the conference data backend. *sheet.Client implements it.
type Source interface {
	LoadSchedule(ctx context.Context) (sheet.Snapshot, error)
	Faq(ctx context.Context) ([]model.FaqItem, error)
	Speakers(ctx context.Context) ([]model.Speaker, error)
	Sightseeing(ctx context.Context) ([]model.Sightseeing, error)
	TourStops(ctx context.Context) ([]model.TourStop, error)
}

var errNoSource = errors.New("no data source configured")

// Options carries the collaborators owned by the application root.
type Options struct {
	Source Source
	// Hub is the shared location feed. Nil creates a private one.
	Hub *location.Hub
	// Clock defaults to time.Now.
	Clock live.Clock
	// Route is the optional GPX track drawn on the tour map.
	Route []mapgen.Point
	// NewSource rebuilds the source when a reload changes the sheet URLs.
	// Nil means such changes need a restart.
	NewSource func(*config.Config) Source
}

// Server provides the schedule grid, map documents and JSON APIs.
type Server struct {
	mu        sync.RWMutex
	cfg       *config.Config
	engine    grid.Engine
	indicator *live.Indicator
	runCtx    context.Context
	refresher *cron.Cron
	source    Source
	// readyDay is the day the indicator's one-shot scroll was armed for.
	readyDay string

	newSource func(*config.Config) Source
	hub       *location.Hub
	clock     live.Clock
	route     []mapgen.Point
	mux       *http.ServeMux

	// The latest schedule fetch. A failed fetch replaces it with an empty
	// snapshot and the error, so pages degrade instead of showing stale data.
	snapMu  sync.RWMutex
	snap    sheet.Snapshot
	snapErr error
}

// NewServer constructs a new Server. Call Start (or Run) to begin the
// background refresh and the live indicator.
func NewServer(cfg *config.Config, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Hub == nil {
		opts.Hub = location.NewHub(0)
	}
	if opts.Source == nil && opts.NewSource != nil {
		opts.Source = opts.NewSource(cfg)
	}
	s := &Server{
		source:    opts.Source,
		newSource: opts.NewSource,
		hub:       opts.Hub,
		clock:     opts.Clock,
		route:     opts.Route,
		mux:       http.NewServeMux(),
	}
	s.applyConfig(cfg)
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/days", s.handleDays)
	s.mux.HandleFunc("GET /api/layout", s.handleLayout)
	s.mux.HandleFunc("POST /api/layout/ready", s.handleLayoutReady)
	s.mux.HandleFunc("GET /api/now", s.handleNow)
	s.mux.HandleFunc("GET /api/now/stream", s.handleNowStream)
	s.mux.HandleFunc("GET /schedule", s.handleSchedulePage)
	s.mux.HandleFunc("GET /schedule.ics", s.handleScheduleICS)

	s.mux.HandleFunc("GET /api/venues", s.handleVenues)
	s.mux.HandleFunc("GET /api/faq", s.handleFaq)
	s.mux.HandleFunc("GET /api/speakers", s.handleSpeakers)
	s.mux.HandleFunc("GET /api/sightseeing", s.handleSightseeing)

	s.mux.HandleFunc("GET /map/venues", s.handleVenueMap)
	s.mux.HandleFunc("GET /map/sightseeing", s.handleSightseeingMap)
	s.mux.HandleFunc("GET /map/tour", s.handleTourMap)
	s.mux.HandleFunc("POST /api/map/events", s.handleMapEvent)

	s.mux.HandleFunc("GET /api/location", s.handleLocation)
	s.mux.HandleFunc("POST /api/location", s.handleLocationFix)
	s.mux.HandleFunc("POST /api/location/toggle", s.handleLocationToggle)
	s.mux.HandleFunc("GET /api/location/stream", s.handleLocationStream)

	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/schedule", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// applyConfig swaps in cfg and rebuilds the grid engine. The live indicator
// lives as long as the server and only takes the new engine, so open "now"
// streams keep receiving ticks.
func (s *Server) applyConfig(cfg *config.Config) {
	engine := grid.NewEngine(cfg.Grid, cfg.Location())

	s.mu.Lock()
	ind := s.indicator
	if ind == nil {
		s.indicator = live.NewIndicator(engine, s.clock)
	}
	s.cfg = cfg
	s.engine = engine
	s.readyDay = ""
	s.mu.Unlock()

	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	if ind != nil {
		ind.SetEngine(engine)
	}
}

// SetConfig applies a reloaded configuration. The refresh schedule is
// re-armed when it changed, and the data source is rebuilt when the sheet
// URLs changed.
func (s *Server) SetConfig(cfg *config.Config) {
	s.mu.RLock()
	prev := s.cfg
	ctx := s.runCtx
	s.mu.RUnlock()

	s.applyConfig(cfg)

	if cfg.BaseURL != prev.BaseURL || cfg.SightseeingURL != prev.SightseeingURL {
		s.replaceSource(ctx, cfg)
	}
	if cfg.RefreshCron != prev.RefreshCron && ctx != nil {
		if err := s.scheduleRefresh(ctx); err != nil {
			appLog.Error("refresh reschedule failed", err, "refresh", cfg.RefreshCron)
		}
	}
	appLog.Info("config applied", "timezone", cfg.Timezone, "refresh", cfg.RefreshCron)
}

func (s *Server) replaceSource(ctx context.Context, cfg *config.Config) {
	if s.newSource == nil {
		appLog.Warn("sheet URLs changed; restart to use them")
		return
	}
	src := s.newSource(cfg)

	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
	appLog.Info("data source replaced")

	if ctx != nil {
		if err := s.Refresh(ctx); err != nil {
			appLog.Warn("refresh after source change failed", "error", err.Error())
		}
	}
}

func (s *Server) dataSource() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Server) current() (*config.Config, grid.Engine, *live.Indicator) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.engine, s.indicator
}

// Start loads the first snapshot, schedules the periodic refresh and starts
// the live indicator. Everything stops when ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	ind := s.indicator
	s.mu.Unlock()

	if err := ind.Start(ctx); err != nil {
		return err
	}
	if err := s.Refresh(ctx); err != nil {
		appLog.Warn("initial schedule load failed; serving empty state", "error", err.Error())
	}
	if err := s.scheduleRefresh(ctx); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		sched := s.refresher
		s.refresher = nil
		s.mu.Unlock()
		if sched != nil {
			<-sched.Stop().Done()
		}
	}()
	return nil
}

func (s *Server) scheduleRefresh(ctx context.Context) error {
	cfg, _, _ := s.current()

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.RefreshCron, func() {
		if err := s.Refresh(ctx); err != nil {
			appLog.Warn("scheduled refresh failed", "error", err.Error())
		}
	}); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", cfg.RefreshCron, err)
	}

	s.mu.Lock()
	old := s.refresher
	s.refresher = sched
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	sched.Start()
	appLog.Info("refresh scheduled", "refresh", cfg.RefreshCron)
	return nil
}

// Refresh fetches schedule and venues and replaces the current snapshot.
func (s *Server) Refresh(ctx context.Context) error {
	src := s.dataSource()
	if src == nil {
		s.setSnapshot(sheet.Snapshot{}, errNoSource)
		return errNoSource
	}

	start := time.Now()
	snap, err := src.LoadSchedule(ctx)
	if err != nil {
		appLog.Error("schedule refresh failed", err)
		s.setSnapshot(sheet.Snapshot{}, err)
		return err
	}
	s.setSnapshot(snap, nil)
	appLog.Info("schedule refreshed", "items", len(snap.Items), "venues", len(snap.Venues), "took", time.Since(start).String())
	return nil
}

func (s *Server) setSnapshot(snap sheet.Snapshot, err error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	s.snap = snap
	s.snapErr = err
}

func (s *Server) snapshot() (sheet.Snapshot, error) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap, s.snapErr
}

// Run serves HTTP on the configured listen address until ctx is canceled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	cfg, _, _ := s.current()
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// errorNote turns a fetch error into the client-facing degradation note.
func errorNote(err error) string {
	if err == nil {
		return ""
	}
	return "data unavailable: " + err.Error()
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseFloatDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// serveEvents streams values from ch as server-sent events until the client
// goes away or ch is closed.
func serveEvents[T any](w http.ResponseWriter, r *http.Request, event string, ch <-chan T) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				appLog.Error("event encode failed", err, "event", event)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
