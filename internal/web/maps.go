package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"confgrid/internal/config"
	appLog "confgrid/internal/log"
	"confgrid/internal/mapgen"
	"confgrid/internal/model"
)

const maxEventBody = 64 << 10

// Map kinds served under /map/.
const (
	MapVenues      = "venues"
	MapSightseeing = "sightseeing"
	MapTour        = "tour"
)

// RenderMap builds the map document of kind for points. The tour map is
// numbered, draws the route and reports stop clicks; the others use pins
// and report venue clicks. Without points the map centers on the configured
// fallback.
func RenderMap(cfg *config.Config, kind string, points, track []mapgen.Point, showUser bool) (string, error) {
	opts := mapgen.Options{
		Zoom:       cfg.Map.Zoom,
		Style:      mapgen.MarkerPin,
		ClickEvent: mapgen.EventVenueClick,
		ShowUser:   showUser,
		TileURL:    cfg.Map.TileURL,
	}
	switch kind {
	case MapVenues:
		opts.Title = "Venues"
	case MapSightseeing:
		opts.Title = "Sightseeing"
	case MapTour:
		opts.Title = "Audio Tour"
		opts.Zoom = cfg.Map.TourZoom
		opts.Style = mapgen.MarkerNumbered
		opts.ClickEvent = mapgen.EventStopClick
		opts.Route = true
		opts.Track = track
	default:
		return "", fmt.Errorf("unknown map %q", kind)
	}

	lat, lng, err := mapgen.ParseCoordinates(cfg.Map.Center)
	if err != nil {
		appLog.Warn("invalid map center, using 0,0", "center", cfg.Map.Center)
		lat, lng = 0, 0
	}
	return mapgen.RenderFitted(points, lat, lng, opts)
}

func (s *Server) handleVenueMap(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.snapshot()
	if err != nil {
		appLog.Warn("venue map without data", "error", err.Error())
	}
	s.writeMap(w, MapVenues, VenuePoints(snap.Venues))
}

func (s *Server) handleSightseeingMap(w http.ResponseWriter, r *http.Request) {
	spots, _ := fetchList(r.Context(), s, "sightseeing", Source.Sightseeing)
	s.writeMap(w, MapSightseeing, SightseeingPoints(spots))
}

func (s *Server) handleTourMap(w http.ResponseWriter, r *http.Request) {
	stops, _ := fetchList(r.Context(), s, "tour", Source.TourStops)
	s.writeMap(w, MapTour, TourPoints(stops))
}

// VenuePoints returns the venues that have coordinates as map markers.
func VenuePoints(venues []model.Venue) []mapgen.Point {
	points := make([]mapgen.Point, 0, len(venues))
	for _, v := range venues {
		if !v.HasCoordinates() || !mapgen.ValidLatLng(*v.Latitude, *v.Longitude) {
			continue
		}
		points = append(points, mapgen.Point{
			Lat:      *v.Latitude,
			Lng:      *v.Longitude,
			Title:    v.Name,
			Subtitle: v.Address,
			Payload:  v,
		})
	}
	return points
}

// SightseeingPoints returns the spots that have coordinates as map markers.
func SightseeingPoints(spots []model.Sightseeing) []mapgen.Point {
	points := make([]mapgen.Point, 0, len(spots))
	for _, sp := range spots {
		if !sp.HasCoordinates() || !mapgen.ValidLatLng(*sp.Latitude, *sp.Longitude) {
			continue
		}
		points = append(points, mapgen.Point{
			Lat:      *sp.Latitude,
			Lng:      *sp.Longitude,
			Title:    sp.Name,
			Subtitle: sp.Address,
			Payload:  sp,
		})
	}
	return points
}

// TourPoints numbers tour stops from 1 in sheet order. Stops with invalid
// coordinates are left out but keep their number.
func TourPoints(stops []model.TourStop) []mapgen.Point {
	points := make([]mapgen.Point, 0, len(stops))
	for i, st := range stops {
		if !mapgen.ValidLatLng(st.Latitude, st.Longitude) {
			continue
		}
		points = append(points, mapgen.Point{
			Lat:     st.Latitude,
			Lng:     st.Longitude,
			Title:   st.Title,
			Label:   strconv.Itoa(i + 1),
			Payload: st,
		})
	}
	return points
}

func (s *Server) writeMap(w http.ResponseWriter, kind string, points []mapgen.Point) {
	cfg, _, _ := s.current()
	doc, err := RenderMap(cfg, kind, points, s.route, s.hub.Tracking())
	if err != nil {
		appLog.Error("map render failed", err, "map", kind)
		writeError(w, http.StatusInternalServerError, "failed to render map")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

type mapEventResponse struct {
	Type    string             `json:"type"`
	Index   int                `json:"index"`
	Command mapgen.HostCommand `json:"command"`
}

// handleMapEvent receives a marker click forwarded from a map document and
// answers with the command that highlights the clicked marker.
func (s *Server) handleMapEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	ev, err := mapgen.DecodeMarkerEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	idx := ev.Index()
	appLog.Info("map marker clicked", "type", ev.Type, "index", idx)
	writeJSON(w, http.StatusOK, mapEventResponse{
		Type:    ev.Type,
		Index:   idx,
		Command: mapgen.SetActiveMarker(idx),
	})
}
