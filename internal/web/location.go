package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"confgrid/internal/location"
)

type locationResponse struct {
	Tracking bool          `json:"tracking"`
	Last     *location.Fix `json:"last,omitempty"`
}

func (s *Server) locationState() locationResponse {
	resp := locationResponse{Tracking: s.hub.Tracking()}
	if f, ok := s.hub.Last(); ok {
		resp.Last = &f
	}
	return resp
}

func (s *Server) handleLocation(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.locationState())
}

// handleLocationFix accepts a position report from the device.
//
// POST /api/location {"latitude": 48.2, "longitude": 16.37, "heading": 90}
func (s *Server) handleLocationFix(w http.ResponseWriter, r *http.Request) {
	var fix location.Fix
	dec := json.NewDecoder(io.LimitReader(r.Body, maxEventBody))
	if err := dec.Decode(&fix); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	fix.At = s.clock()

	if err := s.hub.Update(fix); err != nil {
		if errors.Is(err, location.ErrInvalidFix) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to record location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLocationToggle flips tracking, or sets it when the body carries
// {"enable": bool}.
func (s *Server) handleLocationToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enable *bool `json:"enable"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEventBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch {
	case req.Enable == nil:
		s.hub.Toggle()
	case *req.Enable:
		s.hub.Start()
	default:
		s.hub.Stop()
	}
	writeJSON(w, http.StatusOK, s.locationState())
}

// handleLocationStream forwards hub commands to map documents as
// server-sent events.
func (s *Server) handleLocationStream(w http.ResponseWriter, r *http.Request) {
	ch, cancel := s.hub.Subscribe()
	defer cancel()
	serveEvents(w, r, "command", ch)
}
