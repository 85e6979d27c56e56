package web

import (
	"context"
	"net/http"
	"time"

	appLog "confgrid/internal/log"
	"confgrid/internal/model"
	"confgrid/internal/sheet"
)

// contentTimeout bounds the per-request fetch of the secondary sheets.
const contentTimeout = 20 * time.Second

type listResponse[T any] struct {
	Items []T    `json:"items"`
	Error string `json:"error,omitempty"`
}

// fetchList runs fetch with a timeout and degrades to an empty list. The
// secondary sheets are fetched on demand; only schedule and venues are held
// by the refresh loop.
func fetchList[T any](ctx context.Context, s *Server, kind string, fetch func(Source, context.Context) ([]T, error)) ([]T, error) {
	src := s.dataSource()
	if src == nil {
		return []T{}, errNoSource
	}
	ctx, cancel := context.WithTimeout(ctx, contentTimeout)
	defer cancel()

	items, err := fetch(src, ctx)
	if err != nil {
		appLog.Error("content fetch failed", err, "sheet", kind)
		return []T{}, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (s *Server) handleVenues(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.snapshot()
	venues := snap.Venues
	if venues == nil {
		venues = []model.Venue{}
	}
	writeJSON(w, http.StatusOK, listResponse[model.Venue]{Items: venues, Error: errorNote(err)})
}

type faqResponse struct {
	Sections []model.FaqSection `json:"sections"`
	Error    string             `json:"error,omitempty"`
}

func (s *Server) handleFaq(w http.ResponseWriter, r *http.Request) {
	items, err := fetchList(r.Context(), s, "faq", Source.Faq)
	writeJSON(w, http.StatusOK, faqResponse{Sections: sheet.GroupFaq(items), Error: errorNote(err)})
}

func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	items, err := fetchList(r.Context(), s, "speakers", Source.Speakers)
	writeJSON(w, http.StatusOK, listResponse[model.Speaker]{Items: items, Error: errorNote(err)})
}

func (s *Server) handleSightseeing(w http.ResponseWriter, r *http.Request) {
	items, err := fetchList(r.Context(), s, "sightseeing", Source.Sightseeing)
	writeJSON(w, http.StatusOK, listResponse[model.Sightseeing]{Items: items, Error: errorNote(err)})
}
