package sheet

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	appLog "confgrid/internal/log"
	"confgrid/internal/mapgen"
	"confgrid/internal/model"
)

// flexString accepts JSON strings, numbers, booleans and null. The sheet
// export is loosely typed: the same column may arrive as "3" or 3.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	// Numbers and booleans keep their literal spelling.
	*f = flexString(b)
	return nil
}

func (f flexString) String() string { return string(f) }

func (f flexString) float() (*float64, bool) {
	if f == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(string(f), 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

type rawScheduleItem struct {
	Title       flexString `json:"title"`
	Venue       flexString `json:"venue"`
	TimeStart   flexString `json:"timestart"`
	TimeEnd     flexString `json:"timeend"`
	DateGroupBy flexString `json:"dategroupby"`
	Description flexString `json:"description"`
	Speaker     flexString `json:"speaker"`
}

func (r rawScheduleItem) toModel() (model.ScheduleItem, string) {
	if r.Title == "" {
		return model.ScheduleItem{}, "missing title"
	}
	if r.TimeStart == "" || r.TimeEnd == "" {
		return model.ScheduleItem{}, "missing start or end time"
	}
	if r.DateGroupBy == "" {
		return model.ScheduleItem{}, "missing day key"
	}
	return model.ScheduleItem{
		Title:        r.Title.String(),
		Venue:        r.Venue.String(),
		TimeStart:    r.TimeStart.String(),
		TimeEnd:      r.TimeEnd.String(),
		DateGroupKey: r.DateGroupBy.String(),
		Description:  r.Description.String(),
		Speaker:      r.Speaker.String(),
	}, ""
}

type rawPlace struct {
	ID          flexString `json:"id"`
	Name        flexString `json:"name"`
	Address     flexString `json:"address"`
	Description flexString `json:"description"`
	Image       flexString `json:"image"`
	Latitude    flexString `json:"latitude"`
	Longitude   flexString `json:"longitude"`
	Coordinates flexString `json:"coordinates"`
}

// position resolves explicit latitude/longitude columns first and falls back
// to the combined "lat, lng" column. Non-finite or out-of-range values count
// as no coordinates.
func (r rawPlace) position() (lat, lng *float64) {
	la, okLat := r.Latitude.float()
	lo, okLng := r.Longitude.float()
	if okLat && okLng && la != nil && lo != nil {
		if mapgen.ValidLatLng(*la, *lo) {
			return la, lo
		}
		appLog.Warn("sheet row has invalid coordinates", "latitude", r.Latitude.String(), "longitude", r.Longitude.String())
	}
	if r.Coordinates != "" {
		a, b, err := mapgen.ParseCoordinates(r.Coordinates.String())
		if err == nil {
			return &a, &b
		}
		appLog.Warn("sheet row has invalid coordinates", "coordinates", r.Coordinates.String(), "error", err.Error())
	}
	return nil, nil
}

func (r rawPlace) toVenue() (model.Venue, string) {
	if r.ID == "" {
		return model.Venue{}, "missing id"
	}
	lat, lng := r.position()
	return model.Venue{
		ID:          r.ID.String(),
		Name:        r.Name.String(),
		Address:     r.Address.String(),
		Description: r.Description.String(),
		Latitude:    lat,
		Longitude:   lng,
	}, ""
}

func (r rawPlace) toSightseeing() (model.Sightseeing, string) {
	if r.Name == "" {
		return model.Sightseeing{}, "missing name"
	}
	lat, lng := r.position()
	return model.Sightseeing{
		ID:          r.ID.String(),
		Name:        r.Name.String(),
		Description: r.Description.String(),
		Address:     r.Address.String(),
		Image:       r.Image.String(),
		Latitude:    lat,
		Longitude:   lng,
	}, ""
}

type rawFaq struct {
	ID          flexString `json:"id"`
	Category    flexString `json:"category"`
	Title       flexString `json:"title"`
	Description flexString `json:"description"`
}

func (r rawFaq) toModel() (model.FaqItem, string) {
	if r.Title == "" {
		return model.FaqItem{}, "missing title"
	}
	return model.FaqItem{
		ID:          r.ID.String(),
		Category:    r.Category.String(),
		Title:       r.Title.String(),
		Description: r.Description.String(),
	}, ""
}

type rawSpeaker struct {
	ID    flexString `json:"id"`
	Name  flexString `json:"name"`
	Bio   flexString `json:"bio"`
	Image flexString `json:"image"`
}

func (r rawSpeaker) toModel() (model.Speaker, string) {
	if r.Name == "" {
		return model.Speaker{}, "missing name"
	}
	return model.Speaker{
		ID:    r.ID.String(),
		Name:  r.Name.String(),
		Bio:   r.Bio.String(),
		Image: r.Image.String(),
	}, ""
}

type rawTourStop struct {
	ID          flexString `json:"id"`
	Title       flexString `json:"title"`
	Latitude    flexString `json:"lat"`
	Longitude   flexString `json:"lon"`
	Coordinates flexString `json:"coordinates"`
	Audio       flexString `json:"audio"`
}

func (r rawTourStop) toModel() (model.TourStop, string) {
	if r.ID == "" || r.Title == "" {
		return model.TourStop{}, "missing id or title"
	}
	p := rawPlace{Latitude: r.Latitude, Longitude: r.Longitude, Coordinates: r.Coordinates}
	lat, lng := p.position()
	if lat == nil || lng == nil {
		return model.TourStop{}, "missing coordinates"
	}
	return model.TourStop{
		ID:        r.ID.String(),
		Title:     r.Title.String(),
		Latitude:  *lat,
		Longitude: *lng,
		Audio:     r.Audio.String(),
	}, ""
}

// GroupFaq groups items by category, keeping the order in which categories
// first appear. Items without a category go under "General".
func GroupFaq(items []model.FaqItem) []model.FaqSection {
	index := make(map[string]int)
	sections := make([]model.FaqSection, 0)
	for _, it := range items {
		cat := it.Category
		if cat == "" {
			cat = "General"
		}
		i, ok := index[cat]
		if !ok {
			i = len(sections)
			index[cat] = i
			sections = append(sections, model.FaqSection{Category: cat})
		}
		sections[i].Items = append(sections[i].Items, it)
	}
	return sections
}
