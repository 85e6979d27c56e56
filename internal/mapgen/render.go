// Package mapgen generates self-contained Leaflet map documents for the
// venue, sightseeing and audio-tour screens, plus slippy-map tile helpers.
//
// A generated document talks to its host only through postMessage: marker
// clicks go out as MarkerEvent envelopes and HostCommand envelopes come in.
package mapgen

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"math"
)

//go:embed map.html.tmpl
var mapTemplateSrc string

var mapTemplate = template.Must(template.New("map").Parse(mapTemplateSrc))

// MarkerStyle selects the marker icon.
type MarkerStyle int

const (
	// MarkerPin draws a plain location pin (venues, sightseeing).
	MarkerPin MarkerStyle = iota
	// MarkerNumbered draws a circle with the point label (tour stops).
	MarkerNumbered
)

// Options controls document generation.
type Options struct {
	Title string
	Zoom  int
	Style MarkerStyle

	// ClickEvent is EventVenueClick or EventStopClick. Empty picks one
	// from Style.
	ClickEvent string

	// Route connects the points (or Track, if set) with a polyline.
	Route bool
	Track []Point

	// ShowUser makes the user-location marker visible from the start.
	ShowUser bool

	TileURL     string
	Attribution string
}

type docData struct {
	Title        string
	CenterLat    float64
	CenterLng    float64
	Zoom         int
	TileURL      string
	Attribution  string
	Points       []Point
	Track        [][2]float64
	Numbered     bool
	ClickType    string
	Route        bool
	UserLocation bool
	Bounds       *Bounds
}

// Render builds the HTML document. Points with non-finite coordinates are
// rejected; an empty point list still renders a map centered on center.
func Render(points []Point, bounds Bounds, centerLat, centerLng float64, opts Options) (string, error) {
	if !ValidLatLng(centerLat, centerLng) {
		return "", fmt.Errorf("mapgen: invalid center %v, %v", centerLat, centerLng)
	}
	for i, p := range points {
		if !ValidLatLng(p.Lat, p.Lng) {
			return "", fmt.Errorf("mapgen: point %d has invalid coordinates %v, %v", i, p.Lat, p.Lng)
		}
	}

	data := docData{
		Title:        opts.Title,
		CenterLat:    centerLat,
		CenterLng:    centerLng,
		Zoom:         opts.Zoom,
		TileURL:      opts.TileURL,
		Attribution:  opts.Attribution,
		Points:       points,
		Track:        make([][2]float64, 0, len(opts.Track)),
		Numbered:     opts.Style == MarkerNumbered,
		ClickType:    opts.ClickEvent,
		Route:        opts.Route,
		UserLocation: opts.ShowUser,
	}
	if data.Title == "" {
		data.Title = "Map"
	}
	if data.Zoom <= 0 {
		data.Zoom = 14
	}
	if data.TileURL == "" {
		data.TileURL = DefaultTileURL
	}
	if data.Attribution == "" {
		data.Attribution = "© OpenStreetMap contributors"
	}
	if data.Points == nil {
		data.Points = []Point{}
	}
	if data.ClickType == "" {
		data.ClickType = EventVenueClick
		if data.Numbered {
			data.ClickType = EventStopClick
		}
	}
	if data.ClickType != EventVenueClick && data.ClickType != EventStopClick {
		return "", errors.New("mapgen: unknown click event " + data.ClickType)
	}
	for _, p := range opts.Track {
		if ValidLatLng(p.Lat, p.Lng) {
			data.Track = append(data.Track, [2]float64{p.Lat, p.Lng})
		}
	}
	if bounds != (Bounds{}) {
		b := bounds
		data.Bounds = &b
	}

	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mapgen: render: %w", err)
	}
	return buf.String(), nil
}

// RenderFitted is Render with bounds and center derived from points. fallbackLat
// and fallbackLng are used when points is empty.
func RenderFitted(points []Point, fallbackLat, fallbackLng float64, opts Options) (string, error) {
	b, ok := BoundsFor(points)
	if !ok {
		return Render(points, Bounds{}, fallbackLat, fallbackLng, opts)
	}
	lat, lng := b.Center()
	return Render(points, b, lat, lng, opts)
}

// ValidLatLng reports whether lat and lng are finite and inside the WGS84
// range.
func ValidLatLng(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
