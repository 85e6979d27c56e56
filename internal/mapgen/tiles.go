package mapgen

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultTileURL is the OpenStreetMap raster tile template.
const DefaultTileURL = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"

// Point is a geo-tagged marker.
type Point struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle,omitempty"`
	// Label is drawn inside numbered markers (tour stop ids).
	Label string `json:"label,omitempty"`
	// Payload is echoed back to the host in click events.
	Payload any `json:"payload,omitempty"`
}

// Bounds is a lat/lng bounding box.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Center returns the midpoint of b.
func (b Bounds) Center() (lat, lng float64) {
	return (b.North + b.South) / 2, (b.East + b.West) / 2
}

// BoundsFor returns the smallest box containing points. ok is false when
// points is empty.
func BoundsFor(points []Point) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b = Bounds{North: points[0].Lat, South: points[0].Lat, East: points[0].Lng, West: points[0].Lng}
	for _, p := range points[1:] {
		b.North = math.Max(b.North, p.Lat)
		b.South = math.Min(b.South, p.Lat)
		b.East = math.Max(b.East, p.Lng)
		b.West = math.Min(b.West, p.Lng)
	}
	return b, true
}

// Tile is one slippy-map tile.
type Tile struct {
	URL string `json:"url"`
	X   int    `json:"x"`
	Y   int    `json:"y"`
	Z   int    `json:"z"`
}

// LngToTileX is the Web Mercator tile column (fractional) for lng at zoom.
func LngToTileX(lng float64, zoom int) float64 {
	return (lng + 180) / 360 * math.Exp2(float64(zoom))
}

// LatToTileY is the Web Mercator tile row (fractional) for lat at zoom.
func LatToTileY(lat float64, zoom int) float64 {
	r := lat * math.Pi / 180
	return (1 - math.Log(math.Tan(r)+1/math.Cos(r))/math.Pi) / 2 * math.Exp2(float64(zoom))
}

// TilesForBounds lists the OSM tiles covering b at zoom, column-major.
func TilesForBounds(b Bounds, zoom int) []Tile {
	minX := int(math.Floor(LngToTileX(b.West, zoom)))
	maxX := int(math.Floor(LngToTileX(b.East, zoom)))
	minY := int(math.Floor(LatToTileY(b.North, zoom)))
	maxY := int(math.Floor(LatToTileY(b.South, zoom)))

	tiles := make([]Tile, 0)
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, Tile{
				URL: fmt.Sprintf("https://tile.openstreetmap.org/%d/%d/%d.png", zoom, x, y),
				X:   x,
				Y:   y,
				Z:   zoom,
			})
		}
	}
	return tiles
}

// ParseCoordinates reads the spreadsheet's "lat, lng" column.
func ParseCoordinates(s string) (lat, lng float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, errors.New("mapgen: coordinates must be \"lat, lng\"")
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("mapgen: latitude: %w", err)
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("mapgen: longitude: %w", err)
	}
	if !ValidLatLng(lat, lng) {
		return 0, 0, fmt.Errorf("mapgen: coordinates out of range: %v, %v", lat, lng)
	}
	return lat, lng, nil
}
