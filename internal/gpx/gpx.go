// Package gpx reads track points from GPX files used as audio-tour routes.
package gpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	appLog "confgrid/internal/log"
	"confgrid/internal/mapgen"
)

// Parse returns the trkpt coordinates of r in document order. Points with a
// missing or non-numeric lat/lon are skipped.
func Parse(r io.Reader) ([]mapgen.Point, error) {
	dec := xml.NewDecoder(r)
	points := make([]mapgen.Point, 0)
	skipped := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gpx: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "trkpt" {
			continue
		}

		lat, latOK := attrFloat(se, "lat")
		lon, lonOK := attrFloat(se, "lon")
		if !latOK || !lonOK {
			skipped++
			continue
		}
		points = append(points, mapgen.Point{Lat: lat, Lng: lon})
	}

	if skipped > 0 {
		appLog.Warn("gpx: skipped invalid track points", "count", skipped)
	}
	return points, nil
}

func attrFloat(se xml.StartElement, name string) (float64, bool) {
	for _, a := range se.Attr {
		if a.Name.Local != name {
			continue
		}
		v, err := strconv.ParseFloat(a.Value, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	return 0, false
}
