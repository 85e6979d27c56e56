package mapgen

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Host → map actions.
const (
	ActionSetActiveMarker    = "setActiveMarker"
	ActionUpdateUserLocation = "updateUserLocation"
	ActionToggleUserLocation = "toggleUserLocation"
)

// Map → host event types.
const (
	EventStopClick  = "stopClick"
	EventVenueClick = "venueClick"
)

// HostCommand is a message the host posts into the map document.
type HostCommand struct {
	Action    string   `json:"action"`
	Index     *int     `json:"index,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Enable    *bool    `json:"enable,omitempty"`
}

func SetActiveMarker(index int) HostCommand {
	return HostCommand{Action: ActionSetActiveMarker, Index: &index}
}

// UpdateUserLocation moves the user marker. A nil heading leaves the icon
// unrotated.
func UpdateUserLocation(lat, lng float64, heading *float64) HostCommand {
	return HostCommand{Action: ActionUpdateUserLocation, Latitude: &lat, Longitude: &lng, Heading: heading}
}

func ToggleUserLocation(enable bool) HostCommand {
	return HostCommand{Action: ActionToggleUserLocation, Enable: &enable}
}

// MarkerEvent is posted by the map document when a marker is clicked.
type MarkerEvent struct {
	Type       string          `json:"type"`
	StopIndex  *int            `json:"stopIndex,omitempty"`
	Stop       json.RawMessage `json:"stop,omitempty"`
	VenueIndex *int            `json:"venueIndex,omitempty"`
	Venue      json.RawMessage `json:"venue,omitempty"`
}

// Index returns the clicked marker index.
func (e MarkerEvent) Index() int {
	switch {
	case e.StopIndex != nil:
		return *e.StopIndex
	case e.VenueIndex != nil:
		return *e.VenueIndex
	default:
		return -1
	}
}

// Payload returns the marker payload echoed by the document.
func (e MarkerEvent) Payload() json.RawMessage {
	if e.Type == EventStopClick {
		return e.Stop
	}
	return e.Venue
}

// ErrBadEvent is returned for envelopes that are not marker events.
var ErrBadEvent = errors.New("mapgen: malformed marker event")

// DecodeMarkerEvent parses and validates a message from the map document.
func DecodeMarkerEvent(data []byte) (MarkerEvent, error) {
	var ev MarkerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return MarkerEvent{}, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	switch ev.Type {
	case EventStopClick:
		if ev.StopIndex == nil || *ev.StopIndex < 0 {
			return MarkerEvent{}, fmt.Errorf("%w: stopClick without stopIndex", ErrBadEvent)
		}
	case EventVenueClick:
		if ev.VenueIndex == nil || *ev.VenueIndex < 0 {
			return MarkerEvent{}, fmt.Errorf("%w: venueClick without venueIndex", ErrBadEvent)
		}
	default:
		return MarkerEvent{}, fmt.Errorf("%w: unknown type %q", ErrBadEvent, ev.Type)
	}
	return ev, nil
}
