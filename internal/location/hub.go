// Package location shares one user-location feed between all map views.
//
// The Hub is created once by the application root. Map views subscribe to it
// and receive the host commands they need to forward into their document;
// none of them owns the underlying location source.
package location

import (
	"errors"
	"math"
	"sync"
	"time"

	appLog "confgrid/internal/log"
	"confgrid/internal/mapgen"
)

// ErrInvalidFix is returned for out-of-range coordinates.
var ErrInvalidFix = errors.New("location: invalid fix")

// Fix is one position report.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   *float64  `json:"heading,omitempty"`
	At        time.Time `json:"at"`
}

// Hub fans location updates out to subscribers while tracking is enabled.
type Hub struct {
	mu       sync.Mutex
	tracking bool
	last     *Fix
	subs     map[int]chan mapgen.HostCommand
	next     int
	buffer   int
}

// NewHub returns a hub with tracking disabled. buffer is the per-subscriber
// channel capacity; updates to a full subscriber are dropped.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 8
	}
	return &Hub{
		subs:   make(map[int]chan mapgen.HostCommand),
		buffer: buffer,
	}
}

// Subscribe registers a listener. If tracking is on and a fix is known, the
// listener immediately receives the current state.
func (h *Hub) Subscribe() (<-chan mapgen.HostCommand, func()) {
	ch := make(chan mapgen.HostCommand, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	if h.tracking {
		ch <- mapgen.ToggleUserLocation(true)
		if h.last != nil {
			ch <- fixCommand(*h.last)
		}
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(id) })
	}
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of active listeners.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Start enables tracking and tells subscribers to show the user marker.
func (h *Hub) Start() {
	h.setTracking(true)
}

// Stop disables tracking and hides the user marker. The last fix is kept.
func (h *Hub) Stop() {
	h.setTracking(false)
}

// Toggle flips tracking and returns the new state.
func (h *Hub) Toggle() bool {
	h.mu.Lock()
	on := !h.tracking
	h.mu.Unlock()
	h.setTracking(on)
	return on
}

// Tracking reports whether tracking is enabled.
func (h *Hub) Tracking() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracking
}

func (h *Hub) setTracking(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tracking == on {
		return
	}
	h.tracking = on
	appLog.Info("location tracking toggled", "enabled", on, "subscribers", len(h.subs))
	h.broadcastLocked(mapgen.ToggleUserLocation(on))
}

// Update records a fix and forwards it while tracking is enabled. Fixes
// reported while tracking is off are ignored.
func (h *Hub) Update(f Fix) error {
	if !validFix(f) {
		return ErrInvalidFix
	}
	if f.At.IsZero() {
		f.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.tracking {
		return nil
	}
	h.last = &f
	h.broadcastLocked(fixCommand(f))
	return nil
}

// Last returns the most recent fix accepted while tracking.
func (h *Hub) Last() (Fix, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return Fix{}, false
	}
	return *h.last, true
}

func (h *Hub) broadcastLocked(cmd mapgen.HostCommand) {
	for id, ch := range h.subs {
		select {
		case ch <- cmd:
		default:
			appLog.Debug("location subscriber full, dropping update", "subscriber", id, "action", cmd.Action)
		}
	}
}

func fixCommand(f Fix) mapgen.HostCommand {
	return mapgen.UpdateUserLocation(f.Latitude, f.Longitude, f.Heading)
}

func validFix(f Fix) bool {
	if math.IsNaN(f.Latitude) || math.IsNaN(f.Longitude) {
		return false
	}
	if f.Latitude < -90 || f.Latitude > 90 || f.Longitude < -180 || f.Longitude > 180 {
		return false
	}
	if f.Heading != nil && (math.IsNaN(*f.Heading) || *f.Heading < 0 || *f.Heading >= 360) {
		return false
	}
	return true
}
