// Package live keeps the "now" marker of the schedule grid up to date and
// decides the one-shot auto-scroll that centers it after layout.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"confgrid/internal/grid"
	appLog "confgrid/internal/log"
)

// RefreshSpec is the recompute period of the marker.
const RefreshSpec = "@every 1m"

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// Update is delivered to subscribers whenever the marker moves.
type Update struct {
	Offset float64   `json:"offset"`
	At     time.Time `json:"at"`
}

// Indicator tracks the x offset of the current time on a grid whose origin
// may change when the selected day changes.
type Indicator struct {
	clock Clock

	mu       sync.Mutex
	engine   grid.Engine
	origin   int
	offset   float64
	at       time.Time
	scrolled bool
	sched    *cron.Cron
	stopped  chan struct{}
	subs     map[int]chan Update
	nextSub  int
}

// NewIndicator returns a stopped indicator for engine. A nil clock means
// time.Now.
func NewIndicator(engine grid.Engine, clock Clock) *Indicator {
	if clock == nil {
		clock = time.Now
	}
	return &Indicator{
		engine: engine,
		clock:  clock,
		origin: engine.Config.StartHour,
		subs:   make(map[int]chan Update),
	}
}

// Start computes the offset immediately and then every minute until Stop or
// ctx cancellation. Calling Start on a running indicator is a no-op.
func (ind *Indicator) Start(ctx context.Context) error {
	ind.mu.Lock()
	if ind.sched != nil {
		ind.mu.Unlock()
		return nil
	}
	sched := cron.New()
	if _, err := sched.AddFunc(RefreshSpec, ind.Tick); err != nil {
		ind.mu.Unlock()
		return err
	}
	stopped := make(chan struct{})
	ind.sched = sched
	ind.stopped = stopped
	sched.Start()
	ind.mu.Unlock()

	ind.Tick()
	appLog.Debug("live indicator started", "origin", ind.Origin())

	go func() {
		select {
		case <-ctx.Done():
			ind.Stop()
		case <-stopped:
		}
	}()
	return nil
}

// Stop cancels the recurring recompute and waits for a running tick to
// finish. Safe to call repeatedly.
func (ind *Indicator) Stop() {
	ind.mu.Lock()
	sched, stopped := ind.sched, ind.stopped
	ind.sched, ind.stopped = nil, nil
	ind.mu.Unlock()

	if sched == nil {
		return
	}
	close(stopped)
	<-sched.Stop().Done()
	appLog.Debug("live indicator stopped")
}

// SetEngine replaces the grid geometry after a config reload. The origin
// moves to the new start hour, the one-shot scroll is re-armed and
// subscribers get a fresh offset. A running schedule keeps running.
func (ind *Indicator) SetEngine(engine grid.Engine) {
	ind.mu.Lock()
	ind.engine = engine
	ind.origin = engine.Config.StartHour
	ind.scrolled = false
	ind.mu.Unlock()

	ind.Tick()
}

// Running reports whether the recurring recompute is scheduled.
func (ind *Indicator) Running() bool {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return ind.sched != nil
}

// SelectDay handles a day-tab change: the timer is torn down, the grid
// origin replaced, the auto-scroll re-armed and the timer restarted if it
// was running.
func (ind *Indicator) SelectDay(ctx context.Context, originHour int) error {
	wasRunning := ind.Running()
	ind.Stop()

	ind.mu.Lock()
	ind.origin = originHour
	ind.scrolled = false
	ind.mu.Unlock()

	if wasRunning {
		return ind.Start(ctx)
	}
	ind.Tick()
	return nil
}

// Tick recomputes the offset from the clock and notifies subscribers.
func (ind *Indicator) Tick() {
	now := ind.clock()

	ind.mu.Lock()
	ind.offset = ind.engine.OffsetAt(now, ind.origin)
	ind.at = now
	u := Update{Offset: ind.offset, At: now}
	subs := make([]chan Update, 0, len(ind.subs))
	for _, ch := range ind.subs {
		subs = append(subs, ch)
	}
	ind.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- u:
		default:
			// Slow subscriber; it will see the next tick.
		}
	}
}

// Offset returns the last computed x position of "now".
func (ind *Indicator) Offset() float64 {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return ind.offset
}

// Snapshot returns the last update.
func (ind *Indicator) Snapshot() Update {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return Update{Offset: ind.offset, At: ind.at}
}

// Origin returns the current grid origin hour.
func (ind *Indicator) Origin() int {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	return ind.origin
}

// LayoutReady is called once the scrollable content has been measured. The
// first call after start or a day change returns the scroll position that
// centers "now" in a viewport of viewportWidth; later calls return false so
// that user scrolling is left alone.
func (ind *Indicator) LayoutReady(viewportWidth float64) (float64, bool) {
	now := ind.clock()

	ind.mu.Lock()
	defer ind.mu.Unlock()
	if ind.scrolled {
		return 0, false
	}
	ind.scrolled = true
	return grid.ScrollTarget(ind.engine.OffsetAt(now, ind.origin), viewportWidth), true
}

// Subscribe returns a channel receiving marker updates and a function that
// removes the subscription.
func (ind *Indicator) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)

	ind.mu.Lock()
	id := ind.nextSub
	ind.nextSub++
	ind.subs[id] = ch
	ind.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			ind.mu.Lock()
			delete(ind.subs, id)
			ind.mu.Unlock()
		})
	}
}
