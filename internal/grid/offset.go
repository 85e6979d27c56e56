package grid

import (
	"time"

	appLog "confgrid/internal/log"
	"confgrid/internal/timeparse"
)

// Engine turns schedule times into horizontal pixel positions and lays out
// day grids. It is a value type; copies are independent.
type Engine struct {
	Config Config
	// Location is the display timezone used to read time-of-day from
	// timestamps. Nil means time.Local.
	Location *time.Location
}

// NewEngine returns an Engine for cfg in loc.
func NewEngine(cfg Config, loc *time.Location) Engine {
	if loc == nil {
		loc = time.Local
	}
	return Engine{Config: cfg, Location: loc}
}

func (e Engine) loc() *time.Location {
	if e.Location == nil {
		return time.Local
	}
	return e.Location
}

// Offset maps a timestamp string to its x position relative to originHour:
//
//	((hour*60 + minute) - originHour*60) / 15 * quarterWidth
//
// Times before the origin give negative offsets. Unparseable input yields 0.
func (e Engine) Offset(timeStr string, originHour int) float64 {
	c, ok := timeparse.ParseClock(timeStr, e.loc())
	if !ok {
		appLog.Debug("grid offset: unparseable time, using 0", "value", timeStr)
		return 0
	}
	return e.clockOffset(c, originHour)
}

// OffsetAt is Offset for an already-parsed instant, read in the engine's
// display timezone.
func (e Engine) OffsetAt(t time.Time, originHour int) float64 {
	return e.clockOffset(timeparse.ClockOf(t.In(e.loc())), originHour)
}

func (e Engine) clockOffset(c timeparse.Clock, originHour int) float64 {
	minutes := float64(c.Minutes() - originHour*60)
	return minutes / 15 * e.Config.QuarterWidth
}

// ClampOffset limits x to [0, width] for display.
func ClampOffset(x, width float64) float64 {
	if x < 0 {
		return 0
	}
	if x > width {
		return width
	}
	return x
}

// ScrollTarget centers x in a viewport of the given width without scrolling
// past the left edge.
func ScrollTarget(x, viewportWidth float64) float64 {
	return max(0, x-viewportWidth/2)
}
