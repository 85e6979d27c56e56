package grid

import (
	"errors"
	"fmt"
)

// Defaults mirror the mobile app's schedule grid.
const (
	DefaultQuarterWidth     = 80
	DefaultVenueColumnWidth = 120
	DefaultRowHeight        = 80
	DefaultStartHour        = 7
	DefaultEndHour          = 24
	DefaultMinEventWidth    = 60
)

// Config holds the fixed geometry of the schedule grid.
type Config struct {
	// QuarterWidth is the width in pixels of 15 minutes.
	QuarterWidth float64 `yaml:"quarter_width" json:"quarter_width"`
	// VenueColumnWidth is the width of the pinned venue label column.
	VenueColumnWidth float64 `yaml:"venue_column_width" json:"venue_column_width"`
	// RowHeight is the height of one venue lane.
	RowHeight float64 `yaml:"row_height" json:"row_height"`
	// StartHour is the grid origin hour (leftmost tick).
	StartHour int `yaml:"start_hour" json:"start_hour"`
	// EndHour is the last hour tick.
	EndHour int `yaml:"end_hour" json:"end_hour"`
	// MinEventWidth keeps very short events legible and tappable.
	MinEventWidth float64 `yaml:"min_event_width" json:"min_event_width"`
	// ExtendToLatest widens EndHour to cover the latest event end of the
	// selected day. Off by default: the grid always ends at EndHour.
	ExtendToLatest bool `yaml:"extend_to_latest" json:"extend_to_latest"`
}

// DefaultConfig returns the stock grid geometry.
func DefaultConfig() Config {
	return Config{
		QuarterWidth:     DefaultQuarterWidth,
		VenueColumnWidth: DefaultVenueColumnWidth,
		RowHeight:        DefaultRowHeight,
		StartHour:        DefaultStartHour,
		EndHour:          DefaultEndHour,
		MinEventWidth:    DefaultMinEventWidth,
	}
}

// HourWidth is four quarters.
func (c Config) HourWidth() float64 {
	return c.QuarterWidth * 4
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.QuarterWidth <= 0 {
		c.QuarterWidth = d.QuarterWidth
	}
	if c.VenueColumnWidth <= 0 {
		c.VenueColumnWidth = d.VenueColumnWidth
	}
	if c.RowHeight <= 0 {
		c.RowHeight = d.RowHeight
	}
	if c.EndHour == 0 && c.StartHour == 0 {
		c.StartHour = d.StartHour
	}
	if c.EndHour == 0 {
		c.EndHour = d.EndHour
	}
	if c.MinEventWidth < 0 {
		c.MinEventWidth = 0
	}
}

// Validate checks the grid invariants.
func (c Config) Validate() error {
	if c.QuarterWidth <= 0 {
		return errors.New("grid: quarter_width must be > 0")
	}
	if c.RowHeight <= 0 {
		return errors.New("grid: row_height must be > 0")
	}
	if c.StartHour < 0 || c.StartHour > 24 {
		return fmt.Errorf("grid: start_hour %d out of range 0..24", c.StartHour)
	}
	if c.EndHour < 0 || c.EndHour > 24 {
		return fmt.Errorf("grid: end_hour %d out of range 0..24", c.EndHour)
	}
	if c.EndHour < c.StartHour {
		return fmt.Errorf("grid: end_hour %d before start_hour %d", c.EndHour, c.StartHour)
	}
	return nil
}
