package grid

import (
	"confgrid/internal/model"
	"confgrid/internal/timeparse"
)

// eventInset is the vertical padding between a lane edge and its event blocks.
const eventInset = 4

// Tier classifies a vertical gridline for stroke weight.
type Tier string

const (
	TierHour    Tier = "hour"
	TierHalf    Tier = "half"
	TierQuarter Tier = "quarter"
)

// Gridline is one vertical quarter-hour tick.
type Gridline struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Tier  Tier    `json:"tier"`
}

// Lane is one venue row.
type Lane struct {
	Index   int     `json:"index"`
	VenueID string  `json:"venue_id"`
	Label   string  `json:"label"`
	Top     float64 `json:"top"`
	Height  float64 `json:"height"`
}

// Event is the computed rectangle of one schedule item.
type Event struct {
	Title     string  `json:"title"`
	VenueID   string  `json:"venue_id"`
	Lane      int     `json:"lane"`
	Left      float64 `json:"left"`
	Width     float64 `json:"width"`
	Top       float64 `json:"top"`
	Height    float64 `json:"height"`
	StartText string  `json:"start"`
	EndText   string  `json:"end"`
	// TimesValid is false when either timestamp failed to parse and the
	// geometry fell back to a zero offset.
	TimesValid bool `json:"times_valid"`
}

// Layout is the full geometry of one day of the schedule grid.
type Layout struct {
	Day       string     `json:"day"`
	Days      []string   `json:"days"`
	StartHour int        `json:"start_hour"`
	EndHour   int        `json:"end_hour"`
	Hours     []int      `json:"hours"`
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	Grid      Config     `json:"grid"`
	Lanes     []Lane     `json:"lanes"`
	Events    []Event    `json:"events"`
	Gridlines []Gridline `json:"gridlines"`
	// RowLines are the y positions of the horizontal lane separators.
	RowLines []float64 `json:"row_lines"`
}

// Empty reports whether there is nothing to draw for the selected day.
func (l Layout) Empty() bool {
	return len(l.Events) == 0
}

// Classify returns the tier of the quarter tick at index i.
func Classify(i int) Tier {
	switch {
	case i%4 == 0:
		return TierHour
	case i%2 == 0:
		return TierHalf
	default:
		return TierQuarter
	}
}

// Gridlines returns one line per quarter tick between startHour and endHour
// inclusive.
func Gridlines(startHour, endHour int, quarterWidth float64) []Gridline {
	n := (endHour - startHour) * 4
	if n < 0 {
		return nil
	}
	lines := make([]Gridline, 0, n+1)
	for i := 0; i <= n; i++ {
		lines = append(lines, Gridline{
			Index: i,
			X:     float64(i) * quarterWidth,
			Tier:  Classify(i),
		})
	}
	return lines
}

// EndHourFor applies the end-hour policy to the items of one day. With
// ExtendToLatest unset it is simply Config.EndHour.
func (e Engine) EndHourFor(dayItems []model.ScheduleItem) int {
	end := e.Config.EndHour
	if !e.Config.ExtendToLatest {
		return end
	}
	for _, it := range dayItems {
		c, ok := timeparse.ParseClock(it.TimeEnd, e.loc())
		if !ok {
			continue
		}
		end = max(end, c.Hour+1)
	}
	return min(end, 24)
}

// Build lays out day. An empty day selects the first valid day. The returned
// layout has no lanes or events when the day has no items.
func (e Engine) Build(items []model.ScheduleItem, venues []model.Venue, day string) Layout {
	cfg := e.Config
	days := e.Days(items)
	if day == "" && len(days) > 0 {
		day = days[0]
	}

	dayItems := e.ItemsForDay(items, day)
	start := cfg.StartHour
	end := e.EndHourFor(dayItems)

	hours := make([]int, 0, max(0, end-start+1))
	for h := start; h <= end; h++ {
		hours = append(hours, h)
	}

	laneIDs := Lanes(dayItems)
	laneIndex := make(map[string]int, len(laneIDs))
	lanes := make([]Lane, 0, len(laneIDs))
	rowLines := make([]float64, 0, len(laneIDs))
	for i, id := range laneIDs {
		laneIndex[id] = i
		lanes = append(lanes, Lane{
			Index:   i,
			VenueID: id,
			Label:   model.VenueName(venues, id),
			Top:     float64(i) * cfg.RowHeight,
			Height:  cfg.RowHeight,
		})
		rowLines = append(rowLines, float64(i+1)*cfg.RowHeight)
	}

	events := make([]Event, 0, len(dayItems))
	for _, it := range dayItems {
		events = append(events, e.Place(it, laneIndex[it.Venue], start))
	}

	return Layout{
		Day:       day,
		Days:      days,
		StartHour: start,
		EndHour:   end,
		Hours:     hours,
		Width:     float64(end-start) * cfg.HourWidth(),
		Height:    float64(len(lanes)) * cfg.RowHeight,
		Grid:      cfg,
		Lanes:     lanes,
		Events:    events,
		Gridlines: Gridlines(start, end, cfg.QuarterWidth),
		RowLines:  rowLines,
	}
}

// Place computes the rectangle of a single item in lane at originHour.
func (e Engine) Place(it model.ScheduleItem, lane, originHour int) Event {
	cfg := e.Config
	_, okStart := timeparse.ParseClock(it.TimeStart, e.loc())
	_, okEnd := timeparse.ParseClock(it.TimeEnd, e.loc())

	left := e.Offset(it.TimeStart, originHour)
	right := e.Offset(it.TimeEnd, originHour)

	return Event{
		Title:      it.Title,
		VenueID:    it.Venue,
		Lane:       lane,
		Left:       left,
		Width:      max(right-left, cfg.MinEventWidth),
		Top:        float64(lane)*cfg.RowHeight + eventInset,
		Height:     cfg.RowHeight - 2*eventInset,
		StartText:  timeparse.FormatClock(it.TimeStart, e.loc()),
		EndText:    timeparse.FormatClock(it.TimeEnd, e.loc()),
		TimesValid: okStart && okEnd,
	}
}
