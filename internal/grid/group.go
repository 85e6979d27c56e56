package grid

import (
	"sort"
	"time"

	"confgrid/internal/model"
	"confgrid/internal/timeparse"
)

// Days returns the distinct day keys of items that parse as dates, sorted
// chronologically. Keys naming the same instant in different spellings stay
// separate tabs and are ordered by their raw text.
func (e Engine) Days(items []model.ScheduleItem) []string {
	type day struct {
		key string
		at  time.Time
	}

	seen := make(map[string]bool)
	days := make([]day, 0)
	for _, it := range items {
		if seen[it.DateGroupKey] {
			continue
		}
		seen[it.DateGroupKey] = true

		at, ok := timeparse.ParseDay(it.DateGroupKey, e.loc())
		if !ok {
			continue
		}
		days = append(days, day{key: it.DateGroupKey, at: at})
	}

	sort.Slice(days, func(i, j int) bool {
		if !days[i].at.Equal(days[j].at) {
			return days[i].at.Before(days[j].at)
		}
		return days[i].key < days[j].key
	})

	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.key
	}
	return out
}

// ItemsForDay returns the items grouped under day, in input order. A day key
// that is not a valid date returns nothing, so items the day tabs cannot
// show never reach the grid either.
func (e Engine) ItemsForDay(items []model.ScheduleItem, day string) []model.ScheduleItem {
	if _, ok := timeparse.ParseDay(day, e.loc()); !ok {
		return nil
	}
	out := make([]model.ScheduleItem, 0)
	for _, it := range items {
		if it.DateGroupKey == day {
			out = append(out, it)
		}
	}
	return out
}

// Lanes returns the venue ids of dayItems in first-seen order.
func Lanes(dayItems []model.ScheduleItem) []string {
	seen := make(map[string]bool)
	lanes := make([]string, 0)
	for _, it := range dayItems {
		if seen[it.Venue] {
			continue
		}
		seen[it.Venue] = true
		lanes = append(lanes, it.Venue)
	}
	return lanes
}
