// Package ics exports the conference program as an iCalendar feed.
package ics

import (
	"errors"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "confgrid/internal/log"
	"confgrid/internal/model"
	"confgrid/internal/timeparse"
)

// ProductID is written as the calendar PRODID.
const ProductID = "-//confgrid//schedule//EN"

// ErrNoEvents is returned when no schedule item could be exported.
var ErrNoEvents = errors.New("ics: no exportable events")

// uidNamespace scopes generated event UIDs.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:confgrid:schedule"))

// EventUID returns a stable UID for a schedule item. The same title, venue
// and start always map to the same UID, so calendar clients update rather
// than duplicate entries when the feed is re-imported.
func EventUID(it model.ScheduleItem) string {
	key := it.DateGroupKey + "\x00" + it.Venue + "\x00" + it.TimeStart + "\x00" + it.Title
	return uuid.NewSHA1(uidNamespace, []byte(key)).String() + "@confgrid"
}

// Export serializes items into a VCALENDAR. Times are interpreted in loc and
// written in UTC. Items whose start or end cannot be parsed, or that end
// before they start, are skipped.
func Export(items []model.ScheduleItem, venues []model.Venue, loc *time.Location, stamp time.Time) (string, error) {
	if loc == nil {
		loc = time.Local
	}
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	exported, skipped := 0, 0
	for _, it := range items {
		start, err := timeparse.Parse(it.TimeStart, loc)
		if err != nil {
			skipped++
			appLog.Debug("ics export skip: bad start", "title", it.Title, "start", it.TimeStart)
			continue
		}
		end, err := timeparse.Parse(it.TimeEnd, loc)
		if err != nil || end.Before(start) {
			skipped++
			appLog.Debug("ics export skip: bad end", "title", it.Title, "end", it.TimeEnd)
			continue
		}

		ev := cal.AddEvent(EventUID(it))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(it.Title)
		if it.Venue != "" {
			ev.SetLocation(model.VenueName(venues, it.Venue))
		}
		if desc := description(it); desc != "" {
			ev.SetDescription(desc)
		}
		exported++
	}

	if skipped > 0 {
		appLog.Warn("ics export skipped items", "skipped", skipped, "exported", exported)
	}
	if exported == 0 {
		return "", ErrNoEvents
	}
	return cal.Serialize(), nil
}

func description(it model.ScheduleItem) string {
	switch {
	case it.Speaker != "" && it.Description != "":
		return it.Speaker + "\n\n" + it.Description
	case it.Speaker != "":
		return it.Speaker
	default:
		return it.Description
	}
}
