// Package termgrid draws a day of the schedule grid as fixed-width text for
// terminals: one row per venue lane, columns in fractions of a quarter hour.
package termgrid

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"confgrid/internal/grid"
)

const (
	defaultCellsPerQuarter = 2
	defaultLabelWidth      = 14
)

// Options controls terminal rendering.
type Options struct {
	// CellsPerQuarter is the number of character cells per 15 minutes.
	CellsPerQuarter int
	// LabelWidth is the width of the pinned venue column.
	LabelWidth int
	// Now is the current-time offset in grid pixels; nil hides the marker.
	Now *float64
	// Color enables lipgloss styling. Plain output is used for pipes and tests.
	Color bool
	// Legend appends one line per event with its times and venue.
	Legend bool
}

func (o *Options) normalize() {
	if o.CellsPerQuarter <= 0 {
		o.CellsPerQuarter = defaultCellsPerQuarter
	}
	if o.LabelWidth <= 0 {
		o.LabelWidth = defaultLabelWidth
	}
}

type cellKind uint8

const (
	kindBlank cellKind = iota
	kindTick
	kindEvent
	kindNow
)

// row is a line of display cells. A wide rune occupies its cell and leaves
// an empty placeholder in the next one.
type row struct {
	cells []string
	kinds []cellKind
}

func newRow(n int) row {
	r := row{cells: make([]string, n), kinds: make([]cellKind, n)}
	for i := range r.cells {
		r.cells[i] = " "
	}
	return r
}

func (r row) set(i int, s string, k cellKind) {
	if i < 0 || i >= len(r.cells) {
		return
	}
	r.cells[i] = s
	r.kinds[i] = k
}

// put writes text into [pos, pos+width) clipped to the row.
func (r row) put(pos, width int, text string, k cellKind) {
	limit := min(pos+width, len(r.cells))
	i := pos
	for _, ch := range text {
		if i >= limit {
			break
		}
		w := runewidth.RuneWidth(ch)
		if w == 0 {
			continue
		}
		if w == 2 {
			if i+1 >= limit {
				r.set(i, " ", k)
				i++
				break
			}
			r.set(i, string(ch), k)
			r.set(i+1, "", k)
			i += 2
			continue
		}
		r.set(i, string(ch), k)
		i++
	}
	for ; i < limit; i++ {
		r.set(i, " ", k)
	}
}

func (r row) render(st styles) string {
	var b strings.Builder
	start := 0
	for i := 1; i <= len(r.cells); i++ {
		if i < len(r.cells) && r.kinds[i] == r.kinds[start] {
			continue
		}
		b.WriteString(st.apply(r.kinds[start], strings.Join(r.cells[start:i], "")))
		start = i
	}
	return b.String()
}

type styles struct {
	enabled bool
	label   lipgloss.Style
	tick    lipgloss.Style
	event   lipgloss.Style
	now     lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		return styles{}
	}
	return styles{
		enabled: true,
		label:   lipgloss.NewStyle().Bold(true),
		tick:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		event:   lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("25")),
		now:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

func (s styles) apply(k cellKind, text string) string {
	if !s.enabled {
		return text
	}
	switch k {
	case kindTick:
		return s.tick.Render(text)
	case kindEvent:
		return s.event.Render(text)
	case kindNow:
		return s.now.Render(text)
	default:
		return text
	}
}

// Render draws l. Rows are: hour header, quarter ruler, then one row per
// lane. The now marker is a ▼ on the ruler and a vertical bar through free
// cells of every lane.
func Render(l grid.Layout, opts Options) string {
	opts.normalize()

	if len(l.Lanes) == 0 {
		if l.Day == "" {
			return "no schedule data\n"
		}
		return fmt.Sprintf("%s: no sessions\n", l.Day)
	}

	cpq := opts.CellsPerQuarter
	quarters := (l.EndHour - l.StartHour) * 4
	cols := max(0, quarters*cpq)
	cellPx := l.Grid.QuarterWidth / float64(cpq)
	st := newStyles(opts.Color)

	header := newRow(cols)
	for h := l.StartHour; h < l.EndHour; h++ {
		header.put((h-l.StartHour)*4*cpq, 4*cpq, fmt.Sprintf("%02d:00", h), kindBlank)
	}

	ruler := newRow(cols)
	for i := 0; i < quarters; i++ {
		mark := "."
		switch grid.Classify(i) {
		case grid.TierHour:
			mark = "|"
		case grid.TierHalf:
			mark = ":"
		}
		ruler.set(i*cpq, mark, kindTick)
	}

	lanes := make([]row, len(l.Lanes))
	for i := range lanes {
		lanes[i] = newRow(cols)
		for h := 0; h < quarters; h += 4 {
			lanes[i].set(h*cpq, ".", kindTick)
		}
	}
	for _, ev := range l.Events {
		if ev.Lane < 0 || ev.Lane >= len(lanes) {
			continue
		}
		from := max(0, int(math.Floor(ev.Left/cellPx)))
		to := min(cols, int(math.Ceil((ev.Left+ev.Width)/cellPx)))
		if to <= from {
			continue
		}
		lanes[ev.Lane].put(from, to-from, eventText(ev.Title, to-from), kindEvent)
	}

	if opts.Now != nil && cellPx > 0 {
		col := int(math.Floor(*opts.Now / cellPx))
		if col >= 0 && col < cols {
			ruler.set(col, "▼", kindNow)
			for _, r := range lanes {
				if r.kinds[col] != kindEvent {
					r.set(col, "│", kindNow)
				}
			}
		}
	}

	label := func(s string) string {
		cell := runewidth.FillRight(runewidth.Truncate(s, opts.LabelWidth, "…"), opts.LabelWidth) + " "
		if st.enabled {
			return st.label.Render(cell)
		}
		return cell
	}

	lines := make([]string, 0, len(lanes)+2+len(l.Events))
	lines = append(lines, label(l.Day)+header.render(st))
	lines = append(lines, label("")+ruler.render(st))
	for i, r := range lanes {
		lines = append(lines, label(l.Lanes[i].Label)+r.render(st))
	}

	if opts.Legend {
		lines = append(lines, "")
		for _, ev := range l.Events {
			venue := ev.VenueID
			if ev.Lane >= 0 && ev.Lane < len(l.Lanes) {
				venue = l.Lanes[ev.Lane].Label
			}
			lines = append(lines, fmt.Sprintf("%s-%s  %s @ %s", ev.StartText, ev.EndText, ev.Title, venue))
		}
	}

	return strings.Join(lines, "\n") + "\n"
}

// eventText frames title to exactly w cells.
func eventText(title string, w int) string {
	switch {
	case w <= 0:
		return ""
	case w == 1:
		return "▌"
	case w == 2:
		return "[]"
	}
	inner := runewidth.Truncate(title, w-2, "…")
	return "[" + runewidth.FillRight(inner, w-2) + "]"
}
