package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"confgrid/internal/grid"
	"confgrid/internal/termgrid"
	"confgrid/internal/timeparse"
)

func newGridCmd() *cobra.Command {
	var (
		day     string
		legend  bool
		noColor bool
		cells   int
	)

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Print one day of the schedule grid to the terminal",
		Long: `Print one day of the schedule grid as text. Without --day the current
day is shown when the schedule has it, otherwise the first day.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout)
			defer cancel()

			snap, err := newSource().LoadSchedule(ctx)
			if err != nil {
				return err
			}

			engine := grid.NewEngine(conf.Grid, conf.Location())
			now := time.Now()
			if day == "" {
				day = currentDay(engine, engine.Days(snap.Items), now)
			}

			layout := engine.Build(snap.Items, snap.Venues, day)
			opts := termgrid.Options{
				CellsPerQuarter: cells,
				Legend:          legend,
				Color:           !noColor && isatty.IsTerminal(os.Stdout.Fd()),
			}
			if isToday(engine, layout.Day, now) {
				x := engine.OffsetAt(now, layout.StartHour)
				opts.Now = &x
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), termgrid.Render(layout, opts))
			return err
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day key to print (default: today or the first day)")
	cmd.Flags().BoolVar(&legend, "legend", false, "list each session with times and venue below the grid")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable terminal colors")
	cmd.Flags().IntVar(&cells, "cells", 2, "character cells per quarter hour")
	return cmd
}

// currentDay picks the day key that falls on now's date, or the first day.
func currentDay(e grid.Engine, days []string, now time.Time) string {
	for _, d := range days {
		if isToday(e, d, now) {
			return d
		}
	}
	if len(days) > 0 {
		return days[0]
	}
	return ""
}

func isToday(e grid.Engine, day string, now time.Time) bool {
	at, ok := timeparse.ParseDay(day, e.Location)
	if !ok {
		return false
	}
	y1, m1, d1 := at.In(e.Location).Date()
	y2, m2, d2 := now.In(e.Location).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
