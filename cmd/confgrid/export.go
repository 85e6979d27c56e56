package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"confgrid/internal/ics"
	"confgrid/internal/mapgen"
	"confgrid/internal/web"
)

func newMapCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:       "map venues|sightseeing|tour",
		Short:     "Write a standalone Leaflet map document",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{web.MapVenues, web.MapSightseeing, web.MapTour},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout)
			defer cancel()

			kind := args[0]
			src := newSource()

			var (
				points []mapgen.Point
				track  []mapgen.Point
			)
			switch kind {
			case web.MapVenues:
				venues, err := src.Venues(ctx)
				if err != nil {
					return err
				}
				points = web.VenuePoints(venues)
			case web.MapSightseeing:
				spots, err := src.Sightseeing(ctx)
				if err != nil {
					return err
				}
				points = web.SightseeingPoints(spots)
			case web.MapTour:
				stops, err := src.TourStops(ctx)
				if err != nil {
					return err
				}
				points = web.TourPoints(stops)
				route, err := loadRoute(conf.Map.Route)
				if err != nil {
					return fmt.Errorf("tour route: %w", err)
				}
				track = route
			default:
				return fmt.Errorf("unknown map %q (want venues, sightseeing or tour)", kind)
			}

			doc, err := web.RenderMap(conf, kind, points, track, false)
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, []byte(doc))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newICSCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Export the schedule as an iCalendar file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout)
			defer cancel()

			snap, err := newSource().LoadSchedule(ctx)
			if err != nil {
				return err
			}
			body, err := ics.Export(snap.Items, snap.Venues, conf.Location(), time.Now())
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, []byte(body))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
