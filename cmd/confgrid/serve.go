package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"confgrid/internal/config"
	"confgrid/internal/gpx"
	"confgrid/internal/location"
	appLog "confgrid/internal/log"
	"confgrid/internal/mapgen"
	"confgrid/internal/sheet"
	"confgrid/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		listen string
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schedule grid, maps and JSON API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if listen != "" {
				conf.Listen = listen
			}
			if conf.BaseURL == "" {
				appLog.Warn("base_url is empty; pages will show the empty state", "config", cfgFile)
			}

			appLog.Info("effective config",
				"listen", conf.Listen,
				"timezone", conf.Timezone,
				"refresh", conf.RefreshCron,
				"start_hour", conf.Grid.StartHour,
				"end_hour", conf.Grid.EndHour,
				"watch", watch,
			)

			route, err := loadRoute(conf.Map.Route)
			if err != nil {
				appLog.Error("tour route not loaded", err, "route", conf.Map.Route)
			}

			srv := web.NewServer(conf, web.Options{
				NewSource: func(c *config.Config) web.Source {
					return sheet.NewClient(c.BaseURL, c.SightseeingURL)
				},
				Hub:   location.NewHub(0),
				Route: route,
			})

			if watch {
				go func() {
					err := config.Watch(ctx, cfgFile, func(c *config.Config) {
						if listen != "" {
							c.Listen = listen
						}
						srv.SetConfig(c)
					})
					if err != nil {
						appLog.Error("config watch stopped", err, "config", cfgFile)
					}
				}()
			}

			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			appLog.Info("confgrid exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the config file when it changes")
	return cmd
}

// loadRoute reads the GPX track for the tour map. An empty path means no
// route.
func loadRoute(path string) ([]mapgen.Point, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	points, err := gpx.Parse(f)
	if err != nil {
		return nil, err
	}
	appLog.Info("tour route loaded", "route", path, "points", len(points))
	return points, nil
}
