package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"confgrid/internal/config"
	appLog "confgrid/internal/log"
	"confgrid/internal/sheet"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string

	// conf is loaded by the root command before any subcommand runs.
	conf *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "confgrid",
	Short: "Conference schedule grid, venue maps and exports",
	Long: `confgrid reads a conference schedule from a spreadsheet JSON API and
serves it as a horizontally scrolling timetable, Leaflet venue maps and an
iCalendar feed. The same layout can be printed to a terminal or captured
as a PNG.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		c, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config %s: %w", cfgFile, err)
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		appLog.SetLevel(appLog.ParseLevel(c.LogLevel))
		conf = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "confgrid.yaml", "path to config file (created with defaults if missing)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(),
		newGridCmd(),
		newMapCmd(),
		newICSCmd(),
		newSnapshotCmd(),
		newVersionCmd(),
	)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "confgrid %s\n", version)
		},
	}
}

// newSource returns the spreadsheet client for the loaded config.
func newSource() *sheet.Client {
	return sheet.NewClient(conf.BaseURL, conf.SightseeingURL)
}

// fetchTimeout bounds one-shot commands that load the schedule once.
const fetchTimeout = 30 * time.Second

// writeOutput writes data to path, or to stdout when path is empty or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	appLog.Info("wrote output", "path", path, "bytes", len(data))
	return nil
}
