package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"confgrid/internal/capture"
	appLog "confgrid/internal/log"
	"confgrid/internal/web"
)

func newSnapshotCmd() *cobra.Command {
	var (
		target   string
		output   string
		day      string
		selector string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the schedule page as a PNG with headless Chromium",
		Long: `Capture the schedule page as a PNG. Without --url (or capture.url in the
config) the page is served in-process on a loopback port for the
duration of the capture.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if target == "" {
				target = conf.Capture.URL
			}
			if output == "" {
				output = conf.Capture.Output
			}

			if target == "" {
				base, stop, err := serveLocal(ctx)
				if err != nil {
					return err
				}
				defer stop()
				target = base + "/schedule"
			}
			if day != "" {
				u, err := url.Parse(target)
				if err != nil {
					return fmt.Errorf("capture url: %w", err)
				}
				q := u.Query()
				q.Set("day", day)
				u.RawQuery = q.Encode()
				target = u.String()
			}

			return capture.CaptureSchedulePNG(ctx, capture.Options{
				URL:        target,
				OutputPath: output,
				Width:      conf.Capture.Width,
				Height:     conf.Capture.Height,
				Selector:   selector,
			})
		},
	}

	cmd.Flags().StringVar(&target, "url", "", "page to capture (default: capture.url, else a local server)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG path (default: capture.output)")
	cmd.Flags().StringVar(&day, "day", "", "day key to capture")
	cmd.Flags().StringVar(&selector, "selector", "", "capture only the element matching this CSS selector")
	return cmd
}

// serveLocal starts the web server on a random loopback port with one
// schedule fetch and returns its base URL.
func serveLocal(ctx context.Context) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}

	srv := web.NewServer(conf, web.Options{Source: newSource()})
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	if err := srv.Refresh(fetchCtx); err != nil {
		appLog.Warn("capturing without schedule data", "error", err.Error())
	}
	cancel()

	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("local capture server failed", err)
		}
	}()

	base := "http://" + ln.Addr().String()
	appLog.Info("local capture server started", "url", base)

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}
	return base, stop, nil
}
