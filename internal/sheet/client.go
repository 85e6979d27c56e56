// Package sheet fetches conference data from the spreadsheet-backed JSON API
// (one GET endpoint per sheet, each returning a JSON array of rows).
//
// Rows are validated at this boundary: rows missing required columns are
// dropped and counted, everything else is converted into internal/model
// types. There is no retry and no cache; callers decide how to degrade.
package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "confgrid/internal/log"
	"confgrid/internal/model"
)

// ErrFetch is wrapped by every network or status failure.
var ErrFetch = errors.New("sheet: fetch failed")

// maxBody bounds a single sheet response.
const maxBody = 8 << 20

// Client talks to the sheet API rooted at BaseURL.
type Client struct {
	baseURL        string
	sightseeingURL string
	client         *http.Client
}

// NewClient creates a Client. sightseeingURL overrides the sightseeing
// endpoint (that sheet lives in a separate document); empty means
// BaseURL + "/sightseeing".
func NewClient(baseURL, sightseeingURL string) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		sightseeingURL: sightseeingURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

func (c *Client) sheetURL(name string) string {
	return c.baseURL + "/" + name
}

// Schedule fetches the program rows.
func (c *Client) Schedule(ctx context.Context) ([]model.ScheduleItem, error) {
	return fetchRows(ctx, c, "schedule", c.sheetURL("schedule"), rawScheduleItem.toModel)
}

// Venues fetches the venue rows.
func (c *Client) Venues(ctx context.Context) ([]model.Venue, error) {
	return fetchRows(ctx, c, "venues", c.sheetURL("venues"), rawPlace.toVenue)
}

// Faq fetches the FAQ rows.
func (c *Client) Faq(ctx context.Context) ([]model.FaqItem, error) {
	return fetchRows(ctx, c, "faq", c.sheetURL("faq"), rawFaq.toModel)
}

// Speakers fetches the speaker rows.
func (c *Client) Speakers(ctx context.Context) ([]model.Speaker, error) {
	return fetchRows(ctx, c, "speakers", c.sheetURL("speakers"), rawSpeaker.toModel)
}

// Sightseeing fetches the sightseeing rows.
func (c *Client) Sightseeing(ctx context.Context) ([]model.Sightseeing, error) {
	u := c.sightseeingURL
	if u == "" {
		u = c.sheetURL("sightseeing")
	}
	return fetchRows(ctx, c, "sightseeing", u, rawPlace.toSightseeing)
}

// TourStops fetches the audio tour stops.
func (c *Client) TourStops(ctx context.Context) ([]model.TourStop, error) {
	return fetchRows(ctx, c, "tour", c.sheetURL("tour"), rawTourStop.toModel)
}

// Snapshot is one consistent fetch of the data the schedule grid needs.
type Snapshot struct {
	Items     []model.ScheduleItem
	Venues    []model.Venue
	FetchedAt time.Time
}

// LoadSchedule fetches schedule and venues concurrently. Either failure
// fails the whole load.
func (c *Client) LoadSchedule(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := c.Schedule(gctx)
		snap.Items = items
		return err
	})
	g.Go(func() error {
		venues, err := c.Venues(gctx)
		snap.Venues = venues
		return err
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.FetchedAt = time.Now()
	return snap, nil
}

func fetchRows[R any, M any](ctx context.Context, c *Client, kind, url string, convert func(R) (M, string)) ([]M, error) {
	var rows []R
	if err := c.getJSON(ctx, url, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	out := make([]M, 0, len(rows))
	dropped := 0
	for i, r := range rows {
		m, reason := convert(r)
		if reason != "" {
			dropped++
			appLog.Debug("sheet row rejected", "sheet", kind, "row", i, "reason", reason)
			continue
		}
		out = append(out, m)
	}
	if dropped > 0 {
		appLog.Warn("sheet rows dropped during validation", "sheet", kind, "dropped", dropped, "kept", len(out))
	}
	appLog.Info("sheet fetch success", "sheet", kind, "rows", len(out))
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	appLog.Debug("sheet fetch start", "url", redactURL(url))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return fmt.Errorf("%w: %s", ErrFetch, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrFetch, err)
	}
	return nil
}

// redactURL hides the path and query of a sheet URL for logging; the sheet
// document id is effectively a credential.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "sheet://...(redacted)"
	}
	j := strings.IndexByte(u[i+3:], '/')
	if j == -1 {
		return u
	}
	return u[:i+3+j] + redactedSuffix
}
