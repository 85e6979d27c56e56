package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"confgrid/internal/config"
	"confgrid/internal/location"
	"confgrid/internal/mapgen"
	"confgrid/internal/model"
	"confgrid/internal/sheet"
)

var errDown = errors.New("sheet down")

type fakeSource struct {
	snap     sheet.Snapshot
	snapErr  error
	faq      []model.FaqItem
	faqErr   error
	speakers []model.Speaker
	spots    []model.Sightseeing
	stops    []model.TourStop
}

func (f *fakeSource) LoadSchedule(context.Context) (sheet.Snapshot, error) {
	return f.snap, f.snapErr
}
func (f *fakeSource) Faq(context.Context) ([]model.FaqItem, error) { return f.faq, f.faqErr }
func (f *fakeSource) Speakers(context.Context) ([]model.Speaker, error) {
	return f.speakers, nil
}
func (f *fakeSource) Sightseeing(context.Context) ([]model.Sightseeing, error) {
	return f.spots, nil
}
func (f *fakeSource) TourStops(context.Context) ([]model.TourStop, error) { return f.stops, nil }

func ptr(v float64) *float64 { return &v }

func sampleSource() *fakeSource {
	return &fakeSource{
		snap: sheet.Snapshot{
			Items: []model.ScheduleItem{
				{Title: "Opening Keynote", Venue: "main", TimeStart: "2024-01-01 09:00:00", TimeEnd: "2024-01-01 10:30:00", DateGroupKey: "2024-01-01"},
				{Title: "<b>Workshop</b>", Venue: "lab", TimeStart: "2024-01-01 11:00:00", TimeEnd: "2024-01-01 12:00:00", DateGroupKey: "2024-01-01"},
				{Title: "Closing", Venue: "main", TimeStart: "01/02/2024 16:00:00", TimeEnd: "01/02/2024 17:00:00", DateGroupKey: "2024-01-02"},
			},
			Venues: []model.Venue{
				{ID: "main", Name: "Main Hall", Latitude: ptr(48.2), Longitude: ptr(16.37)},
				{ID: "lab", Name: "Lab"},
			},
			FetchedAt: time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC),
		},
		faq: []model.FaqItem{
			{Title: "Wifi?", Category: "Venue"},
			{Title: "Tickets?"},
		},
		speakers: []model.Speaker{{ID: "1", Name: "Ada"}},
		spots:    []model.Sightseeing{{Name: "Cathedral", Latitude: ptr(48.2085), Longitude: ptr(16.3731)}},
		stops: []model.TourStop{
			{ID: "a", Title: "Gate", Latitude: 48.1, Longitude: 16.1},
			{ID: "b", Title: "Tower", Latitude: 48.2, Longitude: 16.2},
		},
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Normalize()
	return cfg
}

// 10:00 on the first day: 3 hours past the 07:00 origin.
func fixedClock() time.Time {
	return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, src Source) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(testConfig(), Options{Source: src, Clock: fixedClock})
	// A failed refresh is part of the state under test.
	_ = s.Refresh(context.Background())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func getBody(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", url, err)
	}
	return resp, string(b)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())
	resp, body := getBody(t, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK || body != "OK" {
		t.Errorf("health = %d %q", resp.StatusCode, body)
	}
}

func TestDays(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())
	var out daysResponse
	getJSON(t, ts.URL+"/api/days", &out)
	if len(out.Days) != 2 || out.Days[0] != "2024-01-01" || out.Days[1] != "2024-01-02" {
		t.Errorf("days = %v", out.Days)
	}
	if out.Error != "" {
		t.Errorf("unexpected error note %q", out.Error)
	}
}

func TestLayout(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())

	var out layoutResponse
	getJSON(t, ts.URL+"/api/layout?day=2024-01-01&viewport=400", &out)

	if out.Day != "2024-01-01" || len(out.Events) != 2 || len(out.Lanes) != 2 {
		t.Fatalf("layout = %+v", out.Layout)
	}
	if out.Events[0].Left != 640 || out.Events[0].Width != 480 {
		t.Errorf("keynote = %+v", out.Events[0])
	}
	if out.Lanes[0].Label != "Main Hall" {
		t.Errorf("lane label = %q", out.Lanes[0].Label)
	}
	if out.Now != 960 {
		t.Errorf("now = %v, want 960", out.Now)
	}
	if out.ScrollTo != 760 {
		t.Errorf("scroll_to = %v, want 760", out.ScrollTo)
	}
}

func TestLayoutDefaultsToFirstDay(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())
	var out layoutResponse
	getJSON(t, ts.URL+"/api/layout", &out)
	if out.Day != "2024-01-01" {
		t.Errorf("day = %q", out.Day)
	}
}

func TestLayoutDegradesOnFetchFailure(t *testing.T) {
	src := &fakeSource{snapErr: errDown}
	_, ts := newTestServer(t, src)

	var out layoutResponse
	resp := getJSON(t, ts.URL+"/api/layout", &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(out.Events) != 0 || !strings.Contains(out.Error, "sheet down") {
		t.Errorf("layout = %+v", out)
	}
}

func TestNow(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())
	var out nowResponse
	getJSON(t, ts.URL+"/api/now?viewport=200", &out)
	if out.Offset != 960 || out.Origin != 7 || out.ScrollTo != 860 {
		t.Errorf("now = %+v", out)
	}
}

func postReady(t *testing.T, url string) readyResponse {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out readyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestLayoutReadyFiresOncePerDay(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())
	base := ts.URL + "/api/layout/ready?viewport=400&day="

	first := postReady(t, base+"2024-01-01")
	if !first.Fired || first.ScrollTo != 760 {
		t.Fatalf("first = %+v, want fired scroll 760", first)
	}
	if again := postReady(t, base+"2024-01-01"); again.Fired {
		t.Errorf("second call on same day fired: %+v", again)
	}
	if next := postReady(t, base+"2024-01-02"); !next.Fired || next.Day != "2024-01-02" {
		t.Errorf("day change = %+v, want fired", next)
	}
}

func TestLayoutReadyDefaultsToFirstDay(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())
	out := postReady(t, ts.URL+"/api/layout/ready")
	if out.Day != "2024-01-01" || !out.Fired {
		t.Errorf("out = %+v", out)
	}
}

func TestSchedulePage(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())
	resp, body := getBody(t, ts.URL+"/schedule?day=2024-01-01")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
	}
	for _, want := range []string{
		`data-ready`,
		`Opening Keynote`,
		`&lt;b&gt;Workshop&lt;/b&gt;`,
		`left: 640px`,
		`class="active"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "<b>Workshop</b>") {
		t.Error("title was not escaped")
	}
}

func TestSchedulePageEmpty(t *testing.T) {
	_, ts := newTestServer(t, &fakeSource{snapErr: errDown})
	_, body := getBody(t, ts.URL+"/schedule")
	if !strings.Contains(body, `data-ready="true"`) || !strings.Contains(body, "No sessions scheduled") {
		t.Errorf("empty page body:\n%s", body)
	}
}

func TestScheduleICS(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())
	resp, body := getBody(t, ts.URL+"/schedule.ics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/calendar") {
		t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
	}
	if n := strings.Count(body, "BEGIN:VEVENT"); n != 3 {
		t.Errorf("events = %d", n)
	}

	_, down := newTestServer(t, &fakeSource{snapErr: errDown})
	if resp, _ := getBody(t, down.URL+"/schedule.ics"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status on failure = %d", resp.StatusCode)
	}
}

func TestContentEndpoints(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())

	var faq faqResponse
	getJSON(t, ts.URL+"/api/faq", &faq)
	if len(faq.Sections) != 2 || faq.Sections[1].Category != "General" {
		t.Errorf("faq = %+v", faq)
	}

	var speakers listResponse[model.Speaker]
	getJSON(t, ts.URL+"/api/speakers", &speakers)
	if len(speakers.Items) != 1 || speakers.Items[0].Name != "Ada" {
		t.Errorf("speakers = %+v", speakers)
	}

	var venues listResponse[model.Venue]
	getJSON(t, ts.URL+"/api/venues", &venues)
	if len(venues.Items) != 2 {
		t.Errorf("venues = %+v", venues)
	}
}

func TestFaqDegrades(t *testing.T) {
	src := sampleSource()
	src.faqErr = errDown
	_, ts := newTestServer(t, src)

	var faq faqResponse
	resp := getJSON(t, ts.URL+"/api/faq", &faq)
	if resp.StatusCode != http.StatusOK || len(faq.Sections) != 0 || faq.Error == "" {
		t.Errorf("faq = %d %+v", resp.StatusCode, faq)
	}
}

func TestMaps(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())

	_, venues := getBody(t, ts.URL+"/map/venues")
	if !strings.Contains(venues, "Main Hall") || !strings.Contains(venues, mapgen.EventVenueClick) {
		t.Errorf("venue map missing content")
	}
	if strings.Contains(venues, `"Lab"`) {
		t.Errorf("venue without coordinates should not be plotted")
	}

	_, tour := getBody(t, ts.URL+"/map/tour")
	if !strings.Contains(tour, mapgen.EventStopClick) || !strings.Contains(tour, "Tower") {
		t.Errorf("tour map missing content")
	}

	resp, spots := getBody(t, ts.URL+"/map/sightseeing")
	if resp.StatusCode != http.StatusOK || !strings.Contains(spots, "Cathedral") {
		t.Errorf("sightseeing map = %d", resp.StatusCode)
	}
}

func TestVenueMapSkipsInvalidCoordinates(t *testing.T) {
	src := sampleSource()
	src.snap.Venues = append(src.snap.Venues,
		model.Venue{ID: "typo", Name: "Typo Hall", Latitude: ptr(482), Longitude: ptr(16.3)},
	)
	src.spots = append(src.spots, model.Sightseeing{Name: "Nowhere", Latitude: ptr(48.2), Longitude: ptr(-200)})
	_, ts := newTestServer(t, src)

	resp, body := getBody(t, ts.URL+"/map/venues")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("venue map status = %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "Main Hall") || strings.Contains(body, "Typo Hall") {
		t.Errorf("venue map should plot Main Hall only")
	}

	resp, body = getBody(t, ts.URL+"/map/sightseeing")
	if resp.StatusCode != http.StatusOK || strings.Contains(body, "Nowhere") {
		t.Errorf("sightseeing map = %d, invalid spot plotted: %v", resp.StatusCode, strings.Contains(body, "Nowhere"))
	}
}

func TestTourPoints(t *testing.T) {
	points := TourPoints(sampleSource().stops)
	if len(points) != 2 || points[0].Label != "1" || points[1].Label != "2" {
		t.Errorf("points = %+v", points)
	}
}

func TestMapEvent(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())

	resp, err := http.Post(ts.URL+"/api/map/events", "application/json",
		strings.NewReader(`{"type":"stopClick","stopIndex":1,"stop":{"id":"b"}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var out mapEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Index != 1 || out.Command.Action != mapgen.ActionSetActiveMarker || *out.Command.Index != 1 {
		t.Errorf("out = %+v", out)
	}

	bad, err := http.Post(ts.URL+"/api/map/events", "application/json", strings.NewReader(`{"type":"nope"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("bad event status = %d", bad.StatusCode)
	}
}

func TestLocationFlow(t *testing.T) {
	_, ts := newTestServer(t, sampleSource())

	resp, err := http.Post(ts.URL+"/api/location/toggle", "application/json", nil)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	var state locationResponse
	_ = json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if !state.Tracking {
		t.Fatal("toggle should enable tracking")
	}

	resp, err = http.Post(ts.URL+"/api/location", "application/json", strings.NewReader(`{"latitude":48.2,"longitude":16.37,"heading":90}`))
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("fix status = %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/location", "application/json", strings.NewReader(`{"latitude":148.2,"longitude":16.37}`))
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid fix status = %d", resp.StatusCode)
	}

	getJSON(t, ts.URL+"/api/location", &state)
	if !state.Tracking || state.Last == nil || state.Last.Latitude != 48.2 || !state.Last.At.Equal(fixedClock()) {
		t.Errorf("state = %+v", state)
	}

	resp, err = http.Post(ts.URL+"/api/location/toggle", "application/json", strings.NewReader(`{"enable":false}`))
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	_ = json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if state.Tracking {
		t.Error("explicit disable ignored")
	}
}

func TestLocationStream(t *testing.T) {
	hub := location.NewHub(4)
	s := NewServer(testConfig(), Options{Source: sampleSource(), Hub: hub, Clock: fixedClock})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/location/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	hub.Start()

	sc := bufio.NewScanner(resp.Body)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
		if data != "" {
			break
		}
	}
	if event != "command" {
		t.Fatalf("event = %q", event)
	}
	var cmd mapgen.HostCommand
	if err := json.Unmarshal([]byte(data), &cmd); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	if cmd.Action != mapgen.ActionToggleUserLocation || cmd.Enable == nil || !*cmd.Enable {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestSetConfigChangesGeometry(t *testing.T) {
	s, ts := newTestServer(t, sampleSource())

	cfg := testConfig()
	cfg.Grid.QuarterWidth = 40
	s.SetConfig(cfg)

	var out layoutResponse
	getJSON(t, ts.URL+"/api/layout?day=2024-01-01", &out)
	if out.Events[0].Left != 320 {
		t.Errorf("keynote left = %v, want 320", out.Events[0].Left)
	}
	if out.Now != 480 {
		t.Errorf("now = %v, want 480", out.Now)
	}
}

func TestSetConfigKeepsNowSubscribers(t *testing.T) {
	s, _ := newTestServer(t, sampleSource())
	_, _, before := s.current()
	ch, cancel := before.Subscribe()
	defer cancel()

	cfg := testConfig()
	cfg.Grid.QuarterWidth = 40
	s.SetConfig(cfg)

	if _, _, after := s.current(); after != before {
		t.Fatal("reload replaced the live indicator")
	}
	select {
	case u, ok := <-ch:
		if !ok {
			t.Fatal("now channel closed by reload")
		}
		if u.Offset != 480 {
			t.Errorf("offset after reload = %v, want 480", u.Offset)
		}
	case <-time.After(time.Second):
		t.Fatal("no tick after reload")
	}
}

func TestSetConfigReplacesSource(t *testing.T) {
	sources := map[string]*fakeSource{
		"http://old": {speakers: []model.Speaker{{ID: "1", Name: "Ada"}}},
		"http://new": {speakers: []model.Speaker{{ID: "2", Name: "Grace"}}},
	}
	cfg := testConfig()
	cfg.BaseURL = "http://old"
	s := NewServer(cfg, Options{
		Clock: fixedClock,
		NewSource: func(c *config.Config) Source {
			return sources[c.BaseURL]
		},
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	var out listResponse[model.Speaker]
	getJSON(t, ts.URL+"/api/speakers", &out)
	if len(out.Items) != 1 || out.Items[0].Name != "Ada" {
		t.Fatalf("speakers before reload = %+v", out.Items)
	}

	next := testConfig()
	next.BaseURL = "http://new"
	s.SetConfig(next)

	out = listResponse[model.Speaker]{}
	getJSON(t, ts.URL+"/api/speakers", &out)
	if len(out.Items) != 1 || out.Items[0].Name != "Grace" {
		t.Errorf("speakers after reload = %+v, want Grace", out.Items)
	}
}

func TestSetConfigWithoutFactoryKeepsSource(t *testing.T) {
	s, ts := newTestServer(t, sampleSource())
	cfg := testConfig()
	cfg.BaseURL = "http://elsewhere"
	s.SetConfig(cfg)

	var out listResponse[model.Speaker]
	getJSON(t, ts.URL+"/api/speakers", &out)
	if len(out.Items) != 1 || out.Items[0].Name != "Ada" {
		t.Errorf("speakers = %+v, want original source", out.Items)
	}
}

func TestStartAndStop(t *testing.T) {
	s := NewServer(testConfig(), Options{Source: sampleSource(), Clock: fixedClock})
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, ind := s.current(); !ind.Running() {
		t.Error("indicator should be running")
	}
	if snap, err := s.snapshot(); err != nil || len(snap.Items) != 3 {
		t.Errorf("snapshot = %d items, %v", len(snap.Items), err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, ind := s.current(); !ind.Running() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("indicator still running after cancel")
}
