package live

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"confgrid/internal/grid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestIndicator(start time.Time) (*Indicator, *fakeClock) {
	clk := &fakeClock{now: start}
	eng := grid.NewEngine(grid.DefaultConfig(), time.UTC)
	return NewIndicator(eng, clk.Now), clk
}

func TestTickFollowsClock(t *testing.T) {
	ind, clk := newTestIndicator(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))

	ind.Tick()
	first := ind.Offset()
	if first != 640 {
		t.Fatalf("offset = %v, want 640", first)
	}

	clk.Advance(61 * time.Second)
	ind.Tick()
	delta := ind.Offset() - first
	if math.Abs(delta-grid.DefaultQuarterWidth/15.0) > 1e-9 {
		t.Errorf("delta = %v, want %v", delta, grid.DefaultQuarterWidth/15.0)
	}
}

func TestLayoutReadyFiresOnce(t *testing.T) {
	ind, _ := newTestIndicator(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))

	x, fired := ind.LayoutReady(400)
	if !fired || x != 440 {
		t.Fatalf("LayoutReady = %v, %v; want 440, true", x, fired)
	}
	if _, fired := ind.LayoutReady(400); fired {
		t.Error("second LayoutReady must not scroll again")
	}
}

func TestLayoutReadyNeverNegative(t *testing.T) {
	ind, _ := newTestIndicator(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC))
	if x, fired := ind.LayoutReady(1000); !fired || x != 0 {
		t.Errorf("LayoutReady = %v, %v; want 0, true", x, fired)
	}
}

func TestSelectDayRearmsScrollAndChangesOrigin(t *testing.T) {
	ind, _ := newTestIndicator(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	ind.LayoutReady(400)
	if err := ind.SelectDay(ctx, 8); err != nil {
		t.Fatalf("SelectDay: %v", err)
	}
	if ind.Origin() != 8 {
		t.Errorf("origin = %d, want 8", ind.Origin())
	}
	if ind.Offset() != 320 {
		t.Errorf("offset = %v, want 320", ind.Offset())
	}
	if _, fired := ind.LayoutReady(400); !fired {
		t.Error("day change should re-arm the auto-scroll")
	}
}

func TestStartStop(t *testing.T) {
	ind, _ := newTestIndicator(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ind.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !ind.Running() {
		t.Fatal("expected running after Start")
	}
	if ind.Offset() != 960 {
		t.Errorf("Start should compute immediately, offset = %v", ind.Offset())
	}

	if err := ind.SelectDay(ctx, 9); err != nil {
		t.Fatalf("SelectDay: %v", err)
	}
	if !ind.Running() {
		t.Error("SelectDay should restart a running timer")
	}

	ind.Stop()
	ind.Stop()
	if ind.Running() {
		t.Error("expected stopped")
	}
}

func TestStopOnContextCancel(t *testing.T) {
	ind, _ := newTestIndicator(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())

	if err := ind.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for ind.Running() {
		if time.Now().After(deadline) {
			t.Fatal("indicator still running after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubscribe(t *testing.T) {
	ind, clk := newTestIndicator(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	ch, cancel := ind.Subscribe()

	ind.Tick()
	select {
	case u := <-ch:
		if u.Offset != 640 {
			t.Errorf("update offset = %v", u.Offset)
		}
	default:
		t.Fatal("expected an update")
	}

	cancel()
	cancel()
	clk.Advance(time.Minute)
	ind.Tick()
	select {
	case u := <-ch:
		t.Errorf("unexpected update after unsubscribe: %+v", u)
	default:
	}
}

func TestSetEngineKeepsSubscribers(t *testing.T) {
	ind, _ := newTestIndicator(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	ch, cancel := ind.Subscribe()
	defer cancel()

	if _, fired := ind.LayoutReady(400); !fired {
		t.Fatal("first LayoutReady should fire")
	}

	cfg := grid.DefaultConfig()
	cfg.QuarterWidth = 40
	cfg.StartHour = 8
	ind.SetEngine(grid.NewEngine(cfg, time.UTC))

	select {
	case u := <-ch:
		// 09:00 is four quarters past the new 08:00 origin.
		if u.Offset != 160 {
			t.Errorf("offset after engine swap = %v, want 160", u.Offset)
		}
	default:
		t.Fatal("subscriber got no update after engine swap")
	}
	if ind.Origin() != 8 {
		t.Errorf("origin = %d, want 8", ind.Origin())
	}
	if _, fired := ind.LayoutReady(400); !fired {
		t.Error("engine swap should re-arm the auto-scroll")
	}
}

func TestStartStopInterleaved(t *testing.T) {
	ind, _ := newTestIndicator(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := ind.Start(ctx); err != nil {
				t.Errorf("Start: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			ind.Stop()
		}()
	}
	wg.Wait()

	ind.Stop()
	if ind.Running() {
		t.Fatal("indicator running after final Stop")
	}

	// A scheduler is only published once it is started, so Stop always
	// finds it in a state it can shut down.
	if err := ind.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ind.mu.Lock()
	sched := ind.sched
	ind.mu.Unlock()
	if sched == nil || len(sched.Entries()) != 1 || sched.Entries()[0].Next.IsZero() {
		t.Fatal("scheduler should be running with its entry armed")
	}
	ind.Stop()
}
