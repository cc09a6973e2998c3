package stream

import (
	"testing"
	"time"
)

func TestStreamPathSingleVsCombined(t *testing.T) {
	if got := streamPath([]string{"btcusdt@bookTicker"}); got != "/ws/btcusdt@bookTicker" {
		t.Fatalf("single stream path = %q", got)
	}
	got := streamPath([]string{"btcusdt@bookTicker", "ethusdt@trade"})
	want := "/stream?streams=btcusdt@bookTicker/ethusdt@trade"
	if got != want {
		t.Fatalf("combined stream path = %q, want %q", got, want)
	}
}

func TestBackoffSchedule(t *testing.T) {
	c := New(DefaultConfig(), Handlers{})
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for attempt, w := range want {
		got := c.backoffFor(attempt + 1)
		if got != w {
			t.Fatalf("backoffFor(%d) = %v, want %v", attempt+1, got, w)
		}
	}
}

func TestBackoffCapsAt30Seconds(t *testing.T) {
	c := New(DefaultConfig(), Handlers{})
	got := c.backoffFor(20)
	if got != 30*time.Second {
		t.Fatalf("backoffFor(20) = %v, want capped at 30s", got)
	}
}

func TestIsHealthyRequiresConnectedAndFreshData(t *testing.T) {
	c := New(DefaultConfig(), Handlers{})

	if c.IsHealthy(30) {
		t.Fatalf("a freshly constructed client must not be healthy")
	}

	c.setState(Receiving)
	c.mu.Lock()
	c.lastDataTime = time.Now()
	c.mu.Unlock()
	if !c.IsHealthy(30) {
		t.Fatalf("expected healthy once connected with fresh data")
	}

	c.mu.Lock()
	c.lastDataTime = time.Now().Add(-60 * time.Second)
	c.mu.Unlock()
	if c.IsHealthy(30) {
		t.Fatalf("expected unhealthy once data exceeds the timeout")
	}
}
