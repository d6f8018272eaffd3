package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePosition(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewMountCollector(reg)
	if err != nil {
		t.Fatalf("NewMountCollector: %v", err)
	}

	c.ObservePosition(5.5, -20.25, true, false)

	if got := testutil.ToFloat64(c.RightAscension); got != 5.5 {
		t.Errorf("right ascension gauge = %v, want 5.5", got)
	}
	if got := testutil.ToFloat64(c.Declination); got != -20.25 {
		t.Errorf("declination gauge = %v, want -20.25", got)
	}
	if got := testutil.ToFloat64(c.Slewing); got != 1 {
		t.Errorf("slewing gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Parked); got != 0 {
		t.Errorf("parked gauge = %v, want 0", got)
	}

	c.ObservePosition(0, 90, false, true)

	if got := testutil.ToFloat64(c.Slewing); got != 0 {
		t.Errorf("slewing gauge after stop = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.Parked); got != 1 {
		t.Errorf("parked gauge after stop = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.StatusUpdates); got != 2 {
		t.Errorf("status update count = %v, want 2", got)
	}
}

func TestIncCommand(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewMountCollector(reg)
	if err != nil {
		t.Fatalf("NewMountCollector: %v", err)
	}

	c.IncCommand("goto", "ok")
	c.IncCommand("goto", "ok")
	c.IncCommand("goto", "error")
	c.IncCommand("sync", "ok")

	if got := testutil.ToFloat64(c.Commands.WithLabelValues("goto", "ok")); got != 2 {
		t.Errorf("goto ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Commands.WithLabelValues("goto", "error")); got != 1 {
		t.Errorf("goto error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Commands.WithLabelValues("sync", "ok")); got != 1 {
		t.Errorf("sync ok count = %v, want 1", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *MountCollector
	c.ObservePosition(1, 2, true, false)
	c.IncCommand("abort", "ok")
}

func TestReusesExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMountCollector(reg)
	if err != nil {
		t.Fatalf("NewMountCollector: %v", err)
	}
	second, err := NewMountCollector(reg)
	if err != nil {
		t.Fatalf("NewMountCollector twice on one registry: %v", err)
	}

	first.ObservePosition(12, 45, false, false)
	if got := testutil.ToFloat64(second.RightAscension); got != 12 {
		t.Errorf("second collector right ascension = %v, want 12 via shared gauge", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewMountCollector(reg)
	if err != nil {
		t.Fatalf("NewMountCollector: %v", err)
	}
	c.ObservePosition(6, 30, false, false)
	c.IncCommand("goto", "ok")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading metrics body: %v", err)
	}

	for _, name := range []string{
		"eq500x_right_ascension_hours",
		"eq500x_declination_degrees",
		"eq500x_slewing",
		"eq500x_parked",
		"eq500x_status_updates_total",
		"eq500x_commands_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
