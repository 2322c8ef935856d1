// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/touch_panel/internal/calstore"
	"github.com/relabs-tech/touch_panel/internal/config"
	"github.com/relabs-tech/touch_panel/internal/xpt2046"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newTestMock(t *testing.T) (*PanelSource, *MockPanel, *testClock) {
	t.Helper()
	clk := &testClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	panel := newMockPanel(clk.Now)
	panel.outliers = false
	src, err := newMockSource(panel)
	if err != nil {
		t.Fatalf("newMockSource: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	return src, panel, clk
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestMockSourcePressed(t *testing.T) {
	src, _, clk := newTestMock(t)
	// A quarter of the way around the circle: (2048, 3248).
	clk.t = clk.t.Add(500 * time.Millisecond)

	ev, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ev.Touched || ev.Source != "mock" {
		t.Fatalf("event = %+v, want a touched mock event", ev)
	}
	if !near(float64(ev.Raw.X), 2048, mockNoise) || !near(float64(ev.Raw.Y), 3248, mockNoise) {
		t.Errorf("raw = %+v, want near (2048, 3248)", ev.Raw)
	}
	if ev.Raw.Z != 600+xpt2046.FullScale-3100 {
		t.Errorf("pressure = %d", ev.Raw.Z)
	}
	if !near(float64(ev.Pixel.X), 160, 1) || !near(float64(ev.Pixel.Y), 198, 1) {
		t.Errorf("pixel = %+v, want near (160, 198)", ev.Pixel)
	}
	if _, err := time.Parse(time.RFC3339Nano, ev.Time); err != nil {
		t.Errorf("event time %q: %v", ev.Time, err)
	}
}

func TestMockSourceReleased(t *testing.T) {
	src, _, clk := newTestMock(t)
	clk.t = clk.t.Add(2500 * time.Millisecond)

	ev, err := src.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Touched || ev.Raw.Z != 0 {
		t.Errorf("event = %+v, want released", ev)
	}
}

func TestMockSourceAux(t *testing.T) {
	src, panel, _ := newTestMock(t)
	panel.Battery = 4.1
	panel.Temperature = 40

	aux, err := src.ReadAux()
	if err != nil {
		t.Fatalf("ReadAux: %v", err)
	}
	if !near(aux.BatteryVolts, 4.1, 0.01) {
		t.Errorf("battery = %v, want 4.1", aux.BatteryVolts)
	}
	if !near(aux.AuxVolts, 1.2, 0.01) {
		t.Errorf("aux = %v, want 1.2", aux.AuxVolts)
	}
	if !near(aux.TempC, 40, 1) || !near(aux.TempF, 104, 2) {
		t.Errorf("temperature = %v °C / %v °F, want 40 / 104", aux.TempC, aux.TempF)
	}
}

func TestOptsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.TouchFilter = "pairwise"
	cfg.TouchRotation = 6
	cfg.TouchMinIntervalMS = 5
	cfg.TouchSPIHz = 1_000_000

	opts, err := OptsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptsFromConfig: %v", err)
	}
	if _, ok := opts.Filter.(xpt2046.PairwiseDistance); !ok {
		t.Errorf("filter = %s, want pairwise", opts.Filter)
	}
	if opts.Rotation != xpt2046.Rotation2 {
		t.Errorf("rotation = %d, want 2", opts.Rotation)
	}
	if opts.MinInterval != 5*time.Millisecond {
		t.Errorf("min interval = %v", opts.MinInterval)
	}
	if opts.Bus.Frequency != physic.MegaHertz {
		t.Errorf("bus frequency = %s", opts.Bus.Frequency)
	}
	if opts.ZThreshold != 400 || opts.ZThresholdIRQ != 75 {
		t.Errorf("thresholds = %d/%d", opts.ZThreshold, opts.ZThresholdIRQ)
	}

	cfg.TouchFilter = "median"
	if _, err := OptsFromConfig(cfg); err == nil {
		t.Error("OptsFromConfig accepted an unknown filter")
	}
}

func TestApplyStoredCalibration(t *testing.T) {
	src, _, _ := newTestMock(t)
	dev := src.Device()
	store := calstore.Open(filepath.Join(t.TempDir(), "touch.yaml"))

	if err := ApplyStoredCalibration(dev, store, "default"); err == nil {
		t.Error("missing slot returned nil error")
	}
	if diff := cmp.Diff(MockCalibration, dev.Calibration()); diff != "" {
		t.Errorf("calibration changed by a missing slot (-want +got):\n%s", diff)
	}

	want := xpt2046.Calibration{
		Horizontal: xpt2046.Range{Min: 3900, Max: 200, Resolution: 320},
		Vertical:   xpt2046.Range{Min: 150, Max: 3950, Resolution: 240},
	}
	if err := store.Save("default", calstore.Entry{Calibration: want, Rotation: 1}); err != nil {
		t.Fatal(err)
	}
	if err := ApplyStoredCalibration(dev, store, "default"); err != nil {
		t.Fatalf("ApplyStoredCalibration: %v", err)
	}
	if diff := cmp.Diff(want, dev.Calibration()); diff != "" {
		t.Errorf("calibration mismatch (-want +got):\n%s", diff)
	}
	if _, err := store.Load("other"); !errors.Is(err, calstore.ErrSlotNotFound) {
		t.Errorf("Load(other) error = %v", err)
	}
}
