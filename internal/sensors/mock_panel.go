// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/touch_panel/internal/xpt2046"
)

// Mock stroke: pressed for strokePressed, released for the rest of
// strokePeriod, tracing a circle while pressed.
const (
	strokePeriod  = 3 * time.Second
	strokePressed = 2 * time.Second
	strokeRadius  = 1200
	strokeCenter  = 2048
	mockNoise     = 4
	// one conversion in outlierEvery is off by outlierJump
	outlierEvery = 20
	outlierJump  = 300
)

// MockCalibration matches the raw span the mock panel produces on a
// 320x240 display.
var MockCalibration = xpt2046.Calibration{
	Horizontal: xpt2046.Range{Min: 200, Max: 3900, Resolution: 320},
	Vertical:   xpt2046.Range{Min: 200, Max: 3900, Resolution: 240},
}

// MockPanel simulates an XPT2046 behind a finger drawing circles. It is both
// the Transport and the chip select of the simulated device, and answers
// every 16-clock read with the conversion of the previously sent command,
// like the real chip.
type MockPanel struct {
	mu      sync.Mutex
	start   time.Time
	now     func() time.Time
	rng     *rand.Rand
	pending byte
	cs      gpio.Level
	// outliers enables the occasional wild conversion.
	outliers bool

	// Volts on the slow channels.
	Battery     float64
	Aux         float64
	Temperature float64 // Celsius
}

func NewMockPanel() *MockPanel {
	return newMockPanel(time.Now)
}

func newMockPanel(now func() time.Time) *MockPanel {
	return &MockPanel{
		start:       now(),
		now:         now,
		rng:         rand.New(rand.NewSource(1)),
		cs:          gpio.High,
		outliers:    true,
		Battery:     3.7,
		Aux:         1.2,
		Temperature: 25,
	}
}

func (m *MockPanel) Begin(xpt2046.BusConfig) error {
	m.mu.Lock()
	return nil
}

func (m *MockPanel) End() error {
	m.mu.Unlock()
	return nil
}

// Out drives the simulated chip select.
func (m *MockPanel) Out(l gpio.Level) error {
	m.cs = l
	return nil
}

func (m *MockPanel) Transfer8(b byte) (byte, error) {
	if m.cs == gpio.High {
		return 0, nil
	}
	m.pending = b
	return 0, nil
}

func (m *MockPanel) Transfer16(w uint16) (uint16, error) {
	if m.cs == gpio.High {
		return 0, nil
	}
	v := m.convert(m.pending)
	m.pending = byte(w)
	return uint16(v) << 3, nil
}

// finger returns the raw position and whether the panel is pressed.
func (m *MockPanel) finger() (x, y float64, pressed bool) {
	t := m.now().Sub(m.start) % strokePeriod
	if t >= strokePressed {
		return 0, 0, false
	}
	a := 2 * math.Pi * float64(t) / float64(strokePressed)
	return strokeCenter + strokeRadius*math.Cos(a), strokeCenter + strokeRadius*math.Sin(a), true
}

func (m *MockPanel) noisy(v float64) int16 {
	v += float64(m.rng.Intn(2*mockNoise+1) - mockNoise)
	if m.outliers && m.rng.Intn(outlierEvery) == 0 {
		v += outlierJump
	}
	return clampCounts(v)
}

func (m *MockPanel) convert(cmd byte) int16 {
	if cmd&0x80 == 0 {
		return 0
	}
	x, y, pressed := m.finger()
	switch cmd >> 4 & 0x7 {
	case 1: // X
		if !pressed {
			return 0
		}
		return m.noisy(x)
	case 5: // Y
		if !pressed {
			return 0
		}
		return m.noisy(y)
	case 3: // Z1
		if !pressed {
			return 0
		}
		return 600
	case 4: // Z2
		if !pressed {
			return xpt2046.FullScale
		}
		return 3100
	case 2: // VBAT, behind the 1/4 divider
		return clampCounts(m.Battery / 4 / 2.5 * 4096)
	case 6: // AUX
		return clampCounts(m.Aux / 2.5 * 4096)
	case 0: // TEMP0
		return 600
	case 7: // TEMP1
		return 600 + m.tempDiff()
	}
	return 0
}

// tempDiff inverts xpt2046.TemperatureFromDiff.
func (m *MockPanel) tempDiff() int16 {
	kelvin := m.Temperature + 273.15
	perCount := 2.5 / 4096 / (1.380649e-23 / 1.602176634e-19 * math.Log(91))
	return int16(math.Round(kelvin / perCount))
}

func clampCounts(v float64) int16 {
	return int16(math.Max(0, math.Min(xpt2046.FullScale, math.Round(v))))
}

// NewMockSource returns a PanelSource backed by a MockPanel, calibrated
// for a 320x240 display.
func NewMockSource() (*PanelSource, error) {
	return newMockSource(NewMockPanel())
}

func newMockSource(panel *MockPanel) (*PanelSource, error) {
	opts := xpt2046.DefaultOpts
	opts.Calibration = MockCalibration
	opts.Now = panel.now
	dev, err := xpt2046.New(panel, panel, nil, &opts)
	if err != nil {
		return nil, err
	}
	return &PanelSource{name: "mock", dev: dev, now: panel.now}, nil
}
