// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package xpt2046 drives the XPT2046 (ADS7843 compatible) resistive touch
// screen controller.
//
// Every poll reads both pressure channels, and when the panel is pressed,
// three interleaved X/Y conversions. The most consistent pair of conversions
// is averaged, the result is rotated to the screen orientation and can be
// mapped to display pixels with a Calibration.
//
// The polling methods are not safe for concurrent use. Wake is the only
// method meant to be called from another goroutine or an interrupt handler.
//
// # Datasheet
//
// https://grobotronics.com/images/datasheets/xpt2046-datasheet.pdf
package xpt2046

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"periph.io/x/conn/v3/gpio"
	drvtouch "tinygo.org/x/drivers/touch"

	"github.com/relabs-tech/touch_panel/internal/touch"
)

// ChipSelect is the output line that frames a transaction. gpio.PinOut
// satisfies it.
type ChipSelect interface {
	Out(l gpio.Level) error
}

// IRQPin is the controller's PENIRQ line. gpio.PinIn satisfies it.
type IRQPin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	WaitForEdge(timeout time.Duration) bool
}

// Opts tunes a Device. Start from a copy of DefaultOpts: the zero Rotation is
// Rotation0, not the panel's native Rotation1. A zero ZThreshold or Filter
// takes the DefaultOpts value.
type Opts struct {
	Bus BusConfig
	// ZThreshold is the smallest pressure accepted as a touch.
	ZThreshold int32
	// ZThresholdIRQ is the pressure below which an interrupt driven device
	// disarms until the next PENIRQ edge. It should be below ZThreshold; it
	// is ignored when ZThreshold is left zero.
	ZThresholdIRQ int32
	// MinInterval is the shortest time between two good samples. Zero
	// disables the debounce gate.
	MinInterval time.Duration
	Rotation    Rotation
	Filter      Filter
	Calibration Calibration
	Logger      logr.Logger
	// Now is the clock used by the debounce gate. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOpts are the values the controller is usually run with.
var DefaultOpts = Opts{
	Bus:           DefaultBusConfig,
	ZThreshold:    400,
	ZThresholdIRQ: 75,
	MinInterval:   3 * time.Millisecond,
	Rotation:      Rotation1,
	Filter:        BestTwoOfThree{},
}

// Device is a handle to one controller.
type Device struct {
	t   Transport
	cs  ChipSelect
	irq IRQPin

	zThreshold    int32
	zThresholdIRQ int32
	minInterval   uint32
	bus           BusConfig
	filter        Filter
	log           logr.Logger
	now           func() time.Time
	epoch         time.Time

	wake     atomic.Bool
	rotation Rotation
	cal      Calibration
	lastTick uint32
	xraw     int16
	yraw     int16
	zraw     int16
	pixel    touch.Pixel

	done chan struct{}
	wg   sync.WaitGroup
}

// New returns a Device talking over t and framing transactions with cs.
//
// irq may be nil, in which case the device polls the bus on every call. When
// set, PENIRQ is configured for falling edges and a goroutine arms the device
// on each edge until Halt is called. opts may be nil for DefaultOpts.
func New(t Transport, cs ChipSelect, irq IRQPin, opts *Opts) (*Device, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Device{
		t:             t,
		cs:            cs,
		irq:           irq,
		zThreshold:    opts.ZThreshold,
		zThresholdIRQ: opts.ZThresholdIRQ,
		minInterval:   uint32(opts.MinInterval / time.Millisecond),
		bus:           opts.Bus,
		filter:        opts.Filter,
		log:           opts.Logger,
		now:           opts.Now,
		rotation:      NormalizeRotation(int(opts.Rotation)),
		cal:           opts.Calibration,
		lastTick:      neverSampled,
		done:          make(chan struct{}),
	}
	if d.zThreshold <= 0 {
		d.zThreshold = DefaultOpts.ZThreshold
		d.zThresholdIRQ = DefaultOpts.ZThresholdIRQ
	}
	if d.bus.Frequency == 0 {
		d.bus.Frequency = DefaultBusConfig.Frequency
	}
	if d.filter == nil {
		d.filter = BestTwoOfThree{}
	}
	if d.log.GetSink() == nil {
		d.log = logr.Discard()
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.epoch = d.now()
	d.wake.Store(true)

	if err := cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("xpt2046: chip select: %w", err)
	}
	if irq != nil {
		if err := irq.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("xpt2046: PENIRQ: %w", err)
		}
		d.wg.Add(1)
		go d.watchIRQ()
	}
	return d, nil
}

// Touched reports whether the latest sample is pressed hard enough.
func (d *Device) Touched() bool {
	d.update()
	return int32(d.zraw) >= d.zThreshold
}

// Point samples the panel if due and returns the rotated reading.
func (d *Device) Point() touch.Sample {
	d.update()
	return d.PointNoUpdate()
}

// PointNoUpdate returns the cached reading without touching the bus.
func (d *Device) PointNoUpdate() touch.Sample {
	x, y := Rotate(d.xraw, d.yraw, d.rotation)
	return touch.Sample{X: x, Y: y, Z: d.zraw}
}

// Pixel samples the panel if due and maps the reading to display pixels.
func (d *Device) Pixel() touch.Pixel {
	p := d.Point()
	d.pixel = touch.Pixel{
		X: d.cal.Map(p.X, AxisX, d.rotation),
		Y: d.cal.Map(p.Y, AxisY, d.rotation),
		Z: p.Z,
	}
	return d.pixel
}

// PixelNoUpdate returns the pixel computed by the last call to Pixel.
func (d *Device) PixelNoUpdate() touch.Pixel {
	return d.pixel
}

// ReadData is Point with unsigned results.
func (d *Device) ReadData() (x, y, z uint16) {
	p := d.Point()
	return uint16(p.X), uint16(p.Y), uint16(p.Z)
}

// ReadTouchPoint implements touch.Pointer from tinygo.org/x/drivers.
func (d *Device) ReadTouchPoint() drvtouch.Point {
	p := d.Point()
	return drvtouch.Point{X: int(p.X), Y: int(p.Y), Z: int(p.Z)}
}

// BufferEmpty reports whether the last good sample is still inside the
// debounce window, i.e. a poll now would not reach the bus.
func (d *Device) BufferEmpty() bool {
	return !ShouldAcquire(d.tick(), d.lastTick, d.minInterval)
}

// BufferSize is always one: only the latest sample is kept.
func (d *Device) BufferSize() int {
	return 1
}

// TirqTouched reports whether the device is armed.
func (d *Device) TirqTouched() bool {
	return d.wake.Load()
}

// Wake arms the device. It is safe to call from any goroutine and is the
// callback to register with callback style interrupt controllers.
func (d *Device) Wake() {
	d.wake.Store(true)
}

// SetRotation accepts any integer and keeps it modulo 4.
func (d *Device) SetRotation(n int) {
	d.rotation = NormalizeRotation(n)
}

func (d *Device) Rotation() Rotation {
	return d.rotation
}

// SetCalibration replaces the calibration used by Pixel.
func (d *Device) SetCalibration(c Calibration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	d.cal = c
	return nil
}

func (d *Device) Calibration() Calibration {
	return d.cal
}

// Halt stops the PENIRQ watcher and releases chip select.
func (d *Device) Halt() error {
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	d.wg.Wait()
	return d.cs.Out(gpio.High)
}

func (d *Device) String() string {
	return fmt.Sprintf("xpt2046{rotation:%d, filter:%s}", d.rotation, d.filter)
}

func (d *Device) tick() uint32 {
	return uint32(d.now().Sub(d.epoch) / time.Millisecond)
}

// update runs one poll cycle: wake check, debounce gate, acquisition,
// pressure classification and filtering.
func (d *Device) update() {
	if !d.wake.Load() {
		return
	}
	now := d.tick()
	if !ShouldAcquire(now, d.lastTick, d.minInterval) {
		return
	}
	raw, err := d.acquire()
	if err != nil {
		d.log.Error(err, "touch acquisition failed")
		return
	}
	if !d.classify(raw.pressure()) {
		return
	}
	d.xraw, d.yraw = d.filter.Reduce(raw.X, raw.Y)
	d.lastTick = now
	d.log.V(1).Info("touch sample", "x", d.xraw, "y", d.yraw, "z", d.zraw)
}

// classify applies the pressure thresholds and reports whether z is a touch.
func (d *Device) classify(z int32) bool {
	if z < 0 {
		z = 0
	}
	if z < d.zThreshold {
		d.zraw = 0
		if d.irq != nil && z < d.zThresholdIRQ {
			d.wake.Store(false)
		}
		return false
	}
	d.zraw = int16(z)
	return true
}
