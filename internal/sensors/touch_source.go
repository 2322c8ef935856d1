// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/touch_panel/internal/calstore"
	"github.com/relabs-tech/touch_panel/internal/config"
	"github.com/relabs-tech/touch_panel/internal/touch"
	"github.com/relabs-tech/touch_panel/internal/xpt2046"
)

// PanelSource turns polls of one controller into touch events and aux
// readings. It is not safe for concurrent use; callers that poll from more
// than one goroutine serialize with their own lock.
type PanelSource struct {
	name   string
	dev    *xpt2046.Device
	now    func() time.Time
	closer io.Closer
}

// NewTouchSource opens the XPT2046 described by the global configuration and
// applies the stored calibration, if any.
func NewTouchSource() (*PanelSource, error) {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("touch: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.TouchCSPin)
	if cs == nil {
		return nil, fmt.Errorf("touch: CS pin %q not found", cfg.TouchCSPin)
	}

	var irq xpt2046.IRQPin
	if cfg.TouchIRQPin != "" {
		p := gpioreg.ByName(cfg.TouchIRQPin)
		if p == nil {
			return nil, fmt.Errorf("touch: IRQ pin %q not found", cfg.TouchIRQPin)
		}
		irq = p
	} else {
		log.Println("touch: no TOUCH_IRQ_PIN, polling the bus on every sample")
	}

	port, err := spireg.Open(cfg.TouchSPIDevice)
	if err != nil {
		return nil, fmt.Errorf("touch: SPI open (%s): %w", cfg.TouchSPIDevice, err)
	}

	opts, err := OptsFromConfig(cfg)
	if err != nil {
		port.Close()
		return nil, err
	}

	dev, err := xpt2046.New(xpt2046.NewSPITransport(port), cs, irq, opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("touch: device creation: %w", err)
	}
	log.Printf("touch: %s on %s (CS %s, rotation %d, filter %s)",
		dev, cfg.TouchSPIDevice, cfg.TouchCSPin, dev.Rotation(), opts.Filter)

	if err := ApplyStoredCalibration(dev, calstore.Open(cfg.CalibrationFile), cfg.CalibrationSlot); err != nil {
		log.Printf("touch: WARNING: %v", err)
	}

	return &PanelSource{name: "xpt2046", dev: dev, now: time.Now, closer: port}, nil
}

// OptsFromConfig maps the TOUCH_* keys onto driver options.
func OptsFromConfig(cfg *config.Config) (*xpt2046.Opts, error) {
	filter, err := xpt2046.ParseFilter(cfg.TouchFilter)
	if err != nil {
		return nil, fmt.Errorf("touch: %w", err)
	}
	opts := xpt2046.DefaultOpts
	opts.Bus.Frequency = physic.Frequency(cfg.TouchSPIHz) * physic.Hertz
	opts.ZThreshold = cfg.TouchZThreshold
	opts.ZThresholdIRQ = cfg.TouchZThresholdIRQ
	opts.MinInterval = time.Duration(cfg.TouchMinIntervalMS) * time.Millisecond
	opts.Rotation = xpt2046.NormalizeRotation(cfg.TouchRotation)
	opts.Filter = filter
	opts.Logger = driverLogger()
	return &opts, nil
}

// driverLogger bridges the driver's logr output to the standard logger.
// Per-poll traces are printed with STDR_VERBOSE=1.
func driverLogger() logr.Logger {
	if os.Getenv("STDR_VERBOSE") != "" {
		stdr.SetVerbosity(1)
	}
	return stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("xpt2046")
}

// ApplyStoredCalibration loads slot from store into dev. A missing slot is
// reported but leaves dev uncalibrated, in which case Pixel reports zeros.
func ApplyStoredCalibration(dev *xpt2046.Device, store *calstore.Store, slot string) error {
	e, err := store.Load(slot)
	if errors.Is(err, calstore.ErrSlotNotFound) {
		return fmt.Errorf("no calibration in slot %q of %s, pixel output disabled until calibrated", slot, store.Path())
	}
	if err != nil {
		return err
	}
	if xpt2046.NormalizeRotation(e.Rotation) != dev.Rotation() {
		log.Printf("touch: calibration slot %q was taken at rotation %d, panel runs at %d",
			slot, e.Rotation, dev.Rotation())
	}
	if err := dev.SetCalibration(e.Calibration); err != nil {
		return fmt.Errorf("calibration slot %q: %w", slot, err)
	}
	log.Printf("touch: calibration slot %q loaded (saved %s)", slot, e.SavedAt.Format(time.RFC3339))
	return nil
}

// Device exposes the driver, e.g. for calibration tools.
func (s *PanelSource) Device() *xpt2046.Device {
	return s.dev
}

// Next polls the panel once.
func (s *PanelSource) Next() (touch.Event, error) {
	px := s.dev.Pixel()
	raw := s.dev.PointNoUpdate()
	return touch.Event{
		Source:  s.name,
		Touched: raw.Z > 0,
		Raw:     raw,
		Pixel:   px,
		Time:    s.now().Format(time.RFC3339Nano),
	}, nil
}

// ReadAux reads battery, aux input and die temperature.
func (s *PanelSource) ReadAux() (touch.AuxReading, error) {
	bat, err := s.dev.ReadBattery()
	if err != nil {
		return touch.AuxReading{}, fmt.Errorf("%s battery: %w", s.name, err)
	}
	aux, err := s.dev.ReadAux()
	if err != nil {
		return touch.AuxReading{}, fmt.Errorf("%s aux: %w", s.name, err)
	}
	c, f, err := s.dev.ReadTemperature()
	if err != nil {
		return touch.AuxReading{}, fmt.Errorf("%s temperature: %w", s.name, err)
	}
	return touch.AuxReading{
		Source:       s.name,
		BatteryVolts: bat,
		AuxVolts:     aux,
		TempC:        c,
		TempF:        f,
		Time:         s.now().Format(time.RFC3339Nano),
	}, nil
}

// Close stops the PENIRQ watcher and releases the bus.
func (s *PanelSource) Close() error {
	err := s.dev.Halt()
	if s.closer != nil {
		if cerr := s.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
