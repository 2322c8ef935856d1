// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xpt2046

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

// BusConfig is the bus setup held for the duration of one transaction.
type BusConfig struct {
	Frequency physic.Frequency
	Mode      spi.Mode
	// LSBFirst is only for odd level shifters; the controller itself
	// shifts MSB first.
	LSBFirst bool
}

// DefaultBusConfig matches the controller's rated 2 MHz, SPI mode 0.
var DefaultBusConfig = BusConfig{
	Frequency: 2 * physic.MegaHertz,
	Mode:      spi.Mode0,
}

// Transport moves words between the host and the controller.
//
// Begin claims the bus with cfg until the matching End. The device pairs
// every Begin with an End, also when a transfer fails. Chip select is not
// part of the transport, the device drives it.
type Transport interface {
	Begin(cfg BusConfig) error
	End() error
	Transfer8(b byte) (byte, error)
	Transfer16(w uint16) (uint16, error)
}

// SPITransport talks to the controller through a periph SPI port, usually a
// Linux spidev node opened with spireg.
type SPITransport struct {
	mu   sync.Mutex
	port spi.Port
	conn spi.Conn
	cfg  BusConfig
	w    [2]byte
	r    [2]byte
}

// NewSPITransport wraps port. The port is connected lazily by the first
// Begin; periph ports can only be connected once, so later transactions must
// use the same BusConfig.
func NewSPITransport(port spi.Port) *SPITransport {
	return &SPITransport{port: port}
}

func (t *SPITransport) Begin(cfg BusConfig) error {
	t.mu.Lock()
	if t.conn == nil {
		mode := cfg.Mode | spi.NoCS
		if cfg.LSBFirst {
			mode |= spi.LSBFirst
		}
		c, err := t.port.Connect(cfg.Frequency, mode, 8)
		if err != nil {
			t.mu.Unlock()
			return fmt.Errorf("spi connect %s: %w", t.port, err)
		}
		t.conn = c
		t.cfg = cfg
		return nil
	}
	if cfg != t.cfg {
		t.mu.Unlock()
		return fmt.Errorf("spi %s already connected at %s mode %d", t.port, t.cfg.Frequency, t.cfg.Mode)
	}
	return nil
}

func (t *SPITransport) End() error {
	t.mu.Unlock()
	return nil
}

func (t *SPITransport) Transfer8(b byte) (byte, error) {
	t.w[0] = b
	if err := t.conn.Tx(t.w[:1], t.r[:1]); err != nil {
		return 0, err
	}
	return t.r[0], nil
}

func (t *SPITransport) Transfer16(v uint16) (uint16, error) {
	t.w[0], t.w[1] = byte(v>>8), byte(v)
	if err := t.conn.Tx(t.w[:], t.r[:]); err != nil {
		return 0, err
	}
	return uint16(t.r[0])<<8 | uint16(t.r[1]), nil
}

// DriversTransport adapts a TinyGo drivers.SPI bus. The bus is configured by
// the board code, so Begin only serializes access.
type DriversTransport struct {
	mu  sync.Mutex
	bus drivers.SPI
	w   [2]byte
	r   [2]byte
}

func NewDriversTransport(bus drivers.SPI) *DriversTransport {
	return &DriversTransport{bus: bus}
}

func (t *DriversTransport) Begin(BusConfig) error {
	t.mu.Lock()
	return nil
}

func (t *DriversTransport) End() error {
	t.mu.Unlock()
	return nil
}

func (t *DriversTransport) Transfer8(b byte) (byte, error) {
	return t.bus.Transfer(b)
}

func (t *DriversTransport) Transfer16(v uint16) (uint16, error) {
	t.w[0], t.w[1] = byte(v>>8), byte(v)
	if err := t.bus.Tx(t.w[:], t.r[:]); err != nil {
		return 0, err
	}
	return uint16(t.r[0])<<8 | uint16(t.r[1]), nil
}

// BitBangTransport clocks the bus on plain GPIO lines. It is slow but works
// on boards where the touch controller is not wired to an SPI block.
type BitBangTransport struct {
	mu         sync.Mutex
	clk        gpio.PinOut
	mosi       gpio.PinOut
	miso       gpio.PinIn
	halfPeriod time.Duration
	cpol       gpio.Level
	cpha       bool
	lsbFirst   bool
}

func NewBitBangTransport(clk, mosi gpio.PinOut, miso gpio.PinIn) *BitBangTransport {
	return &BitBangTransport{clk: clk, mosi: mosi, miso: miso}
}

func (t *BitBangTransport) Begin(cfg BusConfig) error {
	t.mu.Lock()
	t.halfPeriod = 5 * time.Microsecond // 100kHz
	if cfg.Frequency > 0 {
		t.halfPeriod = cfg.Frequency.Period() / 2
	}
	t.cpol = cfg.Mode&spi.Mode2 != 0
	t.cpha = cfg.Mode&spi.Mode1 != 0
	t.lsbFirst = cfg.LSBFirst
	if err := t.miso.In(gpio.Float, gpio.NoEdge); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("bitbang miso %s: %w", t.miso, err)
	}
	if err := t.clk.Out(t.cpol); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("bitbang clk %s: %w", t.clk, err)
	}
	return nil
}

func (t *BitBangTransport) End() error {
	defer t.mu.Unlock()
	return t.clk.Out(t.cpol)
}

func (t *BitBangTransport) Transfer8(b byte) (byte, error) {
	var in byte
	for i := 0; i < 8; i++ {
		bit := uint(7 - i)
		if t.lsbFirst {
			bit = uint(i)
		}
		l, err := t.clockBit(b&(1<<bit) != 0)
		if err != nil {
			return 0, err
		}
		if l {
			in |= 1 << bit
		}
	}
	return in, nil
}

func (t *BitBangTransport) Transfer16(v uint16) (uint16, error) {
	hi, err := t.Transfer8(byte(v >> 8))
	if err != nil {
		return 0, err
	}
	lo, err := t.Transfer8(byte(v))
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// clockBit shifts one bit out on MOSI and samples MISO on the edge the mode
// selects.
func (t *BitBangTransport) clockBit(out bool) (gpio.Level, error) {
	if err := t.mosi.Out(gpio.Level(out)); err != nil {
		return gpio.Low, err
	}
	var in gpio.Level
	if !t.cpha {
		in = t.miso.Read()
	}
	if err := t.clk.Out(!t.cpol); err != nil {
		return gpio.Low, err
	}
	time.Sleep(t.halfPeriod)
	if t.cpha {
		in = t.miso.Read()
	}
	if err := t.clk.Out(t.cpol); err != nil {
		return gpio.Low, err
	}
	time.Sleep(t.halfPeriod)
	return in, nil
}
