// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xpt2046

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

var errBus = errors.New("bus fault")

// Channel numbers (control byte bits 6:4).
const (
	chTemp0 = 0
	chX     = 1
	chBat   = 2
	chZ1    = 3
	chZ2    = 4
	chY     = 5
	chAux   = 6
	chTemp1 = 7
)

// fakeChip models the controller's pipelined conversions: the 16 clocks
// after a command return that command's result. Values are taken per channel
// in order and the last one repeats.
type fakeChip struct {
	t      *testing.T
	cs     *gpiotest.Pin
	values map[byte][]int16

	pending    byte
	hasPending bool
	inTx       bool

	begins    int
	ends      int
	transfers int
	failAt    int // 1-based transfer index that fails, 0 for never
	sent      []byte
}

func newFakeChip(t *testing.T) (*fakeChip, *gpiotest.Pin) {
	cs := &gpiotest.Pin{N: "CS", L: gpio.High}
	return &fakeChip{t: t, cs: cs, values: map[byte][]int16{}}, cs
}

// press loads one poll worth of conversions: z1/z2, then a dummy X followed
// by the three X and Y candidates.
func (c *fakeChip) press(z1, z2 int16, xs, ys [3]int16) {
	c.values[chZ1] = []int16{z1}
	c.values[chZ2] = []int16{z2}
	c.values[chX] = []int16{xs[0], xs[0], xs[1], xs[2]}
	c.values[chY] = []int16{ys[0], ys[1], ys[2]}
}

func (c *fakeChip) release() {
	c.values[chZ1] = []int16{0}
	c.values[chZ2] = []int16{FullScale}
}

func (c *fakeChip) Begin(BusConfig) error {
	if c.inTx {
		c.t.Error("Begin called inside a transaction")
	}
	c.inTx = true
	c.begins++
	c.sent = c.sent[:0]
	return nil
}

func (c *fakeChip) End() error {
	if !c.inTx {
		c.t.Error("End called without Begin")
	}
	c.inTx = false
	c.ends++
	return nil
}

func (c *fakeChip) Transfer8(b byte) (byte, error) {
	if err := c.step(); err != nil {
		return 0, err
	}
	c.issue(b)
	return 0, nil
}

func (c *fakeChip) Transfer16(w uint16) (uint16, error) {
	if err := c.step(); err != nil {
		return 0, err
	}
	v := c.convert()
	c.issue(byte(w))
	return uint16(v) << conversionBits, nil
}

func (c *fakeChip) step() error {
	c.transfers++
	if !c.inTx {
		c.t.Error("transfer outside a transaction")
	}
	if c.cs.Read() != gpio.Low {
		c.t.Error("transfer with chip select released")
	}
	if c.failAt != 0 && c.transfers == c.failAt {
		return errBus
	}
	return nil
}

func (c *fakeChip) issue(b byte) {
	c.pending = b
	c.hasPending = b&0x80 != 0
	if c.hasPending {
		c.sent = append(c.sent, b)
	}
}

func (c *fakeChip) convert() int16 {
	if !c.hasPending {
		return 0
	}
	ch := c.pending >> 4 & 0x7
	q := c.values[ch]
	if len(q) == 0 {
		return 0
	}
	v := q[0]
	if len(q) > 1 {
		c.values[ch] = q[1:]
	}
	return v
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }
