// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xpt2046

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// rawSample is one poll worth of conversions.
type rawSample struct {
	Z1, Z2 int16
	X, Y   [3]int16
}

func (r rawSample) pressure() int32 {
	return int32(r.Z1) + FullScale - int32(r.Z2)
}

// xfer issues pipelined conversions: every 16-clock read returns the result
// of the previous command while clocking out the next one. The first error
// sticks and turns the remaining calls into no-ops.
type xfer struct {
	t   Transport
	err error
}

func (x *xfer) command(cmd byte) {
	if x.err != nil {
		return
	}
	_, x.err = x.t.Transfer8(cmd)
}

func (x *xfer) read(next byte) int16 {
	if x.err != nil {
		return 0
	}
	v, err := x.t.Transfer16(uint16(next))
	if err != nil {
		x.err = err
		return 0
	}
	return int16(v >> conversionBits)
}

// transaction frames fn with Begin/End and chip select. End and the chip
// select release run on every path.
func (d *Device) transaction(fn func(x *xfer)) (err error) {
	if err := d.t.Begin(d.bus); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if csErr := d.cs.Out(gpio.High); csErr != nil && err == nil {
			err = fmt.Errorf("release chip select: %w", csErr)
		}
		if endErr := d.t.End(); endErr != nil && err == nil {
			err = fmt.Errorf("end transaction: %w", endErr)
		}
	}()
	if err := d.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("assert chip select: %w", err)
	}
	x := &xfer{t: d.t}
	fn(x)
	return x.err
}

func (d *Device) acquire() (rawSample, error) {
	var raw rawSample
	err := d.transaction(func(x *xfer) {
		x.command(cmdZ1)
		raw.Z1 = x.read(cmdZ2)
		raw.Z2 = x.read(cmdX)
		if raw.pressure() >= d.zThreshold {
			x.read(cmdX) // the first position conversion after Z is always noisy
			raw.X[0] = x.read(cmdY)
			raw.Y[0] = x.read(cmdX)
			raw.X[1] = x.read(cmdY)
			raw.Y[1] = x.read(cmdX)
		}
		raw.X[2] = x.read(cmdYPowerDown)
		raw.Y[2] = x.read(cmdNop)
	})
	return raw, err
}
