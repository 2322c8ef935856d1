// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xpt2046

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownChannel is returned by ReadChannel for a channel it cannot read.
var ErrUnknownChannel = errors.New("xpt2046: unknown auxiliary channel")

// Channel selects one of the slow, single-ended inputs.
type Channel uint8

const (
	Battery Channel = iota
	AuxInput
	Temperature
)

func (c Channel) String() string {
	switch c {
	case Battery:
		return "battery"
	case AuxInput:
		return "aux"
	case Temperature:
		return "temperature"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

const (
	vref = 2.5 // internal reference, volts

	// boltzmannOverCharge is k/q in volts per kelvin.
	boltzmannOverCharge = 1.380649e-23 / 1.602176634e-19
	// tempBiasRatio is the ratio of the two diode bias currents used by the
	// two-measurement temperature method.
	tempBiasRatio = 91
)

// ReadChannel converts ch and returns raw counts. For Temperature it returns
// the difference TEMP1 - TEMP0 of the two bias current measurements.
func (d *Device) ReadChannel(ch Channel) (int16, error) {
	var v int16
	err := d.transaction(func(x *xfer) {
		switch ch {
		case Battery:
			v = readSingle(x, cmdBattery)
		case AuxInput:
			v = readSingle(x, cmdAux)
		case Temperature:
			t0 := readSingle(x, cmdTemp0)
			t1 := readSingle(x, cmdTemp1)
			v = t1 - t0
		default:
			x.err = fmt.Errorf("%w: %s", ErrUnknownChannel, ch)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("xpt2046: read %s: %w", ch, err)
	}
	return v, nil
}

// readSingle discards the first conversion, the same way position reads do,
// and leaves the chip powered down.
func readSingle(x *xfer, cmd byte) int16 {
	x.command(cmd)
	x.read(cmd)
	v := x.read(cmdYPowerDown)
	x.read(cmdNop)
	return v
}

// VoltageScale converts raw counts to volts.
type VoltageScale struct {
	Scale  float64 // volts per count
	Offset float64
	// MinCounts is the noise floor; readings below it are reported as 0 V.
	MinCounts int16
}

// Volts applies s to raw.
func (s VoltageScale) Volts(raw int16) float64 {
	if raw < s.MinCounts {
		return 0
	}
	v := float64(raw)*s.Scale + s.Offset
	if v < 0 {
		return 0
	}
	return v
}

var (
	// BatteryScale accounts for the 1/4 divider in front of VBAT.
	BatteryScale = VoltageScale{Scale: 4 * vref / 4096, MinCounts: 8}
	AuxScale     = VoltageScale{Scale: vref / 4096, MinCounts: 8}
)

// ReadBattery returns the VBAT input in volts.
func (d *Device) ReadBattery() (float64, error) {
	raw, err := d.ReadChannel(Battery)
	if err != nil {
		return 0, err
	}
	return BatteryScale.Volts(raw), nil
}

// ReadAux returns the AUX input in volts.
func (d *Device) ReadAux() (float64, error) {
	raw, err := d.ReadChannel(AuxInput)
	if err != nil {
		return 0, err
	}
	return AuxScale.Volts(raw), nil
}

// ReadTemperature returns the die temperature in Celsius and Fahrenheit.
func (d *Device) ReadTemperature() (celsius, fahrenheit float64, err error) {
	diff, err := d.ReadChannel(Temperature)
	if err != nil {
		return 0, 0, err
	}
	celsius, fahrenheit = TemperatureFromDiff(diff)
	return celsius, fahrenheit, nil
}

// TemperatureFromDiff converts a TEMP1 - TEMP0 count difference with
// T = q·ΔV / (k·ln N).
func TemperatureFromDiff(diff int16) (celsius, fahrenheit float64) {
	dv := float64(diff) * vref / 4096
	kelvin := dv / (boltzmannOverCharge * math.Log(tempBiasRatio))
	celsius = kelvin - 273.15
	return celsius, celsius*9/5 + 32
}
