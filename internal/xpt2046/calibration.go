// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xpt2046

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/touch_panel/internal/touch"
)

// ErrDegenerateRange is returned for a calibration range with Min == Max.
var ErrDegenerateRange = errors.New("xpt2046: calibration range has Min == Max")

// Axis names a display axis.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
)

// Range maps raw ADC values [Min, Max] onto display pixels [0, Resolution].
// Min > Max describes a panel axis that runs opposite to the display axis.
type Range struct {
	Min        uint16 `yaml:"min" json:"min"`
	Max        uint16 `yaml:"max" json:"max"`
	Resolution uint16 `yaml:"resolution" json:"resolution"`
}

// Calibration holds one Range per display axis. XYSwap is set when the
// panel's X wires run along the display's vertical axis.
type Calibration struct {
	Horizontal Range `yaml:"horizontal" json:"horizontal"`
	Vertical   Range `yaml:"vertical" json:"vertical"`
	XYSwap     bool  `yaml:"xy_swap" json:"xy_swap"`
}

// Validate rejects ranges that would divide by zero in Map.
func (c Calibration) Validate() error {
	if c.Horizontal.Min == c.Horizontal.Max {
		return fmt.Errorf("horizontal: %w", ErrDegenerateRange)
	}
	if c.Vertical.Min == c.Vertical.Max {
		return fmt.Errorf("vertical: %w", ErrDegenerateRange)
	}
	return nil
}

// Map converts a rotated raw coordinate for axis into display pixels.
// Rotations 0 and 2 exchange the physical meaning of the axes, which flips
// the configured swap. A degenerate range maps everything to 0.
func (c Calibration) Map(raw int16, axis Axis, r Rotation) uint16 {
	rg := c.Vertical
	if (axis == AxisX) != c.swapped(r) {
		rg = c.Horizontal
	}
	return rg.scale(raw)
}

func (c Calibration) swapped(r Rotation) bool {
	if r == Rotation0 || r == Rotation2 {
		return !c.XYSwap
	}
	return c.XYSwap
}

func (rg Range) scale(raw int16) uint16 {
	lo, hi, reversed := rg.Min, rg.Max, false
	if lo > hi {
		lo, hi, reversed = hi, lo, true
	}
	if lo == hi {
		return 0
	}
	res := float64(rg.Resolution)
	v := math.Round(float64(int32(raw)-int32(lo)) / float64(hi-lo) * res)
	if reversed {
		v = res - v
	}
	return uint16(math.Max(0, math.Min(res, v)))
}

// CalOffset is how far the calibration targets sit inside the display edges.
const CalOffset = 20

// Targets returns the two pixel positions a user touches during calibration:
// near the top-left and near the bottom-right corner.
func Targets(width, height uint16) (x1, y1, x2, y2 uint16) {
	return CalOffset, CalOffset, width - CalOffset, height - CalOffset
}

// RangeFromTargets extrapolates the raw range that spans the whole display
// axis from two touches at known pixel positions. The sign of the slope
// carries over, so an inverted axis yields Min > Max.
func RangeFromTargets(raw1, raw2 int16, target1, target2, resolution uint16) (Range, error) {
	if raw1 == raw2 || target1 == target2 {
		return Range{}, ErrDegenerateRange
	}
	slope := float64(int32(raw2)-int32(raw1)) / float64(int32(target2)-int32(target1))
	lo := float64(raw1) - float64(target1)*slope
	hi := float64(raw1) + (float64(resolution)-float64(target1))*slope
	rg := Range{
		Min:        clampRaw(lo),
		Max:        clampRaw(hi),
		Resolution: resolution,
	}
	if rg.Min == rg.Max {
		return Range{}, ErrDegenerateRange
	}
	return rg, nil
}

func clampRaw(v float64) uint16 {
	return uint16(math.Round(math.Max(0, math.Min(FullScale, v))))
}

// CalibrationFromTargets builds a Calibration from two rotated readings taken
// on the Targets of a width x height display at rotation r. Each range is
// stored in the slot Map picks for that rotation and swap.
func CalibrationFromTargets(p1, p2 touch.Sample, width, height uint16, xySwap bool, r Rotation) (Calibration, error) {
	x1, y1, x2, y2 := Targets(width, height)
	rx, err := RangeFromTargets(p1.X, p2.X, x1, x2, width)
	if err != nil {
		return Calibration{}, fmt.Errorf("x axis: %w", err)
	}
	ry, err := RangeFromTargets(p1.Y, p2.Y, y1, y2, height)
	if err != nil {
		return Calibration{}, fmt.Errorf("y axis: %w", err)
	}
	c := Calibration{Horizontal: rx, Vertical: ry, XYSwap: xySwap}
	if c.swapped(r) {
		c.Horizontal, c.Vertical = ry, rx
	}
	return c, nil
}
