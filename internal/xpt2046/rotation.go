// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xpt2046

// Rotation selects one of four 90° screen orientations. Rotation1 is the
// panel's native orientation and leaves coordinates untouched.
type Rotation uint8

const (
	Rotation0 Rotation = iota
	Rotation1
	Rotation2
	Rotation3
)

// NormalizeRotation accepts any integer and folds it into 0..3.
func NormalizeRotation(n int) Rotation {
	return Rotation(((n % 4) + 4) % 4)
}

// Rotate remaps a raw reading for r over the fixed 0..FullScale range.
func Rotate(x, y int16, r Rotation) (int16, int16) {
	switch r {
	case Rotation0:
		return FullScale - y, x
	case Rotation1:
		return x, y
	case Rotation2:
		return y, FullScale - x
	default:
		return FullScale - x, FullScale - y
	}
}
