// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xpt2046

// Control byte layout: S | A2 A1 A0 | MODE | SER/DFR | PD1 PD0.
// MODE=0 selects 12-bit conversions. Position and pressure channels are read
// differentially (SER/DFR=0), the auxiliary channels single-ended with the
// internal reference on (PD=11).
const (
	cmdZ1          byte = 0xB1
	cmdZ2          byte = 0xC1
	cmdX           byte = 0x91
	cmdY           byte = 0xD1
	cmdYPowerDown  byte = 0xD0 // last conversion of a poll, leaves the chip idle with PENIRQ enabled
	cmdBattery     byte = 0xA7
	cmdAux         byte = 0xE7
	cmdTemp0       byte = 0x87
	cmdTemp1       byte = 0xF7
	cmdNop         byte = 0x00
	conversionBits      = 3 // a 16-clock read returns the 12-bit result followed by 3 zero bits
)

// FullScale is the largest value a 12-bit conversion can return.
const FullScale = 4095
