// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// BitField describes one field of the XPT2046 control byte.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// CommandInfo describes one control byte the driver sends.
type CommandInfo struct {
	Command     string `json:"command"` // hex control byte
	Channel     int    `json:"channel"` // A2..A0
	Name        string `json:"name"`
	Description string `json:"description"`
	Mode        string `json:"mode"` // "differential" or "single-ended"
}

// ControlByteFields returns the layout of the control byte.
func ControlByteFields() []BitField {
	return []BitField{
		{Bits: "7", Name: "S", Description: "Start bit", Values: "1=command byte"},
		{Bits: "6:4", Name: "A2:A0", Description: "Channel select", Values: "0=TEMP0, 1=X, 2=VBAT, 3=Z1, 4=Z2, 5=Y, 6=AUX, 7=TEMP1"},
		{Bits: "3", Name: "MODE", Description: "Conversion resolution", Values: "0=12-bit, 1=8-bit"},
		{Bits: "2", Name: "SER/DFR", Description: "Reference mode", Values: "0=differential, 1=single-ended"},
		{Bits: "1:0", Name: "PD1:PD0", Description: "Power-down between conversions", Values: "00=power down with PENIRQ, 01=reference off ADC on, 11=always on"},
	}
}

// CommandMap returns every control byte used for position, pressure and
// auxiliary reads.
func CommandMap() []CommandInfo {
	return []CommandInfo{
		{Command: "0x91", Channel: 1, Name: "X", Description: "X position, ADC on", Mode: "differential"},
		{Command: "0xD1", Channel: 5, Name: "Y", Description: "Y position, ADC on", Mode: "differential"},
		{Command: "0xD0", Channel: 5, Name: "Y_PD", Description: "Y position, then power down with PENIRQ enabled", Mode: "differential"},
		{Command: "0xB1", Channel: 3, Name: "Z1", Description: "Pressure Z1", Mode: "differential"},
		{Command: "0xC1", Channel: 4, Name: "Z2", Description: "Pressure Z2", Mode: "differential"},
		{Command: "0xA7", Channel: 2, Name: "VBAT", Description: "Battery input behind 1/4 divider", Mode: "single-ended"},
		{Command: "0xE7", Channel: 6, Name: "AUX", Description: "Auxiliary input", Mode: "single-ended"},
		{Command: "0x87", Channel: 0, Name: "TEMP0", Description: "Die temperature, low bias current", Mode: "single-ended"},
		{Command: "0xF7", Channel: 7, Name: "TEMP1", Description: "Die temperature, high bias current", Mode: "single-ended"},
	}
}
