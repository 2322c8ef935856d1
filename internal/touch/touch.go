// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package touch

// Sample is a filtered, pressure-checked and rotated touch reading in raw
// ADC units (0..4095).
type Sample struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"` // pressure, 0 when not touched
}

// Pixel is a Sample mapped to display coordinates.
type Pixel struct {
	X uint16 `json:"x"`
	Y uint16 `json:"y"`
	Z int16  `json:"z"`
}

// Event is what the producer publishes for every change on the panel.
type Event struct {
	Source  string `json:"source"`
	Touched bool   `json:"touched"`
	Raw     Sample `json:"raw"`
	Pixel   Pixel  `json:"pixel"`
	Time    string `json:"time"` // RFC3339Nano
}

// AuxReading holds the slow auxiliary channels of the controller.
type AuxReading struct {
	Source       string  `json:"source"`
	BatteryVolts float64 `json:"battery_v"`
	AuxVolts     float64 `json:"aux_v"`
	TempC        float64 `json:"temp_c"`
	TempF        float64 `json:"temp_f"`
	Time         string  `json:"time"`
}

// Source is anything that can be polled for touch events.
type Source interface {
	Next() (Event, error)
}

// AuxSource reads the controller's slow channels.
type AuxSource interface {
	ReadAux() (AuxReading, error)
}
