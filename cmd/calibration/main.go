// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Guided two-point calibration for the XPT2046 touch panel.
//
// The user touches two targets inset 20 px from opposite display corners.
// Raw readings are averaged over each press and extrapolated to the full
// display range; the result is written to a named slot of the calibration
// file (CALIBRATION_FILE) that the producer loads at startup.
//
// Run (stop the producer first, both need the SPI bus):
//
//	sudo go run ./cmd/calibration -slot default
package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/touch_panel/internal/app"
	"github.com/relabs-tech/touch_panel/internal/config"
)

func main() {
	configPath := flag.String("config", "touch_config.txt", "Path to configuration file")
	slot := flag.String("slot", "", "calibration slot to write (default CALIBRATION_SLOT)")
	swap := flag.Bool("swap", false, "panel X wires run along the display's vertical axis")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleCalibration(*slot, *swap); err != nil {
		log.Fatalf("calibration failed: %v", err)
	}
}
