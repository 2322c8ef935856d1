// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/touch_panel/internal/app"
	"github.com/relabs-tech/touch_panel/internal/config"
)

func main() {
	configPath := flag.String("config", "./touch_config.txt", "path to configuration file")
	useMock := flag.Bool("mock", false, "use the simulated panel instead of the SPI hardware")
	flag.Parse()

	log.Println("starting touch-panel producer (XPT2046 → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunTouchProducer(*useMock); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
