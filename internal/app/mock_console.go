// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/touch_panel/internal/sensors"
	"github.com/relabs-tech/touch_panel/internal/touch"
)

// RunMockConsole drives the full acquisition pipeline against the simulated
// panel and prints every change, without MQTT or hardware.
func RunMockConsole() error {
	src, err := sensors.NewMockSource()
	if err != nil {
		return err
	}
	defer src.Close()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var (
		last    touch.Event
		started bool
	)
	for range ticker.C {
		ev, err := src.Next()
		if err != nil {
			return err
		}
		if started && !changed(last, ev) {
			continue
		}
		started = true
		last = ev
		fmt.Println(formatTouch(ev))
	}
	return nil
}
