// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xpt2046

import "time"

// irqWaitTimeout bounds each WaitForEdge so Halt is noticed.
const irqWaitTimeout = 100 * time.Millisecond

// watchIRQ arms the device on every PENIRQ falling edge.
func (d *Device) watchIRQ() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		default:
		}
		if d.irq.WaitForEdge(irqWaitTimeout) {
			d.Wake()
		}
	}
}
