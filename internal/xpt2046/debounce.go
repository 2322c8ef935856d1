// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package xpt2046

// ShouldAcquire reports whether at least minInterval milliseconds passed
// between last and now. Both are free-running millisecond ticks; the unsigned
// subtraction keeps the result correct across a counter wraparound.
func ShouldAcquire(now, last, minInterval uint32) bool {
	return now-last >= minInterval
}

// neverSampled is the initial last-sample tick. It is half the counter range
// away from zero, so the first poll always passes the gate.
const neverSampled uint32 = 0x80000000
