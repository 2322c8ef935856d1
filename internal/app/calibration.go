// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/relabs-tech/touch_panel/internal/calstore"
	"github.com/relabs-tech/touch_panel/internal/config"
	"github.com/relabs-tech/touch_panel/internal/sensors"
	"github.com/relabs-tech/touch_panel/internal/touch"
	"github.com/relabs-tech/touch_panel/internal/xpt2046"
)

const (
	// pressTimeout bounds the wait for one calibration touch.
	pressTimeout = 60 * time.Second
	// minPressSamples is the shortest press accepted as a calibration touch.
	minPressSamples = 3
)

var errEventsClosed = errors.New("touch event stream closed")

// collectPress waits for one press on events and returns the mean raw
// reading over it and the number of samples averaged. Presses shorter than
// minSamples are ignored.
func collectPress(ctx context.Context, events <-chan touch.Event, minSamples int) (touch.Sample, int, error) {
	var (
		sumX, sumY, sumZ int64
		n                int
	)
	for {
		select {
		case <-ctx.Done():
			return touch.Sample{}, 0, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return touch.Sample{}, 0, errEventsClosed
			}
			if ev.Touched {
				sumX += int64(ev.Raw.X)
				sumY += int64(ev.Raw.Y)
				sumZ += int64(ev.Raw.Z)
				n++
				continue
			}
			if n >= minSamples {
				return touch.Sample{
					X: int16(sumX / int64(n)),
					Y: int16(sumY / int64(n)),
					Z: int16(sumZ / int64(n)),
				}, n, nil
			}
			sumX, sumY, sumZ, n = 0, 0, 0, 0
		}
	}
}

// drainEvents discards the events queued so far and reports whether the
// panel was still pressed in the last of them.
func drainEvents(events <-chan touch.Event) (held bool, err error) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return false, errEventsClosed
			}
			held = ev.Touched
		default:
			return held, nil
		}
	}
}

// freshPress is collectPress for a press that starts after drainEvents. When
// held is set, the press in progress is skipped up to its release.
func freshPress(ctx context.Context, events <-chan touch.Event, held bool, minSamples int) (touch.Sample, int, error) {
	for held {
		select {
		case <-ctx.Done():
			return touch.Sample{}, 0, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return touch.Sample{}, 0, errEventsClosed
			}
			held = ev.Touched
		}
	}
	return collectPress(ctx, events, minSamples)
}

// pollEvents feeds src into a channel every interval until ctx is done.
func pollEvents(ctx context.Context, src touch.Source, interval time.Duration) <-chan touch.Event {
	out := make(chan touch.Event, 16)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			ev, err := src.Next()
			if err != nil {
				log.Printf("calibration: touch read error: %v", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// RunConsoleCalibration walks the user through touching the two calibration
// targets on the real panel and saves the result to slot.
func RunConsoleCalibration(slot string, xySwap bool) error {
	cfg := config.Get()
	if slot == "" {
		slot = cfg.CalibrationSlot
	}

	src, err := sensors.NewTouchSource()
	if err != nil {
		return err
	}
	defer src.Close()
	dev := src.Device()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := pollEvents(ctx, src, time.Duration(cfg.TouchSampleInterval)*time.Millisecond)

	x1, y1, x2, y2 := xpt2046.Targets(cfg.DisplayWidth, cfg.DisplayHeight)
	targets := [2][2]uint16{{x1, y1}, {x2, y2}}
	var points [2]touch.Sample

	stdin := bufio.NewReader(os.Stdin)
	fmt.Printf("Touch panel calibration (%dx%d, rotation %d, slot %q)\n",
		cfg.DisplayWidth, cfg.DisplayHeight, dev.Rotation(), slot)

	for i, tgt := range targets {
		fmt.Printf("\nStep %d/2: touch the display at pixel (%d, %d), hold briefly, then release.\n", i+1, tgt[0], tgt[1])
		fmt.Print("Press ENTER when ready...")
		if _, err := stdin.ReadString('\n'); err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}

		// Touches made while the prompt was waiting do not count.
		held, err := drainEvents(events)
		if err != nil {
			return err
		}
		pctx, pcancel := context.WithTimeout(ctx, pressTimeout)
		p, n, err := freshPress(pctx, events, held, minPressSamples)
		pcancel()
		if err != nil {
			return fmt.Errorf("target %d: %w", i+1, err)
		}
		points[i] = p
		fmt.Printf("  raw x=%d y=%d z=%d (%d samples)\n", p.X, p.Y, p.Z, n)
	}

	cal, err := xpt2046.CalibrationFromTargets(points[0], points[1],
		cfg.DisplayWidth, cfg.DisplayHeight, xySwap, dev.Rotation())
	if err != nil {
		return fmt.Errorf("computing calibration: %w", err)
	}

	store := calstore.Open(cfg.CalibrationFile)
	entry := calstore.Entry{Calibration: cal, Rotation: int(dev.Rotation())}
	if err := store.Save(slot, entry); err != nil {
		return err
	}

	fmt.Printf("\nCalibration saved to %s slot %q\n", store.Path(), slot)
	fmt.Printf("  horizontal: min=%d max=%d res=%d\n", cal.Horizontal.Min, cal.Horizontal.Max, cal.Horizontal.Resolution)
	fmt.Printf("  vertical:   min=%d max=%d res=%d\n", cal.Vertical.Min, cal.Vertical.Max, cal.Vertical.Resolution)
	fmt.Printf("  xy swap:    %v\n", cal.XYSwap)
	return nil
}
