// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/relabs-tech/touch_panel/internal/sensors"
	"github.com/relabs-tech/touch_panel/internal/xpt2046"
)

// ChannelReading is one raw conversion of a slow channel and its value in
// engineering units.
type ChannelReading struct {
	Channel string  `json:"channel"`
	Raw     int16   `json:"raw"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Error   string  `json:"error,omitempty"`
}

type channelReader interface {
	ReadChannel(ch xpt2046.Channel) (int16, error)
}

// probeChannels reads every slow channel once. A failed channel is reported
// in its row and does not stop the others.
func probeChannels(dev channelReader) []ChannelReading {
	var out []ChannelReading
	for _, ch := range []xpt2046.Channel{xpt2046.Battery, xpt2046.AuxInput, xpt2046.Temperature} {
		r := ChannelReading{Channel: ch.String()}
		raw, err := dev.ReadChannel(ch)
		if err != nil {
			r.Error = err.Error()
			out = append(out, r)
			continue
		}
		r.Raw = raw
		switch ch {
		case xpt2046.Battery:
			r.Value, r.Unit = xpt2046.BatteryScale.Volts(raw), "V"
		case xpt2046.AuxInput:
			r.Value, r.Unit = xpt2046.AuxScale.Volts(raw), "V"
		case xpt2046.Temperature:
			r.Value, _ = xpt2046.TemperatureFromDiff(raw)
			r.Unit = "°C"
		}
		out = append(out, r)
	}
	return out
}

func printChannelMap(w io.Writer) {
	fmt.Fprintln(w, "Control byte:")
	for _, f := range sensors.ControlByteFields() {
		fmt.Fprintf(w, "  [%-3s] %-8s %s (%s)\n", f.Bits, f.Name, f.Description, f.Values)
	}
	fmt.Fprintln(w, "Commands:")
	for _, c := range sensors.CommandMap() {
		fmt.Fprintf(w, "  %s  ch%d  %-6s %-12s %s\n", c.Command, c.Channel, c.Name, c.Mode, c.Description)
	}
}

func printReadings(w io.Writer, rs []ChannelReading) {
	for _, r := range rs {
		if r.Error != "" {
			fmt.Fprintf(w, "  %-12s error: %s\n", r.Channel, r.Error)
			continue
		}
		fmt.Fprintf(w, "  %-12s raw=%5d  %8.3f %s\n", r.Channel, r.Raw, r.Value, r.Unit)
	}
}

// RunChannelDebug prints the command map, then reads the slow channels and
// the touch position count times.
func RunChannelDebug(useMock bool, count int, interval time.Duration) error {
	var (
		src *sensors.PanelSource
		err error
	)
	if useMock {
		src, err = sensors.NewMockSource()
	} else {
		src, err = sensors.NewTouchSource()
	}
	if err != nil {
		return err
	}
	defer src.Close()
	dev := src.Device()

	printChannelMap(os.Stdout)
	log.Printf("channel_debug: %s", dev)

	for i := 0; i < count; i++ {
		if i > 0 {
			time.Sleep(interval)
		}
		fmt.Printf("\nRead %d/%d\n", i+1, count)
		printReadings(os.Stdout, probeChannels(dev))
		x, y, z := dev.ReadData()
		fmt.Printf("  %-12s x=%4d y=%4d z=%4d touched=%v\n", "position", x, y, z, dev.Touched())
	}
	return nil
}

// handleCommandMap serves the control byte layout and command table.
func handleCommandMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"control_byte": sensors.ControlByteFields(),
		"commands":     sensors.CommandMap(),
	})
}
