package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/touch_panel/internal/config"
	"github.com/relabs-tech/touch_panel/internal/touch"
)

// DisplayData holds the latest data for the status display
type DisplayData struct {
	mu sync.RWMutex

	touch     touch.Event
	haveTouch bool
	aux       touch.AuxReading
	haveAux   bool
}

type displaySnapshot struct {
	touch     touch.Event
	haveTouch bool
	aux       touch.AuxReading
	haveAux   bool
}

func (d *DisplayData) snapshot() displaySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return displaySnapshot{
		touch:     d.touch,
		haveTouch: d.haveTouch,
		aux:       d.aux,
		haveAux:   d.haveAux,
	}
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	// The driver always addresses 0x3C; config rejects any other address.
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.StatusDisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderLines([]string{"Touch Panel", "XPT2046", "Waiting..."}), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	touchToken := client.Subscribe(cfg.TopicTouch, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev touch.Event
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("display: touch unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.touch = ev
		data.haveTouch = true
		data.mu.Unlock()
	})
	touchToken.Wait()
	if touchToken.Error() != nil {
		return touchToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicTouch)

	auxToken := client.Subscribe(cfg.TopicAux, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r touch.AuxReading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("display: aux unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.aux = r
		data.haveAux = true
		data.mu.Unlock()
	})
	auxToken.Wait()
	if auxToken.Error() != nil {
		return auxToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicAux)

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.StatusDisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		img := renderLines(statusLines(data.snapshot()))
		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

// statusLines lays out up to four lines of text for the 128x64 panel.
func statusLines(s displaySnapshot) []string {
	var lines []string
	switch {
	case !s.haveTouch:
		lines = append(lines, "Touch: waiting")
	case s.touch.Touched:
		lines = append(lines,
			fmt.Sprintf("X:%4d Y:%4d", s.touch.Pixel.X, s.touch.Pixel.Y),
			fmt.Sprintf("Z:%4d", s.touch.Raw.Z),
		)
	default:
		lines = append(lines, "Touch: released")
	}

	if !s.haveAux {
		lines = append(lines, "Aux: waiting")
		return lines
	}
	lines = append(lines,
		fmt.Sprintf("Bat: %.2fV", s.aux.BatteryVolts),
		fmt.Sprintf("T: %.1fC", s.aux.TempC),
	)
	return lines
}

func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range lines {
		if i == 4 {
			break
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return img
}
