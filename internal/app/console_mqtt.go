package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/touch_panel/internal/config"
	"github.com/relabs-tech/touch_panel/internal/touch"
)

func formatTouch(ev touch.Event) string {
	if !ev.Touched {
		return "[TOUCH] released"
	}
	return fmt.Sprintf(
		"[TOUCH] raw x=%4d y=%4d z=%4d  pixel x=%4d y=%4d",
		ev.Raw.X, ev.Raw.Y, ev.Raw.Z, ev.Pixel.X, ev.Pixel.Y,
	)
}

func formatAux(r touch.AuxReading) string {
	return fmt.Sprintf(
		"[AUX  ] battery=%5.2fV aux=%5.3fV temp=%5.1f°C (%5.1f°F)",
		r.BatteryVolts, r.AuxVolts, r.TempC, r.TempF,
	)
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to touch events
	touchToken := client.Subscribe(cfg.TopicTouch, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev touch.Event
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("console: touch unmarshal error: %v", err)
			return
		}
		fmt.Println(formatTouch(ev))
	})
	touchToken.Wait()
	if touchToken.Error() != nil {
		return touchToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTouch)

	// Subscribe to aux readings
	auxToken := client.Subscribe(cfg.TopicAux, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r touch.AuxReading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("console: aux unmarshal error: %v", err)
			return
		}
		fmt.Println(formatAux(r))
	})
	auxToken.Wait()
	if auxToken.Error() != nil {
		return auxToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicAux)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
