package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/touch_panel/internal/config"
	"github.com/relabs-tech/touch_panel/internal/sensors"
	"github.com/relabs-tech/touch_panel/internal/touch"
)

// panel is what the producer needs from a touch controller.
type panel interface {
	touch.Source
	touch.AuxSource
	Close() error
}

// lockedPanel serializes the touch and aux loops on the shared bus.
type lockedPanel struct {
	mu sync.Mutex
	p  panel
}

func (l *lockedPanel) Next() (touch.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Next()
}

func (l *lockedPanel) ReadAux() (touch.AuxReading, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.ReadAux()
}

// publishFunc sends v as JSON to topic.
type publishFunc func(topic string, v any) error

func mqttPublisher(client mqtt.Client) publishFunc {
	return func(topic string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return err
		}
		token := client.Publish(topic, 0, true, payload)
		token.Wait()
		return token.Error()
	}
}

func RunTouchProducer(useMock bool) error {
	log.Println("starting touch-panel producer")

	cfg := config.Get()

	// --- Choose touch source (mock vs real panel) ---
	var (
		src panel
		err error
	)
	if useMock {
		log.Println("using mock touch panel")
		src, err = sensors.NewMockSource()
	} else {
		src, err = sensors.NewTouchSource()
	}
	if err != nil {
		return err
	}
	defer src.Close()

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s, starting publish loops", cfg.MQTTBroker)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shared := &lockedPanel{p: src}
	pub := mqttPublisher(client)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		interval := time.Duration(cfg.TouchSampleInterval) * time.Millisecond
		return touchLoop(ctx, shared, interval, cfg.TopicTouch, cfg.TopicPixel, pub)
	})
	if cfg.AuxSampleInterval > 0 {
		g.Go(func() error {
			interval := time.Duration(cfg.AuxSampleInterval) * time.Millisecond
			return auxLoop(ctx, shared, interval, cfg.TopicAux, pub)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		log.Println("producer: shutting down")
		return nil
	}
	return err
}

// touchLoop polls src every interval and publishes an event each time the
// panel changes. While touched, the pixel is also published to pixelTopic.
func touchLoop(ctx context.Context, src touch.Source, interval time.Duration, topic, pixelTopic string, pub publishFunc) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		last    touch.Event
		started bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		ev, err := src.Next()
		if err != nil {
			log.Printf("touch read error: %v", err)
			continue
		}
		if started && !changed(last, ev) {
			continue
		}
		started = true
		last = ev

		if err := pub(topic, ev); err != nil {
			log.Printf("MQTT publish error (touch): %v", err)
			continue
		}
		if ev.Touched && pixelTopic != "" {
			if err := pub(pixelTopic, ev.Pixel); err != nil {
				log.Printf("MQTT publish error (pixel): %v", err)
			}
		}
	}
}

// changed reports whether cur is worth publishing after prev: a press, a
// release, or a move while pressed.
func changed(prev, cur touch.Event) bool {
	if prev.Touched != cur.Touched {
		return true
	}
	if !cur.Touched {
		return false
	}
	return prev.Raw.X != cur.Raw.X || prev.Raw.Y != cur.Raw.Y || prev.Pixel != cur.Pixel
}

func auxLoop(ctx context.Context, src touch.AuxSource, interval time.Duration, topic string, pub publishFunc) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		r, err := src.ReadAux()
		if err != nil {
			log.Printf("aux read error: %v", err)
			continue
		}
		if err := pub(topic, r); err != nil {
			log.Printf("MQTT publish error (aux): %v", err)
			continue
		}
		log.Printf("aux: battery=%.2fV aux=%.2fV temp=%.1f°C", r.BatteryVolts, r.AuxVolts, r.TempC)
	}
}
