package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/touch_panel/internal/calstore"
	"github.com/relabs-tech/touch_panel/internal/config"
	"github.com/relabs-tech/touch_panel/internal/touch"
)

// eventHub fans touch events out to websocket clients. Slow clients lose
// events rather than stall the MQTT callback.
type eventHub struct {
	mu   sync.Mutex
	subs map[chan touch.Event]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[chan touch.Event]struct{})}
}

func (h *eventHub) subscribe(buf int) (<-chan touch.Event, func()) {
	ch := make(chan touch.Event, buf)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *eventHub) publish(ev touch.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

type webServer struct {
	cfg   *config.Config
	hub   *eventHub
	store *calstore.Store

	mu        sync.RWMutex
	lastTouch touch.Event
	haveTouch bool
	lastAux   touch.AuxReading
	haveAux   bool
}

func newWebServer(cfg *config.Config) *webServer {
	return &webServer{
		cfg:   cfg,
		hub:   newEventHub(),
		store: calstore.Open(cfg.CalibrationFile),
	}
}

func (s *webServer) onTouch(payload []byte) {
	var ev touch.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("MQTT payload unmarshal error (touch): %v", err)
		return
	}
	s.mu.Lock()
	s.lastTouch = ev
	s.haveTouch = true
	s.mu.Unlock()
	s.hub.publish(ev)
}

func (s *webServer) onAux(payload []byte) {
	var r touch.AuxReading
	if err := json.Unmarshal(payload, &r); err != nil {
		log.Printf("MQTT payload unmarshal error (aux): %v", err)
		return
	}
	s.mu.Lock()
	s.lastAux = r
	s.haveAux = true
	s.mu.Unlock()
}

func (s *webServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/touch", s.handleTouch)
	mux.HandleFunc("/api/aux", s.handleAux)
	mux.HandleFunc("/api/calibration", s.handleCalibrationSlots)
	mux.HandleFunc("/api/commands", handleCommandMap)
	mux.HandleFunc("/ws/touch", s.handleTouchWS)
	mux.HandleFunc("/ws/calibration", s.handleCalibrationWS)

	// Static files from ./web as the root
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// handleTouch serves the latest touch event.
func (s *webServer) handleTouch(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ev, ok := s.lastTouch, s.haveTouch
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, ev)
}

// handleAux serves the latest battery / aux / temperature reading.
func (s *webServer) handleAux(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	aux, ok := s.lastAux, s.haveAux
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, aux)
}

// handleCalibrationSlots lists the stored calibrations, or returns one with
// ?slot=name.
func (s *webServer) handleCalibrationSlots(w http.ResponseWriter, r *http.Request) {
	if slot := r.URL.Query().Get("slot"); slot != "" {
		e, err := s.store.Load(slot)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, e)
		return
	}
	slots, err := s.store.Slots()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"file": s.store.Path(), "slots": slots})
}

// handleTouchWS streams touch events until the client goes away.
func (s *webServer) handleTouchWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.hub.subscribe(16)
	defer unsubscribe()

	// Reader goroutine notices the close frame.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.mu.RLock()
	last, ok := s.lastTouch, s.haveTouch
	s.mu.RUnlock()
	if ok {
		if err := conn.WriteJSON(last); err != nil {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket write error: %v", err)
				}
				return
			}
		}
	}
}

func RunWeb() error {
	cfg := config.Get()
	srv := newWebServer(cfg)

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to touch and aux topics
	for topic, handler := range map[string]func([]byte){
		cfg.TopicTouch: srv.onTouch,
		cfg.TopicAux:   srv.onAux,
	} {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			handler(msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("subscribed to MQTT topic %s", topic)
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, srv.routes())
}
