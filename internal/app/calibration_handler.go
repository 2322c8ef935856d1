// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/touch_panel/internal/calstore"
	"github.com/relabs-tech/touch_panel/internal/touch"
	"github.com/relabs-tech/touch_panel/internal/xpt2046"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Target is a calibration point in display pixels.
type Target struct {
	X uint16 `json:"x"`
	Y uint16 `json:"y"`
}

// WSMessage is sent by the browser.
type WSMessage struct {
	Action string `json:"action"` // init, next, cancel
	Slot   string `json:"slot,omitempty"`
	XYSwap bool   `json:"xy_swap,omitempty"`
}

// WSResponse is sent to the browser.
type WSResponse struct {
	Type        string               `json:"type"` // targets, step, point, complete, error
	Step        int                  `json:"step,omitempty"`
	Target      *Target              `json:"target,omitempty"`
	Targets     []Target             `json:"targets,omitempty"`
	Sample      *touch.Sample        `json:"sample,omitempty"`
	Samples     int                  `json:"samples,omitempty"`
	Calibration *xpt2046.Calibration `json:"calibration,omitempty"`
	Slot        string               `json:"slot,omitempty"`
	Message     string               `json:"message,omitempty"`
}

// CalibrationSession holds the state of one guided calibration. Touches come
// from the producer through MQTT, so the panel keeps serving its normal
// publishers while it is being calibrated.
type CalibrationSession struct {
	conn     *websocket.Conn
	events   <-chan touch.Event
	store    *calstore.Store
	slot     string
	xySwap   bool
	width    uint16
	height   uint16
	rotation xpt2046.Rotation
	targets  [2]Target
	points   [2]touch.Sample
	step     int
}

// handleCalibrationWS runs one calibration session per websocket connection.
func (s *webServer) handleCalibrationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Subscribe before the first message so no touch is missed.
	events, unsubscribe := s.hub.subscribe(64)
	defer unsubscribe()

	session := &CalibrationSession{
		conn:     conn,
		events:   events,
		store:    s.store,
		slot:     s.cfg.CalibrationSlot,
		width:    s.cfg.DisplayWidth,
		height:   s.cfg.DisplayHeight,
		rotation: xpt2046.NormalizeRotation(s.cfg.TouchRotation),
	}
	x1, y1, x2, y2 := xpt2046.Targets(session.width, session.height)
	session.targets = [2]Target{{x1, y1}, {x2, y2}}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Main message loop
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("calibration: websocket read error: %v", err)
			return
		}

		switch msg.Action {
		case "init":
			if msg.Slot != "" {
				session.slot = msg.Slot
			}
			session.xySwap = msg.XYSwap
			session.step = 0
			log.Printf("calibration: initialized for slot %q", session.slot)
			session.send(WSResponse{Type: "targets", Targets: session.targets[:], Slot: session.slot})

		case "next":
			if err := session.runNextStep(ctx); err != nil {
				session.sendError(err.Error())
			}

		case "cancel":
			log.Printf("calibration: cancelled by user")
			return

		default:
			session.sendError(fmt.Sprintf("unknown action %q", msg.Action))
		}
	}
}

// runNextStep collects the touch for the current target; after the last
// target it computes and saves the calibration.
func (s *CalibrationSession) runNextStep(ctx context.Context) error {
	if s.step >= len(s.targets) {
		return fmt.Errorf("calibration already complete, send init to start over")
	}
	tgt := s.targets[s.step]

	// Touches queued before the target is shown do not count for it.
	held, err := drainEvents(s.events)
	if err != nil {
		return err
	}
	s.send(WSResponse{Type: "step", Step: s.step + 1, Target: &tgt})

	pctx, cancel := context.WithTimeout(ctx, pressTimeout)
	p, n, err := freshPress(pctx, s.events, held, minPressSamples)
	cancel()
	if err != nil {
		return fmt.Errorf("target %d: %w", s.step+1, err)
	}
	s.points[s.step] = p
	s.send(WSResponse{Type: "point", Step: s.step + 1, Sample: &p, Samples: n})
	s.step++

	if s.step < len(s.targets) {
		return nil
	}
	return s.complete()
}

func (s *CalibrationSession) complete() error {
	cal, err := xpt2046.CalibrationFromTargets(s.points[0], s.points[1], s.width, s.height, s.xySwap, s.rotation)
	if err != nil {
		s.step = 0
		return fmt.Errorf("touches too close together, start over: %w", err)
	}
	entry := calstore.Entry{Calibration: cal, Rotation: int(s.rotation)}
	if err := s.store.Save(s.slot, entry); err != nil {
		return err
	}
	log.Printf("calibration: saved slot %q to %s", s.slot, s.store.Path())

	s.send(WSResponse{Type: "complete", Calibration: &cal, Slot: s.slot})
	return nil
}

func (s *CalibrationSession) send(resp WSResponse) {
	if err := s.conn.WriteJSON(resp); err != nil {
		log.Printf("calibration: websocket write error: %v", err)
	}
}

func (s *CalibrationSession) sendError(message string) {
	s.send(WSResponse{
		Type:    "error",
		Message: message,
	})
}
