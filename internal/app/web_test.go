package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/touch_panel/internal/config"
	"github.com/relabs-tech/touch_panel/internal/touch"
	"github.com/relabs-tech/touch_panel/internal/xpt2046"
)

func newTestServer(t *testing.T) (*webServer, *httptest.Server) {
	t.Helper()
	cfg := config.Defaults()
	cfg.CalibrationFile = filepath.Join(t.TempDir(), "touch.yaml")
	srv := newWebServer(cfg)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestTouchAPI(t *testing.T) {
	srv, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/touch")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("before data: status = %d, want 503", resp.StatusCode)
	}

	want := pressAt(1000, 2000, 80, 120)
	srv.onTouch(mustJSON(t, want))
	srv.onTouch([]byte("not json"))

	resp, err = http.Get(ts.URL + "/api/touch")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got touch.Event
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("/api/touch mismatch (-want +got):\n%s", diff)
	}
}

func TestAuxAPI(t *testing.T) {
	srv, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/aux")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("before data: status = %d, want 503", resp.StatusCode)
	}

	want := touch.AuxReading{Source: "xpt2046", BatteryVolts: 3.7, AuxVolts: 1.2, TempC: 25, TempF: 77}
	srv.onAux(mustJSON(t, want))

	resp, err = http.Get(ts.URL + "/api/aux")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got touch.AuxReading
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("/api/aux mismatch (-want +got):\n%s", diff)
	}
}

func TestTouchWebsocketStreamsEvents(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, "/ws/touch")

	// The handler subscribes after the upgrade; publish until the first
	// event arrives.
	first := pressAt(10, 20, 1, 2)
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				srv.hub.publish(first)
			}
		}
	}()

	var got touch.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("streamed event mismatch (-want +got):\n%s", diff)
	}
}

func TestEventHubUnsubscribe(t *testing.T) {
	hub := newEventHub()
	ch, unsubscribe := hub.subscribe(1)
	hub.publish(touch.Event{Touched: true})
	hub.publish(touch.Event{}) // dropped, buffer full
	unsubscribe()
	unsubscribe()

	var got []touch.Event
	for ev := range ch {
		got = append(got, ev)
	}
	if diff := cmp.Diff([]touch.Event{{Touched: true}}, got); diff != "" {
		t.Errorf("received mismatch (-want +got):\n%s", diff)
	}
	hub.publish(touch.Event{})
}

// feedPress sends a press of n identical samples followed by a release.
func feedPress(srv *webServer, x, y int16, n int) {
	for i := 0; i < n; i++ {
		ev := touch.Event{Touched: true, Raw: touch.Sample{X: x, Y: y, Z: 900}}
		srv.hub.publish(ev)
	}
	srv.hub.publish(touch.Event{})
}

func readResponse(t *testing.T, conn *websocket.Conn, wantType string) WSResponse {
	t.Helper()
	var resp WSResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON (want %q): %v", wantType, err)
	}
	if resp.Type != wantType {
		t.Fatalf("response type = %q (%s), want %q", resp.Type, resp.Message, wantType)
	}
	return resp
}

func TestCalibrationWebsocketFlow(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, "/ws/calibration")

	if err := conn.WriteJSON(WSMessage{Action: "init", Slot: "bench"}); err != nil {
		t.Fatal(err)
	}
	resp := readResponse(t, conn, "targets")
	wantTargets := []Target{{20, 20}, {300, 220}}
	if diff := cmp.Diff(wantTargets, resp.Targets); diff != "" {
		t.Fatalf("targets mismatch (-want +got):\n%s", diff)
	}
	if resp.Slot != "bench" {
		t.Errorf("slot = %q, want bench", resp.Slot)
	}

	presses := []touch.Sample{{X: 431, Y: 3592}, {X: 3669, Y: 508}}
	for i, p := range presses {
		if err := conn.WriteJSON(WSMessage{Action: "next"}); err != nil {
			t.Fatal(err)
		}
		step := readResponse(t, conn, "step")
		if step.Step != i+1 || *step.Target != wantTargets[i] {
			t.Fatalf("step = %d target %+v, want %d %+v", step.Step, *step.Target, i+1, wantTargets[i])
		}
		// A short press is ignored.
		feedPress(srv, 0, 0, 1)
		feedPress(srv, p.X, p.Y, 5)

		point := readResponse(t, conn, "point")
		if point.Samples != 5 || point.Sample.X != p.X || point.Sample.Y != p.Y {
			t.Fatalf("point = %+v (%d samples), want %+v", *point.Sample, point.Samples, p)
		}
	}

	done := readResponse(t, conn, "complete")
	want, err := xpt2046.CalibrationFromTargets(presses[0], presses[1], 320, 240, false, xpt2046.Rotation1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&want, done.Calibration); diff != "" {
		t.Errorf("calibration mismatch (-want +got):\n%s", diff)
	}

	entry, err := srv.store.Load("bench")
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	if diff := cmp.Diff(want, entry.Calibration); diff != "" {
		t.Errorf("stored calibration mismatch (-want +got):\n%s", diff)
	}

	// Another "next" after completion reports an error.
	if err := conn.WriteJSON(WSMessage{Action: "next"}); err != nil {
		t.Fatal(err)
	}
	readResponse(t, conn, "error")
}

func TestCalibrationSlotsAPI(t *testing.T) {
	srv, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/calibration?slot=missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing slot: status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/calibration")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got struct {
		File  string   `json:"file"`
		Slots []string `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.File != srv.store.Path() || len(got.Slots) != 0 {
		t.Errorf("got %+v, want empty slot list for %s", got, srv.store.Path())
	}
}

func TestCalibrationIgnoresTouchesBeforeStep(t *testing.T) {
	srv, ts := newTestServer(t)
	conn := dial(t, ts, "/ws/calibration")

	if err := conn.WriteJSON(WSMessage{Action: "init"}); err != nil {
		t.Fatal(err)
	}
	readResponse(t, conn, "targets")

	// Tapping the "next" button on the panel itself.
	feedPress(srv, 2000, 2000, 4)
	if err := conn.WriteJSON(WSMessage{Action: "next"}); err != nil {
		t.Fatal(err)
	}
	readResponse(t, conn, "step")

	feedPress(srv, 431, 3592, 3)
	point := readResponse(t, conn, "point")
	want := touch.Sample{X: 431, Y: 3592, Z: 900}
	if diff := cmp.Diff(&want, point.Sample); diff != "" {
		t.Errorf("calibration touch mismatch (-want +got):\n%s", diff)
	}
	if point.Samples != 3 {
		t.Errorf("samples = %d, want 3", point.Samples)
	}
}
