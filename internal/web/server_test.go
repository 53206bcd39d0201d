package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/step-sensor/internal/logic"
	"github.com/sweeney/step-sensor/internal/status"
)

func newTestServer(t *testing.T, hub *Hub) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		UserID:      "alice",
		Source:      "collector",
		Collector:   "none.cs.umass.edu:8888",
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":8080",
		HeartbeatMs: 900000,
		QueueSize:   256,
	}
	tr := status.NewTracker(start, "abc123", cfg)
	srv := New(":0", tr, hub)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(logic.PhaseDecreasing, logic.EventCounts{Samples: 640, Decisions: 40, Steps: 5}, 2)
	tr.RecordStep(logic.StepEvent{Timestamp: 1700000000000, Count: 5})
	tr.SetMQTTConnected(true)
	tr.SetCollectorConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Phase != "DECREASING" {
		t.Errorf("Phase: got %q, want DECREASING", sj.Status.Phase)
	}
	if sj.Status.Steps != 5 {
		t.Errorf("Steps: got %d, want 5", sj.Status.Steps)
	}
	if sj.Status.LastStep == nil || sj.Status.LastStep.Timestamp != 1700000000000 {
		t.Errorf("LastStep: got %+v", sj.Status.LastStep)
	}
	if !sj.Status.MQTT.Connected || !sj.Status.Collector.Connected {
		t.Error("expected both connections up")
	}
	if sj.Status.Config.UserID != "alice" {
		t.Errorf("Config.UserID: got %q", sj.Status.Config.UserID)
	}
	if sj.Status.Event != "" {
		t.Errorf("expected no event in web status, got %q", sj.Status.Event)
	}
}

func TestHTMLEndpoints(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(logic.PhaseIncreasing, logic.EventCounts{Steps: 42}, 0)

	for _, path := range []string{"/", "/index.html"} {
		resp, body := get(t, ts.URL+path)
		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q", path, ct)
		}
		if !strings.Contains(body, "Step Sensor") {
			t.Errorf("%s: missing title", path)
		}
		if !strings.Contains(body, ">42<") {
			t.Errorf("%s: missing step count", path)
		}
		if !strings.Contains(body, "INCREASING") {
			t.Errorf("%s: missing phase", path)
		}
	}
}

func TestServeAndShutdown(t *testing.T) {
	tr := status.NewTracker(time.Now(), "abc123", status.Config{UserID: "alice"})
	tr.Update(logic.PhaseNatural, logic.EventCounts{Steps: 7}, 0)
	srv := New("", tr, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	_, body := get(t, "http://"+ln.Addr().String()+"/index.json")
	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Steps != 7 {
		t.Errorf("Steps: got %d, want 7", sj.Status.Steps)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case err := <-served:
		if err != http.ErrServerClosed {
			t.Errorf("Serve returned %v, want ErrServerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := get(t, ts.URL+"/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestWebsocketRouteRequiresHub(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := get(t, ts.URL+"/ws")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404 without a hub", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, nil)

	var sj status.StatusJSON
	_, body := get(t, ts.URL+"/index.json")
	json.Unmarshal([]byte(body), &sj)
	if sj.Status.Steps != 0 || sj.Status.LastStep != nil {
		t.Errorf("expected no steps initially, got %d", sj.Status.Steps)
	}

	tr.Update(logic.PhaseIncreasing, logic.EventCounts{Steps: 1}, 0)
	tr.RecordStep(logic.StepEvent{Timestamp: 10, Count: 1})

	_, body = get(t, ts.URL+"/index.json")
	json.Unmarshal([]byte(body), &sj)
	if sj.Status.Steps != 1 || sj.Status.LastStep == nil {
		t.Errorf("expected one step after update, got %d", sj.Status.Steps)
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebsocketReceivesSteps(t *testing.T) {
	hub := startHub(t)
	ts, _ := newTestServer(t, hub)

	a := dialWS(t, ts)
	b := dialWS(t, ts)
	waitForClients(t, hub, 2)

	hub.BroadcastStep(logic.StepEvent{Timestamp: 1234, Count: 3})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}

		var msg struct {
			Type    string      `json:"type"`
			Payload StepMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid JSON %s: %v", data, err)
		}
		if msg.Type != "step" {
			t.Errorf("type: got %q, want step", msg.Type)
		}
		if msg.Payload != (StepMessage{Timestamp: 1234, Count: 3}) {
			t.Errorf("payload: got %+v", msg.Payload)
		}
	}
}

func TestWebsocketClientDisconnectUnregisters(t *testing.T) {
	hub := startHub(t)
	ts, _ := newTestServer(t, hub)

	conn := dialWS(t, ts)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestBroadcastStepNeverBlocks(t *testing.T) {
	// Not running: nothing drains the broadcast queue.
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.BroadcastStep(logic.StepEvent{Timestamp: int64(i), Count: i + 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastStep blocked on a full queue")
	}
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	ts, _ := newTestServer(t, hub)

	conn := dialWS(t, ts)
	waitForClients(t, hub, 1)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Error("expected the connection to close")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected no clients after stop, got %d", hub.ClientCount())
	}
}
