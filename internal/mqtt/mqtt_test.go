package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/step-sensor/internal/logic"
)

func TestTopics(t *testing.T) {
	if Topic != "fitness/step-sensor/steps" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "fitness/step-sensor/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(logic.StepEvent{Timestamp: 1700000000123, Count: 42}, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"step":{"timestamp":1700000000123,"count":42,"event":"SENSOR_STEP","user_id":"alice"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadOmitsEmptyUser(t *testing.T) {
	payload, err := FormatPayload(logic.StepEvent{Timestamp: 5, Count: 1}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, exists := parsed["step"]["user_id"]; exists {
		t.Error("user_id should be omitted when empty")
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SOURCE_CLOSED",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"SOURCE_CLOSED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadReconnectedOmitsReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 3, 0, 0, 0, loc),
		Event:     "HEARTBEAT",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Timestamp != "2026-02-10T08:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.System.Timestamp)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"system":{"event":"STARTUP","config":{}}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "IGNORED", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload should pass through, got %s", payload)
	}
}

func TestFakePublisherRecordsStepPayloads(t *testing.T) {
	f := NewFakePublisher()
	f.UserID = "alice"

	if err := f.Publish(logic.StepEvent{Timestamp: 10, Count: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Publish(logic.StepEvent{Timestamp: 20, Count: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Events) != 2 || len(f.Steps) != 2 {
		t.Fatalf("expected 2 events and steps, got %d/%d", len(f.Events), len(f.Steps))
	}
	want := StepPayload{Timestamp: 20, Count: 2, Event: EventStep, UserID: "alice"}
	if f.Steps[1] != want {
		t.Errorf("step payload: got %+v, want %+v", f.Steps[1], want)
	}
	if f.StepCount() != 2 {
		t.Errorf("StepCount: got %d, want 2", f.StepCount())
	}
}

func TestFakePublisherStepCountEmpty(t *testing.T) {
	if got := NewFakePublisher().StepCount(); got != 0 {
		t.Errorf("StepCount: got %d, want 0", got)
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")

	if err := f.Publish(logic.StepEvent{Timestamp: 1, Count: 1}); err == nil {
		t.Error("expected error")
	}
	if len(f.Events) != 0 {
		t.Errorf("expected no events recorded on error, got %d", len(f.Events))
	}
}

func TestFakePublisherSystemEvents(t *testing.T) {
	f := NewFakePublisher()

	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true})
	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "HEARTBEAT"})

	if got := f.SystemEventNames(); len(got) != 2 || got[0] != "STARTUP" || got[1] != "HEARTBEAT" {
		t.Fatalf("unexpected system events: %v", got)
	}
	if !f.SystemEvents[0].Retained || f.SystemEvents[1].Retained {
		t.Error("retained flag not recorded")
	}

	f.PublishSystemError = errors.New("simulated error")
	if err := f.PublishSystem(SystemEvent{Event: "SHUTDOWN"}); err == nil {
		t.Error("expected error")
	}
	if len(f.SystemEvents) != 2 {
		t.Errorf("expected no new event on error, got %d", len(f.SystemEvents))
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.UserID = "alice"
	f.Publish(logic.StepEvent{Timestamp: 1, Count: 1})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.Connected = true

	f.Reset()

	if len(f.Events) != 0 || len(f.SystemEvents) != 0 || f.Closed || f.Connected {
		t.Errorf("reset left state behind: %+v", f)
	}
	if f.UserID != "alice" {
		t.Errorf("reset should keep the user id, got %q", f.UserID)
	}
}

func TestRealPublisherRequiresBroker(t *testing.T) {
	if _, err := NewRealPublisher(Options{}); err == nil {
		t.Error("expected error for empty broker")
	}
}
