// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/step-sensor/internal/logic"
)

// Topic is the MQTT topic for step events.
const Topic = "fitness/step-sensor/steps"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "fitness/step-sensor/system"

// EventStep is the event name carried in step payloads.
const EventStep = "SENSOR_STEP"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a step event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.StepEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SOURCE_CLOSED" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the MQTT message body for a step event.
type Payload struct {
	Step StepPayload `json:"step"`
}

// StepPayload contains the step event details.
type StepPayload struct {
	Timestamp int64  `json:"timestamp"`
	Count     int    `json:"count"`
	Event     string `json:"event"`
	UserID    string `json:"user_id,omitempty"`
}

// FormatPayload creates the JSON payload for a step event.
func FormatPayload(event logic.StepEvent, userID string) ([]byte, error) {
	payload := Payload{
		Step: StepPayload{
			Timestamp: event.Timestamp,
			Count:     event.Count,
			Event:     EventStep,
			UserID:    userID,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
