package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/sweeney/step-sensor/internal/logic"
)

// FakePublisher records what a RealPublisher would have sent.
type FakePublisher struct {
	// UserID is stamped into step payloads, as RealPublisher does.
	UserID string

	// Events are the step events handed to Publish, in order.
	Events []logic.StepEvent

	// Steps are the step payloads as they would appear on Topic.
	Steps []StepPayload

	// SystemEvents are the lifecycle events handed to PublishSystem.
	SystemEvents []SystemEvent

	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish formats the step the way the broker would receive it and records it.
func (f *FakePublisher) Publish(event logic.StepEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	data, err := FormatPayload(event, f.UserID)
	if err != nil {
		return err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode step payload: %w", err)
	}
	f.Events = append(f.Events, event)
	f.Steps = append(f.Steps, p.Step)
	return nil
}

// PublishSystem records the system event once it formats cleanly.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	if _, err := FormatSystemPayload(event); err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// StepCount returns the running count carried by the last published step.
func (f *FakePublisher) StepCount() int {
	if len(f.Steps) == 0 {
		return 0
	}
	return f.Steps[len(f.Steps)-1].Count
}

// SystemEventNames lists the published system events by name.
func (f *FakePublisher) SystemEventNames() []string {
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected returns Connected.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events and injected errors, keeping UserID.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{UserID: f.UserID}
}
