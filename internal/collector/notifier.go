package collector

import (
	"encoding/json"
	"fmt"

	"github.com/sweeney/step-sensor/internal/logic"
)

// Outbound message constants.
const (
	SensorServerMessage = "SENSOR_SERVER_MESSAGE"
	MessageStep         = "SENSOR_STEP"
)

// StepNotifier delivers step events to the collection server.
type StepNotifier interface {
	NotifyStep(event logic.StepEvent) error
}

// StepMessage is the wire format of a step notification.
type StepMessage struct {
	UserID     string   `json:"user_id"`
	SensorType string   `json:"sensor_type"`
	Message    string   `json:"message"`
	Data       StepData `json:"data"`
}

// StepData carries the step timestamp.
type StepData struct {
	Timestamp int64 `json:"timestamp"`
}

// FormatStepMessage returns the newline-terminated JSON notification for event.
func FormatStepMessage(userID string, event logic.StepEvent) ([]byte, error) {
	data, err := json.Marshal(StepMessage{
		UserID:     userID,
		SensorType: SensorServerMessage,
		Message:    MessageStep,
		Data:       StepData{Timestamp: event.Timestamp},
	})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// NotifyStep sends a step notification over the session.
func (c *Conn) NotifyStep(event logic.StepEvent) error {
	msg, err := FormatStepMessage(c.userID, event)
	if err != nil {
		return fmt.Errorf("format step message: %w", err)
	}
	if _, err := c.Write(msg); err != nil {
		return fmt.Errorf("send step message: %w", err)
	}
	return nil
}
