// Package ingest turns a line-delimited JSON sensor stream into detector samples.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/sweeney/step-sensor/internal/logic"
)

// SensorAccel is the sensor_type of accelerometer messages.
const SensorAccel = "SENSOR_ACCEL"

var (
	// ErrNotAccel is returned for well-formed messages of another sensor type.
	ErrNotAccel = errors.New("not an accelerometer message")

	// ErrMalformed is returned for lines that cannot be decoded into a sample.
	ErrMalformed = errors.New("malformed message")
)

// Message is the envelope of every message on the sensor stream.
type Message struct {
	SensorType string          `json:"sensor_type"`
	Data       json.RawMessage `json:"data"`
}

// AccelData is the payload of a SENSOR_ACCEL message. Pointers distinguish
// missing fields from zero values.
type AccelData struct {
	T *json.Number `json:"t"`
	X *float64     `json:"x"`
	Y *float64     `json:"y"`
	Z *float64     `json:"z"`
}

// ParseLine decodes one line of the sensor stream.
func ParseLine(line []byte) (logic.Sample, error) {
	var msg Message
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return logic.Sample{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if msg.SensorType != SensorAccel {
		if msg.SensorType == "" {
			return logic.Sample{}, fmt.Errorf("%w: missing sensor_type", ErrMalformed)
		}
		return logic.Sample{}, ErrNotAccel
	}
	if len(msg.Data) == 0 {
		return logic.Sample{}, fmt.Errorf("%w: missing data", ErrMalformed)
	}

	var data AccelData
	dec = json.NewDecoder(bytes.NewReader(msg.Data))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return logic.Sample{}, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}
	if data.T == nil || data.X == nil || data.Y == nil || data.Z == nil {
		return logic.Sample{}, fmt.Errorf("%w: data requires t, x, y and z", ErrMalformed)
	}

	ts, err := parseTimestamp(*data.T)
	if err != nil {
		return logic.Sample{}, fmt.Errorf("%w: t: %v", ErrMalformed, err)
	}

	return logic.Sample{
		Timestamp:    ts,
		Acceleration: logic.Vector{X: *data.X, Y: *data.Y, Z: *data.Z},
	}, nil
}

// parseTimestamp accepts integer and fractional timestamps; fractions are truncated.
func parseTimestamp(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	// float64(MaxInt64) rounds up to 2^63, which is already out of range.
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%s out of range", n)
	}
	return int64(f), nil
}
