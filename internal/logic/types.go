// Package logic contains the pure step-detection state machine.
// This package has NO external dependencies (no network, MQTT, GPIO, or OS).
// Sample timestamps are carried through as the integers the sensor feed supplies;
// wall-clock time is only used for heartbeats and is always injected.
package logic

import (
	"math"
	"time"
)

// Detector tuning. The slope scale is empirical: only the sign of the scaled,
// truncated slope drives transitions, so changing it widens or narrows the
// band of slopes that count as flat.
const (
	WindowSize   = 16   // samples per slope decision, including the window start
	PlateauLimit = 10   // consecutive flat decisions before a forced reset
	SlopeScale   = 5000 // 10^3 * 5
)

// Phase is the current trend of the magnitude signal.
type Phase int

const (
	PhaseNatural Phase = iota
	PhaseIncreasing
	PhaseDecreasing
)

func (p Phase) String() string {
	switch p {
	case PhaseNatural:
		return "NATURAL"
	case PhaseIncreasing:
		return "INCREASING"
	case PhaseDecreasing:
		return "DECREASING"
	}
	return "UNKNOWN"
}

// Vector is a filtered tri-axial acceleration reading.
type Vector struct {
	X, Y, Z float64
}

// Magnitude returns the Euclidean norm of the vector.
func (v Vector) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sample is a single timestamped accelerometer reading.
type Sample struct {
	Timestamp    int64 // sensor time, milliseconds
	Acceleration Vector
}

// StepEvent marks a detected footstep.
type StepEvent struct {
	Timestamp int64 // timestamp of the sample that completed the step
	Count     int   // steps detected so far, including this one
}

// State is the detector's between-sample state.
type State struct {
	Phase Phase
	// Samples accumulated in the current window, 0..WindowSize-1
	WindowCount int
	// Captured from the sample at WindowCount == 0
	WindowStartTime      int64
	WindowStartMagnitude float64
	// Consecutive zero-slope decisions while Increasing or Decreasing
	PlateauCount int
}

// EventCounts tracks detector activity since construction.
type EventCounts struct {
	Samples       int
	Decisions     int
	Steps         int
	PlateauResets int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Phase     Phase
	Counts    EventCounts
}
