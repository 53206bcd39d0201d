package logic

import (
	"math"
	"time"
)

// Detector tracks gait phase and detects steps one sample at a time.
// Not safe for concurrent use; callers must serialize Process calls.
type Detector struct {
	state         State
	counts        EventCounts
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewDetector creates a detector in the Natural phase with all counters zero.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(startTime time.Time) *Detector {
	return &Detector{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process consumes one sample and returns a step event, or nil.
// A slope decision is made on every WindowSize-th sample; all other samples
// only advance the window.
func (d *Detector) Process(s Sample) *StepEvent {
	d.counts.Samples++
	magnitude := s.Acceleration.Magnitude()

	if d.state.WindowCount == 0 {
		d.state.WindowStartTime = s.Timestamp
		d.state.WindowStartMagnitude = magnitude
	}

	if d.state.WindowCount < WindowSize-1 {
		d.state.WindowCount++
		return nil
	}

	slope := Slope(d.state.WindowStartTime, s.Timestamp, d.state.WindowStartMagnitude, magnitude)
	d.state.WindowCount = 0
	d.counts.Decisions++

	var event *StepEvent
	if d.transition(slope) {
		d.counts.Steps++
		event = &StepEvent{Timestamp: s.Timestamp, Count: d.counts.Steps}
	}

	// Stall recovery overrides whatever the transition decided.
	if d.state.PlateauCount == PlateauLimit {
		d.state = State{}
		d.counts.PlateauResets++
	}

	return event
}

// transition applies one slope decision to the phase machine and reports
// whether it completed a step (Decreasing followed by a rising slope).
func (d *Detector) transition(slope int64) bool {
	switch d.state.Phase {
	case PhaseNatural:
		d.state.PlateauCount = 0
		if slope > 0 {
			d.state.Phase = PhaseIncreasing
		} else if slope < 0 {
			d.state.Phase = PhaseDecreasing
		}

	case PhaseIncreasing:
		if slope == 0 {
			d.state.PlateauCount++
			return false
		}
		d.state.PlateauCount = 0
		if slope < 0 {
			d.state.Phase = PhaseDecreasing
		}

	case PhaseDecreasing:
		if slope == 0 {
			d.state.PlateauCount++
			return false
		}
		d.state.PlateauCount = 0
		if slope > 0 {
			d.state.Phase = PhaseIncreasing
			return true
		}
	}
	return false
}

// Slope returns the scaled rate of change of magnitude over a window,
// truncated toward zero. Equal start and end times yield 0, as does a NaN
// result; infinite results saturate to the int64 range.
func Slope(startTime, endTime int64, startMag, endMag float64) int64 {
	dt := endTime - startTime
	if dt == 0 {
		return 0
	}

	raw := math.Trunc((endMag - startMag) / float64(dt) * SlopeScale)
	switch {
	case math.IsNaN(raw):
		return 0
	case raw >= math.MaxInt64:
		return math.MaxInt64
	case raw <= math.MinInt64:
		return math.MinInt64
	}
	return int64(raw)
}

// Reset returns the detector to the state of a freshly constructed one.
// Event counts and heartbeat timing are kept.
func (d *Detector) Reset() {
	d.state = State{}
}

// State returns a copy of the current detector state.
func (d *Detector) State() State {
	return d.state
}

// Phase returns the current phase.
func (d *Detector) Phase() Phase {
	return d.state.Phase
}

// Counts returns a copy of the event counts.
func (d *Detector) Counts() EventCounts {
	return d.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Phase:     d.state.Phase,
		Counts:    d.counts,
	}
}
