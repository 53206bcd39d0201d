// Package status provides a thread-safe status tracker for the step-sensor daemon.
// It is read by HTTP handlers and by the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/step-sensor/internal/logic"
)

// IngestCounts mirrors the decoder's line counters. This is a local copy to
// avoid importing internal/ingest from status.
type IngestCounts struct {
	Accepted  int64
	Ignored   int64
	Malformed int64
}

// Config contains daemon configuration for display.
type Config struct {
	UserID      string
	Source      string // "collector" or "serial"
	Collector   string
	Serial      string
	Broker      string
	HTTPAddr    string
	HeartbeatMs int64
	QueueSize   int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Phase              logic.Phase
	Counts             logic.EventCounts
	LastStep           logic.StepEvent // zero until the first step
	Ingest             IngestCounts
	QueueDepth         int
	CollectorConnected bool
	MQTTConnected      bool
	InstanceID         string
	StartTime          time.Time
	Now                time.Time
	Config             Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// HasStep reports whether any step has been detected.
func (s Snapshot) HasStep() bool {
	return s.LastStep.Count > 0
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, instance id and config.
func NewTracker(startTime time.Time, instanceID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:  startTime,
			InstanceID: instanceID,
			Config:     cfg,
		},
	}
}

// Update sets the detector phase, counters and queue depth.
// Called from runLoop on every tick.
func (t *Tracker) Update(phase logic.Phase, counts logic.EventCounts, queueDepth int) {
	t.mu.Lock()
	t.snap.Phase = phase
	t.snap.Counts = counts
	t.snap.QueueDepth = queueDepth
	t.mu.Unlock()
}

// RecordStep stores the most recent step.
func (t *Tracker) RecordStep(event logic.StepEvent) {
	t.mu.Lock()
	t.snap.LastStep = event
	t.mu.Unlock()
}

// SetIngest sets the decoder counters.
func (t *Tracker) SetIngest(counts IngestCounts) {
	t.mu.Lock()
	t.snap.Ingest = counts
	t.mu.Unlock()
}

// SetCollectorConnected sets the collector session status.
func (t *Tracker) SetCollectorConnected(connected bool) {
	t.mu.Lock()
	t.snap.CollectorConnected = connected
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
