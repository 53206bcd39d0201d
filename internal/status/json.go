package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Instance      string          `json:"instance,omitempty"`
	Phase         string          `json:"phase"`
	Steps         int             `json:"steps"`
	LastStep      *LastStepJSON   `json:"last_step,omitempty"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	QueueDepth    int             `json:"queue_depth"`
	Collector     ConnectionJSON  `json:"collector"`
	MQTT          ConnectionJSON  `json:"mqtt"`
	Counts        CountsJSON      `json:"event_counts"`
	Ingest        IngestCountJSON `json:"ingest"`
	Config        ConfigJSON      `json:"config"`
}

// ConnectionJSON reports the state of an outbound connection.
type ConnectionJSON struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address"`
}

// LastStepJSON is the most recent step.
type LastStepJSON struct {
	Timestamp int64 `json:"timestamp"`
	Count     int   `json:"count"`
}

// CountsJSON is the JSON representation of detector counters.
type CountsJSON struct {
	Samples       int `json:"samples"`
	Decisions     int `json:"decisions"`
	Steps         int `json:"steps"`
	PlateauResets int `json:"plateau_resets"`
}

// IngestCountJSON is the JSON representation of decoder counters.
type IngestCountJSON struct {
	Accepted  int64 `json:"accepted"`
	Ignored   int64 `json:"ignored"`
	Malformed int64 `json:"malformed"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	UserID      string `json:"user_id"`
	Source      string `json:"source"`
	Collector   string `json:"collector,omitempty"`
	Serial      string `json:"serial,omitempty"`
	Broker      string `json:"broker,omitempty"`
	HTTPAddr    string `json:"http_addr"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	QueueSize   int    `json:"queue_size"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Instance:      snap.InstanceID,
		Phase:         snap.Phase.String(),
		Steps:         snap.Counts.Steps,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		QueueDepth:    snap.QueueDepth,
		Collector:     ConnectionJSON{Connected: snap.CollectorConnected, Address: snap.Config.Collector},
		MQTT:          ConnectionJSON{Connected: snap.MQTTConnected, Address: snap.Config.Broker},
		Counts: CountsJSON{
			Samples:       snap.Counts.Samples,
			Decisions:     snap.Counts.Decisions,
			Steps:         snap.Counts.Steps,
			PlateauResets: snap.Counts.PlateauResets,
		},
		Ingest: IngestCountJSON{
			Accepted:  snap.Ingest.Accepted,
			Ignored:   snap.Ingest.Ignored,
			Malformed: snap.Ingest.Malformed,
		},
		Config: ConfigJSON{
			UserID:      snap.Config.UserID,
			Source:      snap.Config.Source,
			Collector:   snap.Config.Collector,
			Serial:      snap.Config.Serial,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			HeartbeatMs: snap.Config.HeartbeatMs,
			QueueSize:   snap.Config.QueueSize,
		},
	}
	if snap.HasStep() {
		inner.LastStep = &LastStepJSON{Timestamp: snap.LastStep.Timestamp, Count: snap.LastStep.Count}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
