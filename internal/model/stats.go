// internal/model/stats.go
package model

import "time"

// StatsReport is one consume-and-reset statistics report.
// Byte counts cover the period since the previous report, not since start.
type StatsReport struct {
	DeviceToPipe uint64        `json:"device_to_pipe_bytes"`
	PipeToDevice uint64        `json:"pipe_to_device_bytes"`
	Period       time.Duration `json:"period"`
	ReportedAt   time.Time     `json:"reported_at"`
}

// DirectionStats is a read-only snapshot of a relay direction
type DirectionStats struct {
	Name          DirectionName  `json:"name"`
	Source        string         `json:"source"`
	Destination   string         `json:"destination"`
	State         DirectionState `json:"state"`
	PendingBytes  uint64         `json:"pending_bytes"`
	TotalBytes    uint64         `json:"total_bytes"`
	ReadFailures  uint64         `json:"read_failures"`
	WriteFailures uint64         `json:"write_failures"`
	LastActivity  *time.Time     `json:"last_activity,omitempty"`
}

// RelayStatus is the coordinator-wide snapshot served by the status API
type RelayStatus struct {
	InstanceID string           `json:"instance_id"`
	StartedAt  time.Time        `json:"started_at"`
	Directions []DirectionStats `json:"directions"`
	LastReport *StatsReport     `json:"last_report,omitempty"`
}
