// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of relay event
type EventType string

const (
	EventRelayStarted         EventType = "RELAY_STARTED"
	EventRelayStopped         EventType = "RELAY_STOPPED"
	EventEndpointConnected    EventType = "ENDPOINT_CONNECTED"
	EventEndpointDisconnected EventType = "ENDPOINT_DISCONNECTED"
	EventTransferFailed       EventType = "TRANSFER_FAILED"
	EventStatsReport          EventType = "STATS_REPORT"
)

// Event severities
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// RelayEvent represents an event in the relay
type RelayEvent struct {
	ID        uuid.UUID              `json:"id"`
	EventType EventType              `json:"event_type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Severity  string                 `json:"severity"`
}

// NewRelayEvent creates an event stamped with a fresh ID and the current time
func NewRelayEvent(eventType EventType, source, severity string, data map[string]interface{}) RelayEvent {
	return RelayEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
		Severity:  severity,
	}
}
