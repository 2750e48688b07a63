// Package alert defines anomaly events and their local-first routing:
// every event is recorded durably before any transmission is attempted,
// so alerting never depends on network availability.
package alert

import "time"

// Severity grades an event 1-3, matching the wire schema.
type Severity int

const (
	SeverityInfo     Severity = 1
	SeverityWarning  Severity = 2
	SeverityCritical Severity = 3
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event types raised by the pipeline.
const (
	TypeOverspeed        = "overspeed"
	TypeBetzExceeded     = "betz_exceeded"
	TypeStorageDegraded  = "storage_degraded"
	TypeStorageRecovered = "storage_recovered"
	TypeSensorFault      = "sensor_fault"
	TypeBufferOverflow   = "buffer_overflow"
)

// Event is an anomaly notice created on demand by any component.
type Event struct {
	Type      string
	Message   string
	Severity  Severity
	Timestamp time.Time
}

func New(eventType, message string, severity Severity, at time.Time) Event {
	return Event{
		Type:      eventType,
		Message:   message,
		Severity:  severity,
		Timestamp: at,
	}
}

// Sink receives events. Dispatch must not block the sampling path; a
// sink that performs I/O handles its own failure and never reports it
// back into the pipeline.
type Sink interface {
	Dispatch(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Dispatch(e Event) {
	f(e)
}

// Fanout dispatches each event to every sink in order.
type Fanout []Sink

func (f Fanout) Dispatch(e Event) {
	for _, s := range f {
		s.Dispatch(e)
	}
}
