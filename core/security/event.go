package security

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Severity grades a security event.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Elevated reports whether s counts toward the hourly threat figure.
func (s Severity) Elevated() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Event is a single security incident. Events are immutable once built.
type Event struct {
	ID        uuid.UUID
	Type      string
	Timestamp time.Time
	Severity  Severity // optional
	Data      map[string]any
}

// NewEvent builds an event with a fresh identifier. Data is copied.
func NewEvent(eventType string, severity Severity, data map[string]any, now time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: now.UTC(),
		Severity:  severity,
		Data:      maps.Clone(data),
	}
}

// MarshalJSON flattens contextual data next to the fixed fields. Fixed fields
// win over data keys of the same name.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Data)+4)
	maps.Copy(out, e.Data)
	out["id"] = e.ID.String()
	out["type"] = e.Type
	out["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	if e.Severity != "" {
		out["severity"] = string(e.Severity)
	} else {
		delete(out, "severity")
	}
	return json.Marshal(out)
}

// DataJSON encodes only the contextual data, as stored in the details column.
func (e Event) DataJSON() ([]byte, error) {
	if len(e.Data) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(e.Data)
}
