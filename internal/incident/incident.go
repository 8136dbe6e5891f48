// Package incident defines the inbound incident payload: one reported
// operational problem plus its raw evidence (log lines, alarms).
package incident

import "time"

// Alarm is a single monitoring alarm attached to an incident.
type Alarm struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// Incident is the triage request body. Logs and Alarms are both optional;
// an incident with neither produces an empty plan, not an error.
type Incident struct {
	ID          string   `json:"incident_id,omitempty"`
	Description string   `json:"description,omitempty"`
	Logs        []string `json:"logs,omitempty"`
	Alarms      []Alarm  `json:"alarms,omitempty"`
}

// HasLogs reports whether the incident carries log evidence.
func (in *Incident) HasLogs() bool { return len(in.Logs) > 0 }

// HasAlarms reports whether the incident carries alarm evidence.
func (in *Incident) HasAlarms() bool { return len(in.Alarms) > 0 }
