package planner

import (
	"time"

	"github.com/linnemanlabs/sift/internal/analysis"
)

// Status tracks where a triage run is in its lifecycle.
type Status string

const (
	// StatusPending means created, not yet started
	StatusPending Status = "pending"

	// StatusInProgress means currently being processed
	StatusInProgress Status = "in_progress"

	// StatusComplete means finished with a successful report
	StatusComplete Status = "complete"

	// StatusFailed means finished with a failure envelope
	StatusFailed Status = "failed"
)

// Run is one triage run over one incident, as stored and served by the API.
type Run struct {
	ID          string    `json:"id"`
	IncidentID  string    `json:"incident_id"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	Report      *Report   `json:"report,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Duration    float64   `json:"duration_seconds,omitempty"`
}

// Report is the assembled triage report. A failed run carries only Success,
// Error and AnalysisTimestamp.
type Report struct {
	Success           bool             `json:"success"`
	Error             string           `json:"error,omitempty"`
	IncidentID        string           `json:"incident_id,omitempty"`
	AnalysisTimestamp time.Time        `json:"analysis_timestamp"`
	InputSummary      *InputSummary    `json:"input_summary,omitempty"`
	AnalysisResults   []ResultDigest   `json:"analysis_results"`
	Summary           *Summary         `json:"summary,omitempty"`
	Recommendations   *Recommendations `json:"recommendations,omitempty"`
}

// InputSummary echoes what evidence the incident provided.
type InputSummary struct {
	LogsProvided        bool   `json:"logs_provided"`
	AlarmsProvided      bool   `json:"alarms_provided"`
	IncidentDescription string `json:"incident_description"`
}

// ResultDigest is the per-task digest in the report: counts, not payloads.
type ResultDigest struct {
	Analyzer         string  `json:"analyzer"`
	Success          bool    `json:"success"`
	Confidence       float64 `json:"confidence"`
	FindingsCount    int     `json:"findings_count"`
	SuggestionsCount int     `json:"suggestions_count"`
}

// Summary carries the aggregation result verbatim.
type Summary struct {
	Success     bool               `json:"success"`
	Confidence  float64            `json:"confidence"`
	Findings    []analysis.Finding `json:"findings"`
	Suggestions []string           `json:"suggestions"`
}

// Recommendations buckets the summary's suggestions by their priority
// markers. PreventiveMeasures is a de-duplicated set in first-seen order:
// the fixed baseline followed by one entry per distinct observed root-cause
// category.
type Recommendations struct {
	ImmediateActions   []string `json:"immediate_actions"`
	FollowUpActions    []string `json:"follow_up_actions"`
	PreventiveMeasures []string `json:"preventive_measures"`
}
