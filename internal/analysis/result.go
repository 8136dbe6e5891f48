package analysis

import "strings"

// FindingType discriminates the closed finding variants each producer
// family emits.
type FindingType string

const (
	// Leaf analyzer variants.
	FindingError            FindingType = "error"
	FindingWarning          FindingType = "warning"
	FindingPerformance      FindingType = "performance"
	FindingSeverityAnalysis FindingType = "severity_analysis"
	FindingRepeatedAlarm    FindingType = "repeated_alarm"
	FindingTemporalPattern  FindingType = "temporal_pattern"
	FindingAlarmCategory    FindingType = "alarm_category"

	// Aggregation variants, produced by the summary agent only.
	FindingRootCause        FindingType = "root_cause"
	FindingSummary          FindingType = "summary"
	FindingCriticalFindings FindingType = "critical_findings"
)

// PatternBurstAlarms tags a temporal-pattern finding whose alarms arrived in
// a tight burst; the summary agent's temporal detector keys on it.
const PatternBurstAlarms = "burst_alarms"

// Finding is one atomic tagged observation. Type is always set; the other
// fields are populated per variant. Evidence is only set on root-cause and
// critical-findings records.
type Finding struct {
	Type        FindingType `json:"type"`
	Pattern     string      `json:"pattern,omitempty"`
	LogLine     int         `json:"log_line,omitempty"`
	Content     string      `json:"content,omitempty"`
	Severity    string      `json:"severity,omitempty"`
	Message     string      `json:"message,omitempty"`
	Category    string      `json:"category,omitempty"`
	Subtype     string      `json:"subtype,omitempty"`
	Count       int         `json:"count,omitempty"`
	AvgInterval float64     `json:"avg_interval_seconds,omitempty"`
	Description string      `json:"description,omitempty"`
	Confidence  float64     `json:"confidence,omitempty"`
	Evidence    []Finding   `json:"evidence,omitempty"`

	// SourceAnalyzer is stamped during aggregation, never by the producer.
	SourceAnalyzer string `json:"source_analyzer,omitempty"`

	// Aggregate counters on summary records.
	TotalFindings   int `json:"total_findings,omitempty"`
	ErrorCount      int `json:"error_count,omitempty"`
	WarningCount    int `json:"warning_count,omitempty"`
	AlarmCount      int `json:"alarm_count,omitempty"`
	RootCausesCount int `json:"root_causes_count,omitempty"`
}

// MatchesKeyword reports whether the keyword occurs in any textual field of
// the finding, case-insensitively. The root-cause detectors use this instead
// of substring-matching a stringified record.
func (f *Finding) MatchesKeyword(keyword string) bool {
	kw := strings.ToLower(keyword)
	for _, s := range []string{
		f.Pattern, f.Content, f.Message, f.Category, f.Subtype, f.Description,
	} {
		if s != "" && strings.Contains(strings.ToLower(s), kw) {
			return true
		}
	}
	return false
}

// Result is the outcome of one analyzer invocation. Immutable once produced.
type Result struct {
	TaskID       string         `json:"task_id"`
	Analyzer     string         `json:"analyzer_name"`
	Success      bool           `json:"success"`
	Findings     []Finding      `json:"findings"`
	Confidence   float64        `json:"confidence"`
	Suggestions  []string       `json:"suggestions"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Failure builds the canonical failed result for a task: no findings, zero
// confidence, the failure text as the error message.
func Failure(taskID, analyzer, errMsg string) *Result {
	return &Result{
		TaskID:       taskID,
		Analyzer:     analyzer,
		Success:      false,
		Findings:     []Finding{},
		Confidence:   0,
		Suggestions:  []string{},
		ErrorMessage: errMsg,
	}
}
