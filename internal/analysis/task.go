package analysis

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// TaskType is the closed set of analysis task kinds.
type TaskType string

const (
	TaskLogAnalysis         TaskType = "log_analysis"
	TaskAlarmAnalysis       TaskType = "alarm_analysis"
	TaskPerformanceAnalysis TaskType = "performance_analysis"
	TaskRootCauseAnalysis   TaskType = "root_cause_analysis"
	TaskSummary             TaskType = "summary"
)

// TaskTypes lists every valid task type, used by Registry.Validate to gate
// third-party analyzers.
func TaskTypes() []TaskType {
	return []TaskType{
		TaskLogAnalysis,
		TaskAlarmAnalysis,
		TaskPerformanceAnalysis,
		TaskRootCauseAnalysis,
		TaskSummary,
	}
}

// Valid reports whether t belongs to the closed task type set.
func (t TaskType) Valid() bool {
	switch t {
	case TaskLogAnalysis, TaskAlarmAnalysis, TaskPerformanceAnalysis,
		TaskRootCauseAnalysis, TaskSummary:
		return true
	}
	return false
}

// Priority orders tasks within a plan. Higher values run first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// Escalate returns the next priority up, capped at critical. It never
// lowers the priority.
func (p Priority) Escalate() Priority {
	if p >= PriorityCritical {
		return PriorityCritical
	}
	return p + 1
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// Task is one unit of analysis work. Tasks are immutable once dispatched;
// reallocation derives a new copy rather than mutating the original.
type Task struct {
	ID        string         `json:"task_id"`
	Type      TaskType       `json:"task_type"`
	Priority  Priority       `json:"priority"`
	Payload   map[string]any `json:"payload"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewTask creates a task with a fresh ulid ID and the current timestamp.
func NewTask(typ TaskType, prio Priority, payload map[string]any) *Task {
	return &Task{
		ID:        ulid.Make().String(),
		Type:      typ,
		Priority:  prio,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Derive returns a copy of the task under a new ID with a shallow-copied
// payload and fresh metadata, leaving the original untouched.
func (t *Task) Derive(id string) *Task {
	payload := make(map[string]any, len(t.Payload))
	for k, v := range t.Payload {
		payload[k] = v
	}
	return &Task{
		ID:        id,
		Type:      t.Type,
		Priority:  t.Priority,
		Payload:   payload,
		Metadata:  make(map[string]any),
		Timestamp: time.Now(),
	}
}
