package analysis

import "context"

// Analyzer is the capability contract every analyzer satisfies, including
// the summary agent.
//
// Analyze must never let an internal failure escape: anything that goes
// wrong is translated into a Result with Success=false, Confidence=0 and the
// failure text in ErrorMessage. CanHandle must be side-effect free — it is a
// type check plus a payload precondition, called during selection. Analyzer
// instances must not share mutable state; the planner may run them from
// concurrent incident flows.
type Analyzer interface {
	// Name returns the unique analyzer name used as the registry key.
	Name() string

	// TaskTypes returns the task types this analyzer declares support for.
	TaskTypes() []TaskType

	// CanHandle reports whether the analyzer can process this specific task.
	CanHandle(task *Task) bool

	// Analyze processes the task to completion. It may block on I/O and
	// must honor ctx cancellation.
	Analyze(ctx context.Context, task *Task) *Result
}
