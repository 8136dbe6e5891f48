package planner

import (
	"sync"

	"github.com/linnemanlabs/sift/internal/analysis"
)

// taskTracker is the planner's process-lifetime task bookkeeping. It backs
// the introspection surface only; the pipeline itself passes results by
// value.
type taskTracker struct {
	mu        sync.Mutex
	active    map[string]*analysis.Task
	completed map[string]*analysis.Result
}

func newTaskTracker() *taskTracker {
	return &taskTracker{
		active:    make(map[string]*analysis.Task),
		completed: make(map[string]*analysis.Result),
	}
}

func (t *taskTracker) activate(task *analysis.Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[task.ID] = task
}

func (t *taskTracker) deactivate(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, taskID)
}

func (t *taskTracker) complete(taskID string, result *analysis.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed[taskID] = result
}

func (t *taskTracker) status(taskID string) (TaskState, *analysis.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if result, ok := t.completed[taskID]; ok {
		return TaskCompleted, result
	}
	if _, ok := t.active[taskID]; ok {
		return TaskActive, nil
	}
	return TaskUnknown, nil
}

func (t *taskTracker) counts() (active, completed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active), len(t.completed)
}
