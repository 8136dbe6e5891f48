package planner

import "context"

// Store is the persistence interface for triage runs.
type Store interface {
	Get(ctx context.Context, id string) (*Run, bool, error)
	GetByIncident(ctx context.Context, incidentID string) (*Run, bool, error)
	Put(ctx context.Context, run *Run) error
}

// Notifier delivers a finished run to an external channel. Implementations
// must tolerate being called concurrently.
type Notifier interface {
	Notify(ctx context.Context, run *Run) error
}
