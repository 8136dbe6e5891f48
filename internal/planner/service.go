package planner

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/sift/internal/incident"
)

// SubmitResult is the outcome of submitting an incident for triage.
type SubmitResult struct {
	ID      string
	Skipped bool
	Reason  string
}

// Service is the business boundary for triage operations.
type Service struct {
	store    Store
	planner  *Planner
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
}

// NewService creates a new triage service. metrics and notifier may be nil.
func NewService(store Store, planner *Planner, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	return &Service{
		store:    store,
		planner:  planner,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
	}
}

// Submit accepts an incident for triage, handling dedup and lifecycle.
func (s *Service) Submit(ctx context.Context, in *incident.Incident) (*SubmitResult, error) {
	// dedup: skip if a run for this incident is already pending or in progress
	if in.ID != "" {
		if existing, ok, err := s.store.GetByIncident(ctx, in.ID); err != nil {
			return nil, err
		} else if ok && (existing.Status == StatusPending || existing.Status == StatusInProgress) {
			s.countSubmit("duplicate")
			return &SubmitResult{ID: existing.ID, Skipped: true, Reason: "duplicate"}, nil
		}
	}

	id := ulid.Make().String()
	incidentID := in.ID
	if incidentID == "" {
		incidentID = ulid.Make().String()
		in.ID = incidentID
	}

	run := &Run{
		ID:          id,
		IncidentID:  incidentID,
		Status:      StatusPending,
		Description: in.Description,
		CreatedAt:   time.Now(),
	}
	if err := s.store.Put(ctx, run); err != nil {
		return nil, err
	}
	s.countSubmit("accepted")

	// kick off async triage - pass only the ID to avoid sharing the Run pointer.
	go s.runTriage(context.WithoutCancel(ctx), id, in)

	return &SubmitResult{ID: id}, nil
}

// Get retrieves a triage run by ID.
func (s *Service) Get(ctx context.Context, id string) (*Run, bool, error) {
	return s.store.Get(ctx, id)
}

// Status snapshots the orchestration state for introspection endpoints.
func (s *Service) Status() SystemStatus {
	return s.planner.Status()
}

func (s *Service) runTriage(ctx context.Context, id string, in *incident.Incident) {
	L := s.logger.With("run_id", id, "incident_id", in.ID)

	run, ok, err := s.store.Get(ctx, id)
	if err != nil || !ok {
		L.Error(ctx, err, "failed to fetch run for triage")
		return
	}

	run.Status = StatusInProgress
	if err := s.store.Put(ctx, run); err != nil {
		L.Error(ctx, err, "failed to update status to in_progress")
		return
	}

	start := time.Now()
	report := s.planner.Process(ctx, in)

	run.Status = StatusComplete
	if !report.Success {
		run.Status = StatusFailed
	}
	run.Report = report
	run.CompletedAt = time.Now()
	run.Duration = time.Since(start).Seconds()

	if err := s.store.Put(ctx, run); err != nil {
		L.Error(ctx, err, "failed to persist triage run")
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, run); err != nil {
			L.Error(ctx, err, "failed to send triage notification")
		}
	}

	L.Info(ctx, "triage run finished",
		"status", string(run.Status),
		"duration", run.Duration,
	)
}

func (s *Service) countSubmit(result string) {
	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues(result).Inc()
	}
}
