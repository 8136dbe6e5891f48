// Package incidentapi exposes the incident triage HTTP surface.
package incidentapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/incident"
	"github.com/linnemanlabs/sift/internal/planner"
)

// TriageService defines the business operations incidentapi needs.
type TriageService interface {
	Submit(ctx context.Context, in *incident.Incident) (*planner.SubmitResult, error)
	Get(ctx context.Context, id string) (*planner.Run, bool, error)
	Status() planner.SystemStatus
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    TriageService

	maxLogLines int
	maxAlarms   int
}

// Limits bounds accepted incident payloads. Zero means unlimited.
type Limits struct {
	MaxLogLines int
	MaxAlarms   int
}

// New creates a new API handler.
func New(logger log.Logger, svc TriageService, limits Limits) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger:      logger,
		svc:         svc,
		maxLogLines: limits.MaxLogLines,
		maxAlarms:   limits.MaxAlarms,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/incidents", a.handleSubmitIncident)
		r.Get("/incidents/{id}", a.handleGetRun)
		r.Get("/status", a.handleStatus)
	})
}

func (a *API) handleSubmitIncident(w http.ResponseWriter, r *http.Request) {
	var in incident.Incident
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	if a.maxLogLines > 0 && len(in.Logs) > a.maxLogLines {
		http.Error(w, `{"error":"too many log lines"}`, http.StatusRequestEntityTooLarge)
		return
	}
	if a.maxAlarms > 0 && len(in.Alarms) > a.maxAlarms {
		http.Error(w, `{"error":"too many alarms"}`, http.StatusRequestEntityTooLarge)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("sift.incident.id", in.ID),
		attribute.Int("sift.incident.log_lines", len(in.Logs)),
		attribute.Int("sift.incident.alarms", len(in.Alarms)),
	)

	sr, err := a.svc.Submit(r.Context(), &in)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to submit incident", "incident_id", in.ID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("sift.run.id", sr.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      sr.ID,
		"skipped": sr.Skipped,
		"reason":  sr.Reason,
	})
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("sift.run.id", id))

	run, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get triage run", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("sift.run.status", string(run.Status)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(run)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.svc.Status())
}
