// Package pgstore provides a PostgreSQL implementation of planner.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sift/internal/planner"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/planner/pgstore")

//go:embed schema.sql
var schema string

// Store persists triage runs in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const runColumns = `id, incident_id, status, description, report, created_at, completed_at, duration_s`

// Get retrieves a triage run by ID.
//
//nolint:dupl // similar structure to GetByIncident is intentional
func (s *Store) Get(ctx context.Context, id string) (*planner.Run, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + runColumns + ` FROM triage_runs WHERE id = $1`
	r, err := s.scanRunRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// GetByIncident retrieves the most recent triage run for an incident.
//
//nolint:dupl // similar structure to Get is intentional
func (s *Store) GetByIncident(ctx context.Context, incidentID string) (*planner.Run, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByIncident", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + runColumns + ` FROM triage_runs WHERE incident_id = $1 ORDER BY created_at DESC LIMIT 1`
	r, err := s.scanRunRow(s.pool.QueryRow(ctx, query, incidentID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// Put inserts or updates a triage run (upsert on id).
func (s *Store) Put(ctx context.Context, r *planner.Run) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	var reportJSON []byte
	if r.Report != nil {
		var err error
		reportJSON, err = json.Marshal(r.Report)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("marshal report: %w", err)
		}
	}

	var completedAt *time.Time
	if !r.CompletedAt.IsZero() {
		completedAt = &r.CompletedAt
	}

	query := `INSERT INTO triage_runs (
		id, incident_id, status, description, report, created_at, completed_at, duration_s
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (id) DO UPDATE SET
		incident_id  = EXCLUDED.incident_id,
		status       = EXCLUDED.status,
		description  = EXCLUDED.description,
		report       = EXCLUDED.report,
		completed_at = EXCLUDED.completed_at,
		duration_s   = EXCLUDED.duration_s`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.IncidentID, string(r.Status), r.Description, reportJSON,
		r.CreatedAt, completedAt, r.Duration,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// scanRunRow scans a single row into a planner.Run. Returns (nil, nil) when
// no row is found.
func (s *Store) scanRunRow(row pgx.Row) (*planner.Run, error) {
	var (
		r           planner.Run
		status      string
		reportJSON  []byte
		completedAt *time.Time
	)

	err := row.Scan(
		&r.ID, &r.IncidentID, &status, &r.Description, &reportJSON,
		&r.CreatedAt, &completedAt, &r.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	r.Status = planner.Status(status)
	if completedAt != nil {
		r.CompletedAt = *completedAt
	}
	if len(reportJSON) > 0 {
		if err := json.Unmarshal(reportJSON, &r.Report); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
	}

	return &r, nil
}
