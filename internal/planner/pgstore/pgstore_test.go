package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/linnemanlabs/sift/internal/planner"
	"github.com/linnemanlabs/sift/internal/planner/pgstore"
	"github.com/linnemanlabs/sift/internal/postgres"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("SIFT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SIFT_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestPutAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond).UTC()
	r := &planner.Run{
		ID:          "test-put-get-001",
		IncidentID:  "inc-put-get",
		Status:      planner.StatusPending,
		Description: "checkout latency spike",
		CreatedAt:   now,
	}

	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get returned ok=false, want true")
	}

	assertEqual(t, "ID", r.ID, got.ID)
	assertEqual(t, "IncidentID", r.IncidentID, got.IncidentID)
	assertEqual(t, "Status", string(r.Status), string(got.Status))
	assertEqual(t, "Description", r.Description, got.Description)
	if got.Report != nil {
		t.Errorf("Report = %+v, want nil for a pending run", got.Report)
	}
}

func TestGetMissing(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "nonexistent-id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get returned ok=true for nonexistent ID")
	}
}

func TestGetByIncident(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	incID := "inc-by-incident-test"
	now := time.Now().Truncate(time.Microsecond).UTC()

	older := &planner.Run{
		ID:         "test-inc-older",
		IncidentID: incID,
		Status:     planner.StatusComplete,
		CreatedAt:  now.Add(-time.Hour),
	}
	newer := &planner.Run{
		ID:         "test-inc-newer",
		IncidentID: incID,
		Status:     planner.StatusPending,
		CreatedAt:  now,
	}

	if err := s.Put(ctx, older); err != nil {
		t.Fatalf("Put older: %v", err)
	}
	if err := s.Put(ctx, newer); err != nil {
		t.Fatalf("Put newer: %v", err)
	}

	got, ok, err := s.GetByIncident(ctx, incID)
	if err != nil {
		t.Fatalf("GetByIncident: %v", err)
	}
	if !ok {
		t.Fatal("GetByIncident returned ok=false")
	}
	if got.ID != newer.ID {
		t.Errorf("GetByIncident returned ID=%s, want %s", got.ID, newer.ID)
	}
}

func TestGetByIncidentMissing(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, ok, err := s.GetByIncident(ctx, "nonexistent-incident")
	if err != nil {
		t.Fatalf("GetByIncident: %v", err)
	}
	if ok {
		t.Error("GetByIncident returned ok=true for nonexistent incident")
	}
}

func TestUpsertWithReport(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond).UTC()
	r := &planner.Run{
		ID:         "test-upsert-001",
		IncidentID: "inc-upsert",
		Status:     planner.StatusPending,
		CreatedAt:  now,
	}
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Put initial: %v", err)
	}

	r.Status = planner.StatusComplete
	r.CompletedAt = now.Add(time.Minute)
	r.Duration = 60.0
	r.Report = &planner.Report{
		Success:           true,
		IncidentID:        "inc-upsert",
		AnalysisTimestamp: now.Add(time.Minute),
		Summary: &planner.Summary{
			Success:     true,
			Confidence:  0.72,
			Suggestions: []string{"[HIGH] database health: check connections and query performance"},
		},
	}

	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Put update: %v", err)
	}

	got, ok, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get after upsert: %v", err)
	}
	if !ok {
		t.Fatal("Get returned ok=false after upsert")
	}

	assertEqual(t, "Status", string(planner.StatusComplete), string(got.Status))
	assertEqual(t, "Duration", 60.0, got.Duration)
	if got.Report == nil {
		t.Fatal("Report is nil after round-trip")
	}
	if !got.Report.Success {
		t.Error("Report.Success = false, want true")
	}
	if got.Report.Summary == nil || got.Report.Summary.Confidence != 0.72 {
		t.Errorf("Report.Summary = %+v, want confidence 0.72", got.Report.Summary)
	}
	if len(got.Report.Summary.Suggestions) != 1 {
		t.Errorf("Suggestions = %v, want one entry", got.Report.Summary.Suggestions)
	}
}

func assertEqual[T comparable](t *testing.T, field string, want, got T) {
	t.Helper()
	if want != got {
		t.Errorf("%s: got %v, want %v", field, got, want)
	}
}
