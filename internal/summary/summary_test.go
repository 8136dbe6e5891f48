package summary

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/linnemanlabs/sift/internal/analysis"
)

func summaryTask(results []*analysis.Result) *analysis.Task {
	return analysis.NewTask(analysis.TaskSummary, analysis.PriorityCritical, map[string]any{
		PayloadResults: results,
	})
}

func successResult(analyzer string, confidence float64, findings ...analysis.Finding) *analysis.Result {
	return &analysis.Result{
		TaskID:     "task-1",
		Analyzer:   analyzer,
		Success:    true,
		Findings:   findings,
		Confidence: confidence,
	}
}

func TestCanHandle(t *testing.T) {
	t.Parallel()

	a := New()

	withBatch := summaryTask(nil)
	if !a.CanHandle(withBatch) {
		t.Error("expected CanHandle=true for summary task with result batch")
	}

	noBatch := analysis.NewTask(analysis.TaskSummary, analysis.PriorityCritical, map[string]any{})
	if a.CanHandle(noBatch) {
		t.Error("expected CanHandle=false without a result batch")
	}

	wrongType := analysis.NewTask(analysis.TaskLogAnalysis, analysis.PriorityHigh, map[string]any{PayloadResults: nil})
	if a.CanHandle(wrongType) {
		t.Error("expected CanHandle=false for non-summary task type")
	}
}

func TestAggregate_StampsSourceAnalyzer(t *testing.T) {
	t.Parallel()

	all := aggregate([]*analysis.Result{
		successResult("logscan", 0.8, analysis.Finding{Type: analysis.FindingError, Content: "ERROR boom"}),
		successResult("alarmscan", 0.7, analysis.Finding{Type: analysis.FindingAlarmCategory, Category: "cpu"}),
	})

	if len(all) != 2 {
		t.Fatalf("aggregated %d findings, want 2", len(all))
	}
	if all[0].SourceAnalyzer != "logscan" || all[1].SourceAnalyzer != "alarmscan" {
		t.Errorf("source analyzers = [%s %s], want [logscan alarmscan]",
			all[0].SourceAnalyzer, all[1].SourceAnalyzer)
	}
}

func TestAnalyze_SummaryRecordFirst(t *testing.T) {
	t.Parallel()

	a := New()
	res := a.Analyze(context.Background(), summaryTask([]*analysis.Result{
		successResult("logscan", 0.8, analysis.Finding{Type: analysis.FindingError, Content: "ERROR boom"}),
	}))

	if !res.Success {
		t.Fatalf("Analyze failed: %s", res.ErrorMessage)
	}
	if got := res.Findings[0].Type; got != analysis.FindingSummary {
		t.Fatalf("first finding type = %q, want summary", got)
	}
	if res.Findings[0].TotalFindings != 1 {
		t.Errorf("total findings = %d, want 1", res.Findings[0].TotalFindings)
	}
}

func TestAnalyze_SkipsFailedResultFindings(t *testing.T) {
	t.Parallel()

	a := New()
	failed := analysis.Failure("task-2", "alarmscan", "broken")
	failed.Findings = []analysis.Finding{{Type: analysis.FindingError, Content: "should not aggregate"}}

	res := a.Analyze(context.Background(), summaryTask([]*analysis.Result{failed}))
	if !res.Success {
		t.Fatalf("Analyze failed: %s", res.ErrorMessage)
	}
	if res.Findings[0].TotalFindings != 0 {
		t.Errorf("aggregated %d findings from a failed result, want 0", res.Findings[0].TotalFindings)
	}
	if res.Confidence != 0 {
		t.Errorf("confidence = %v, want 0 with zero successes", res.Confidence)
	}
}

func TestDetectors_BurstAndCPUScenario(t *testing.T) {
	t.Parallel()

	// Alarm analyzer output for 3 critical "CPU usage high" alarms in a burst.
	batch := []*analysis.Result{
		successResult("alarmscan", 0.9,
			analysis.Finding{Type: analysis.FindingSeverityAnalysis, Severity: "critical", Count: 3},
			analysis.Finding{Type: analysis.FindingTemporalPattern, Pattern: analysis.PatternBurstAlarms, AvgInterval: 5},
			analysis.Finding{Type: analysis.FindingAlarmCategory, Category: "cpu", Count: 3},
		),
	}

	a := New()
	res := a.Analyze(context.Background(), summaryTask(batch))
	if !res.Success {
		t.Fatalf("Analyze failed: %s", res.ErrorMessage)
	}

	var temporal, cpu *analysis.Finding
	for i := range res.Findings {
		f := &res.Findings[i]
		if f.Type != analysis.FindingRootCause {
			continue
		}
		switch {
		case f.Category == CategoryTemporal:
			temporal = f
		case f.Category == CategoryResource && f.Subtype == SubtypeCPU:
			cpu = f
		}
	}

	if temporal == nil {
		t.Fatal("expected a temporal root cause")
	}
	if temporal.Confidence != 0.8 {
		t.Errorf("temporal confidence = %v, want 0.8", temporal.Confidence)
	}
	if cpu == nil {
		t.Fatal("expected a resource/cpu root cause")
	}
	if cpu.Confidence != 0.7 {
		t.Errorf("cpu confidence = %v, want 0.7", cpu.Confidence)
	}
	if len(cpu.Evidence) == 0 {
		t.Error("cpu root cause has no evidence findings")
	}

	if len(res.Suggestions) == 0 {
		t.Fatal("expected suggestions")
	}
	first := res.Suggestions[0]
	if !strings.Contains(first, MarkerUrgent) || !strings.Contains(first, "3 high-severity") {
		t.Errorf("first suggestion = %q, want urgent suggestion citing 3 high-severity findings", first)
	}
}

func TestDetectors_Idempotent(t *testing.T) {
	t.Parallel()

	findings := []analysis.Finding{
		{Type: analysis.FindingError, Content: "database query timed out"},
		{Type: analysis.FindingWarning, Content: "memory usage at 92%"},
		{Type: analysis.FindingTemporalPattern, Pattern: analysis.PatternBurstAlarms},
	}

	first := detectRootCauses(findings)
	second := detectRootCauses(findings)
	if !reflect.DeepEqual(first, second) {
		t.Error("detectors are not idempotent over the same finding set")
	}
}

func TestDetectors_FindingMayEvidenceMultipleCauses(t *testing.T) {
	t.Parallel()

	// "database connection refused" matches both network and database.
	findings := []analysis.Finding{
		{Type: analysis.FindingError, Content: "database connection refused"},
	}
	causes := detectRootCauses(findings)

	var network, database bool
	for _, c := range causes {
		if c.Subtype == SubtypeNetwork {
			network = true
		}
		if c.Subtype == SubtypeDatabase {
			database = true
		}
	}
	if !network || !database {
		t.Errorf("causes = %+v, want both network and database", causes)
	}
}

func TestOverallConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		results []*analysis.Result
		want    float64
	}{
		{"no results", nil, 0},
		{"no successes", []*analysis.Result{analysis.Failure("t", "a", "x")}, 0},
		{"single success", []*analysis.Result{successResult("a", 0.8)}, 0.8},
		{
			"scaled by success ratio",
			[]*analysis.Result{successResult("a", 0.8), analysis.Failure("t", "b", "x")},
			0.4,
		},
		{
			"mean of successes",
			[]*analysis.Result{successResult("a", 0.6), successResult("b", 0.8)},
			0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := overallConfidence(tt.results)
			if got != tt.want {
				t.Errorf("overallConfidence = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("confidence %v outside [0,1]", got)
			}
		})
	}
}

func TestAnalyze_CriticalBundle(t *testing.T) {
	t.Parallel()

	a := New()
	res := a.Analyze(context.Background(), summaryTask([]*analysis.Result{
		successResult("logscan", 0.9,
			analysis.Finding{Type: analysis.FindingError, Content: "FATAL crash", Severity: "high"},
			analysis.Finding{Type: analysis.FindingWarning, Content: "deprecated call", Severity: "medium"},
		),
	}))

	var bundle *analysis.Finding
	for i := range res.Findings {
		if res.Findings[i].Type == analysis.FindingCriticalFindings {
			bundle = &res.Findings[i]
		}
	}
	if bundle == nil {
		t.Fatal("expected a critical-findings bundle")
	}
	if bundle.Count != 1 {
		t.Errorf("bundle count = %d, want 1", bundle.Count)
	}
}

func TestAnalyze_MissingBatchFails(t *testing.T) {
	t.Parallel()

	a := New()
	task := analysis.NewTask(analysis.TaskSummary, analysis.PriorityCritical, map[string]any{
		PayloadResults: "not a result slice",
	})
	res := a.Analyze(context.Background(), task)
	if res.Success {
		t.Fatal("expected failure for malformed payload")
	}
	if res.Confidence != 0 || len(res.Findings) != 0 {
		t.Error("failed result must carry zero confidence and no findings")
	}
	if res.ErrorMessage == "" {
		t.Error("failed result must carry an error message")
	}
}
