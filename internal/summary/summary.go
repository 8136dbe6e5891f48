// Package summary implements the aggregation analyzer: it consumes a batch
// of analysis results, correlates their findings into root causes, and
// produces ranked remediation suggestions.
package summary

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/linnemanlabs/sift/internal/analysis"
)

// AgentName is the registry key for the summary agent.
const AgentName = "summary"

// PayloadResults is the task payload key carrying the []*analysis.Result
// batch to aggregate.
const PayloadResults = "analysis_results"

// Priority markers embedded in suggestion strings. They are the only channel
// the planner uses to bucket recommendations (pure substring match).
const (
	MarkerUrgent = "[URGENT]"
	MarkerHigh   = "[HIGH]"
	MarkerMedium = "[MEDIUM]"
)

// Root-cause categories and subtypes.
const (
	CategoryTemporal   = "temporal"
	CategoryResource   = "resource"
	CategoryDependency = "dependency"

	SubtypeCPU      = "cpu"
	SubtypeMemory   = "memory"
	SubtypeDisk     = "disk"
	SubtypeNetwork  = "network"
	SubtypeDatabase = "database"
)

// RootCause is a synthesized explanation correlating multiple findings.
// It exists only transiently inside the summary pipeline; reports carry it
// rendered as a root_cause finding.
type RootCause struct {
	Category    string
	Subtype     string
	Description string
	Evidence    []analysis.Finding
	Confidence  float64
}

// Agent aggregates analysis results. It satisfies the same capability
// contract as every leaf analyzer and is stateless, so one instance can
// serve concurrent incident runs.
type Agent struct{}

// New creates the summary agent.
func New() *Agent {
	return &Agent{}
}

// Name implements analysis.Analyzer.
func (a *Agent) Name() string { return AgentName }

// TaskTypes implements analysis.Analyzer.
func (a *Agent) TaskTypes() []analysis.TaskType {
	return []analysis.TaskType{analysis.TaskSummary, analysis.TaskRootCauseAnalysis}
}

// CanHandle implements analysis.Analyzer: the task must be a summary-family
// task carrying a result batch.
func (a *Agent) CanHandle(task *analysis.Task) bool {
	if task.Type != analysis.TaskSummary && task.Type != analysis.TaskRootCauseAnalysis {
		return false
	}
	_, ok := task.Payload[PayloadResults]
	return ok
}

// Analyze implements analysis.Analyzer. Any internal failure is converted to
// a failed result; nothing escapes this boundary.
func (a *Agent) Analyze(_ context.Context, task *analysis.Task) (res *analysis.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = analysis.Failure(task.ID, AgentName, fmt.Sprintf("summary aggregation panicked: %v", r))
		}
	}()

	results, ok := task.Payload[PayloadResults].([]*analysis.Result)
	if !ok {
		return analysis.Failure(task.ID, AgentName, "payload is missing the analysis result batch")
	}

	all := aggregate(results)
	causes := detectRootCauses(all)
	suggestions := buildSuggestions(all, causes)
	confidence := overallConfidence(results)
	findings := reportFindings(all, causes)

	return &analysis.Result{
		TaskID:      task.ID,
		Analyzer:    AgentName,
		Success:     true,
		Findings:    findings,
		Confidence:  confidence,
		Suggestions: suggestions,
		Metadata: map[string]any{
			"analyzers_involved":     analyzerNames(results),
			"total_findings":         len(all),
			"root_causes_identified": len(causes),
			"summary_timestamp":      time.Now().Format(time.RFC3339),
		},
	}
}

// aggregate flattens the findings of every successful result, stamping each
// with its source analyzer. Failed results contribute nothing here; they
// still weigh on the overall confidence.
func aggregate(results []*analysis.Result) []analysis.Finding {
	var all []analysis.Finding
	for _, r := range results {
		if r == nil || !r.Success {
			continue
		}
		for _, f := range r.Findings {
			f.SourceAnalyzer = r.Analyzer
			all = append(all, f)
		}
	}
	return all
}

// detectRootCauses runs the three detector families. They are independent,
// non-exclusive and order-insensitive: every family always runs, and one
// finding may evidence several causes.
func detectRootCauses(findings []analysis.Finding) []RootCause {
	var causes []RootCause
	causes = append(causes, detectTemporal(findings)...)
	causes = append(causes, detectResource(findings)...)
	causes = append(causes, detectDependency(findings)...)
	return causes
}

func detectTemporal(findings []analysis.Finding) []RootCause {
	var evidence []analysis.Finding
	for _, f := range findings {
		if f.Pattern == analysis.PatternBurstAlarms {
			evidence = append(evidence, f)
		}
	}
	if len(evidence) == 0 {
		return nil
	}
	return []RootCause{{
		Category:    CategoryTemporal,
		Description: "alarm burst pattern detected, a cascading failure is likely",
		Evidence:    evidence,
		Confidence:  0.8,
	}}
}

func detectResource(findings []analysis.Finding) []RootCause {
	var causes []RootCause

	families := []struct {
		subtype     string
		keywords    []string
		description string
		confidence  float64
	}{
		{SubtypeCPU, []string{"cpu"}, "CPU pressure is degrading system performance", 0.7},
		{SubtypeMemory, []string{"memory", "out of memory"}, "memory exhaustion is destabilizing services", 0.8},
		{SubtypeDisk, []string{"disk"}, "disk capacity or IO problems are affecting reads and writes", 0.7},
	}

	for _, fam := range families {
		evidence := matching(findings, fam.keywords)
		if len(evidence) == 0 {
			continue
		}
		causes = append(causes, RootCause{
			Category:    CategoryResource,
			Subtype:     fam.subtype,
			Description: fam.description,
			Evidence:    evidence,
			Confidence:  fam.confidence,
		})
	}
	return causes
}

func detectDependency(findings []analysis.Finding) []RootCause {
	var causes []RootCause

	if evidence := matching(findings, []string{"connection"}); len(evidence) > 0 {
		causes = append(causes, RootCause{
			Category:    CategoryDependency,
			Subtype:     SubtypeNetwork,
			Description: "network connectivity problems are disrupting service-to-service traffic",
			Evidence:    evidence,
			Confidence:  0.8,
		})
	}
	if evidence := matching(findings, []string{"database", "query"}); len(evidence) > 0 {
		causes = append(causes, RootCause{
			Category:    CategoryDependency,
			Subtype:     SubtypeDatabase,
			Description: "database problems are affecting data access",
			Evidence:    evidence,
			Confidence:  0.7,
		})
	}
	return causes
}

func matching(findings []analysis.Finding, keywords []string) []analysis.Finding {
	var out []analysis.Finding
	for _, f := range findings {
		for _, kw := range keywords {
			if f.MatchesKeyword(kw) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// buildSuggestions emits one priority-tagged suggestion per root cause and
// prepends a single urgent suggestion when high/critical-severity findings
// are present.
func buildSuggestions(findings []analysis.Finding, causes []RootCause) []string {
	var suggestions []string

	for _, c := range causes {
		if s := suggestionFor(c); s != "" {
			suggestions = append(suggestions, s)
		}
	}

	if n := highSeverityCount(findings); n > 0 {
		urgent := fmt.Sprintf("%s %d high-severity findings detected, address them immediately", MarkerUrgent, n)
		suggestions = append([]string{urgent}, suggestions...)
	}

	return suggestions
}

func suggestionFor(c RootCause) string {
	switch c.Category {
	case CategoryResource:
		switch c.Subtype {
		case SubtypeCPU:
			return MarkerHigh + " CPU saturation: identify hot processes, then scale out or optimize the workload"
		case SubtypeMemory:
			return MarkerHigh + " memory exhaustion: check for leaks, then add memory or reduce per-process usage"
		case SubtypeDisk:
			return MarkerMedium + " disk pressure: reclaim space and review IO-heavy operations"
		}
	case CategoryDependency:
		switch c.Subtype {
		case SubtypeNetwork:
			return MarkerHigh + " network connectivity: verify routes, DNS and service reachability"
		case SubtypeDatabase:
			return MarkerHigh + " database health: check connections and query performance"
		}
	case CategoryTemporal:
		return MarkerMedium + " correlated alarm burst: review system load and trace the cascade origin"
	}
	return ""
}

// highSeverityCount sums the weight of high/critical-severity findings. A
// severity-distribution finding counts the alarms behind it, not one.
func highSeverityCount(findings []analysis.Finding) int {
	n := 0
	for _, f := range findings {
		if f.Severity != "high" && f.Severity != "critical" {
			continue
		}
		if f.Count > 0 {
			n += f.Count
		} else {
			n++
		}
	}
	return n
}

// overallConfidence is the mean confidence of successful results scaled by
// the success ratio, rounded to two decimals. No results or no successes
// means zero.
func overallConfidence(results []*analysis.Result) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	var successes int
	for _, r := range results {
		if r != nil && r.Success {
			successes++
			sum += r.Confidence
		}
	}
	if successes == 0 {
		return 0
	}
	mean := sum / float64(successes)
	ratio := float64(successes) / float64(len(results))
	return math.Round(mean*ratio*100) / 100
}

// reportFindings assembles the summary result's finding list: one aggregate
// record, the root causes, and a critical bundle when high/critical findings
// exist.
func reportFindings(findings []analysis.Finding, causes []RootCause) []analysis.Finding {
	out := []analysis.Finding{summaryRecord(findings, causes)}

	for _, c := range causes {
		out = append(out, analysis.Finding{
			Type:        analysis.FindingRootCause,
			Category:    c.Category,
			Subtype:     c.Subtype,
			Description: c.Description,
			Evidence:    c.Evidence,
			Confidence:  c.Confidence,
		})
	}

	var critical []analysis.Finding
	for _, f := range findings {
		if f.Severity == "high" || f.Severity == "critical" {
			critical = append(critical, f)
		}
	}
	if len(critical) > 0 {
		out = append(out, analysis.Finding{
			Type:     analysis.FindingCriticalFindings,
			Count:    len(critical),
			Evidence: critical,
		})
	}

	return out
}

func summaryRecord(findings []analysis.Finding, causes []RootCause) analysis.Finding {
	rec := analysis.Finding{
		Type:            analysis.FindingSummary,
		TotalFindings:   len(findings),
		RootCausesCount: len(causes),
	}
	for _, f := range findings {
		switch f.Type {
		case analysis.FindingError:
			rec.ErrorCount++
		case analysis.FindingWarning:
			rec.WarningCount++
		case analysis.FindingAlarmCategory, analysis.FindingRepeatedAlarm, analysis.FindingSeverityAnalysis:
			rec.AlarmCount++
		}
	}
	return rec
}

func analyzerNames(results []*analysis.Result) []string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		if r != nil {
			names = append(names, r.Analyzer)
		}
	}
	return names
}
