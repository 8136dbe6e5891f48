// Package logscan implements the log analyzer: pattern-driven scanning of
// raw log lines for errors, warnings and performance problems.
package logscan

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/linnemanlabs/sift/internal/analysis"
)

// Name is the registry key for the log analyzer.
const Name = "logscan"

// PayloadLogs is the task payload key carrying the log lines.
const PayloadLogs = "logs"

var errorPatterns = compile([]string{
	`ERROR`,
	`FATAL`,
	`Exception`,
	`Failed`,
	`Timeout`,
	`Connection refused`,
	`Out of memory`,
	`Stack overflow`,
})

var warningPatterns = compile([]string{
	`WARNING`,
	`WARN`,
	`Deprecated`,
	`Slow query`,
	`High CPU`,
	`Memory usage`,
})

var performancePatterns = compile([]string{
	`slow.*query`,
	`high.*cpu`,
	`memory.*usage`,
	`response.*time.*\d+ms`,
	`timeout`,
})

func compile(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// Analyzer scans log lines. Stateless; one instance serves concurrent runs.
type Analyzer struct{}

// New creates the log analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Name implements analysis.Analyzer.
func (a *Analyzer) Name() string { return Name }

// TaskTypes implements analysis.Analyzer.
func (a *Analyzer) TaskTypes() []analysis.TaskType {
	return []analysis.TaskType{analysis.TaskLogAnalysis}
}

// CanHandle implements analysis.Analyzer: the task must carry log lines.
func (a *Analyzer) CanHandle(task *analysis.Task) bool {
	if task.Type != analysis.TaskLogAnalysis {
		return false
	}
	_, ok := task.Payload[PayloadLogs]
	return ok
}

// Analyze implements analysis.Analyzer.
func (a *Analyzer) Analyze(_ context.Context, task *analysis.Task) *analysis.Result {
	logs, ok := logLines(task.Payload[PayloadLogs])
	if !ok {
		return analysis.Failure(task.ID, Name, "payload is missing the log lines")
	}

	var findings []analysis.Finding
	findings = append(findings, scan(logs, errorPatterns, analysis.FindingError, "high")...)
	findings = append(findings, scan(logs, warningPatterns, analysis.FindingWarning, "medium")...)
	findings = append(findings, scan(logs, performancePatterns, analysis.FindingPerformance, "medium")...)

	return &analysis.Result{
		TaskID:      task.ID,
		Analyzer:    Name,
		Success:     true,
		Findings:    findings,
		Confidence:  confidence(findings),
		Suggestions: suggestions(findings),
		Metadata: map[string]any{
			"total_logs_analyzed": len(logs),
			"analysis_timestamp":  time.Now().Format(time.RFC3339),
		},
	}
}

// logLines accepts both []string and []any payloads; the latter is what a
// decoded JSON body carries.
func logLines(v any) ([]string, bool) {
	switch lines := v.(type) {
	case []string:
		return lines, true
	case []any:
		out := make([]string, 0, len(lines))
		for _, l := range lines {
			s, ok := l.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// scan emits one finding per matching pattern per line, numbered from 1.
func scan(logs []string, patterns []*regexp.Regexp, typ analysis.FindingType, severity string) []analysis.Finding {
	var findings []analysis.Finding
	for i, line := range logs {
		for _, p := range patterns {
			if p.MatchString(line) {
				findings = append(findings, analysis.Finding{
					Type:     typ,
					Pattern:  p.String(),
					LogLine:  i + 1,
					Content:  strings.TrimSpace(line),
					Severity: severity,
				})
			}
		}
	}
	return findings
}

func suggestions(findings []analysis.Finding) []string {
	var out []string

	var errors, warnings, performance int
	for _, f := range findings {
		switch f.Type {
		case analysis.FindingError:
			errors++
		case analysis.FindingWarning:
			warnings++
		case analysis.FindingPerformance:
			performance++
		}
	}

	if errors > 0 {
		out = append(out, fmt.Sprintf("found %d errors, address the logged exceptions first", errors))
	}
	if warnings > 5 {
		out = append(out, fmt.Sprintf("found %d warnings, review system configuration and resource usage", warnings))
	}
	if performance > 0 {
		out = append(out, fmt.Sprintf("found %d performance problems, review queries and resource allocation", performance))
	}

	if matched(findings, "Connection refused") {
		out = append(out, "connection refused errors detected, check service status and network reachability")
	}
	if matched(findings, "Out of memory") {
		out = append(out, "out-of-memory errors detected, add memory or reduce per-process usage")
	}
	if matched(findings, "Timeout") {
		out = append(out, "timeout errors detected, check network latency and service response times")
	}

	return out
}

func matched(findings []analysis.Finding, pattern string) bool {
	want := `(?i)` + pattern
	for _, f := range findings {
		if f.Pattern == want {
			return true
		}
	}
	return false
}

// confidence grows with the number and severity of findings, capped at 0.9.
// No findings means zero.
func confidence(findings []analysis.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	var high, medium int
	for _, f := range findings {
		switch f.Severity {
		case "high":
			high++
		case "medium":
			medium++
		}
	}
	c := math.Min(0.9, 0.3+float64(high)*0.2+float64(medium)*0.1)
	return math.Round(c*100) / 100
}
