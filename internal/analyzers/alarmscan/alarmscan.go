// Package alarmscan implements the alarm analyzer: severity distribution,
// repetition, burst detection and keyword categorization over monitoring
// alarms.
package alarmscan

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/linnemanlabs/sift/internal/analysis"
	"github.com/linnemanlabs/sift/internal/incident"
)

// Name is the registry key for the alarm analyzer.
const Name = "alarmscan"

// PayloadAlarms is the task payload key carrying the alarms.
const PayloadAlarms = "alarms"

// burstThreshold is the mean inter-alarm gap below which the alarms count
// as a burst.
const burstThreshold = 300 * time.Second

// CategoryUncategorized buckets alarms no keyword family claimed.
const CategoryUncategorized = "uncategorized"

// categories are matched in order against the lowercased alarm message;
// the first match claims the alarm.
var categories = []struct {
	name     string
	keywords []string
}{
	{"cpu", []string{"cpu"}},
	{"memory", []string{"memory", "out of memory"}},
	{"disk", []string{"disk"}},
	{"network", []string{"network", "connection"}},
	{"service", []string{"service"}},
	{"database", []string{"database", "query"}},
}

var categorySuggestions = map[string]string{
	"cpu":      "check CPU utilization and process load",
	"memory":   "check memory usage and look for leaks",
	"disk":     "check disk space and IO performance",
	"network":  "check network connectivity and bandwidth usage",
	"service":  "check service health and its dependencies",
	"database": "check database connections and query performance",
}

// Analyzer scans alarms. Stateless; one instance serves concurrent runs.
type Analyzer struct{}

// New creates the alarm analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Name implements analysis.Analyzer.
func (a *Analyzer) Name() string { return Name }

// TaskTypes implements analysis.Analyzer.
func (a *Analyzer) TaskTypes() []analysis.TaskType {
	return []analysis.TaskType{analysis.TaskAlarmAnalysis}
}

// CanHandle implements analysis.Analyzer: the task must carry alarms.
func (a *Analyzer) CanHandle(task *analysis.Task) bool {
	if task.Type != analysis.TaskAlarmAnalysis {
		return false
	}
	_, ok := task.Payload[PayloadAlarms]
	return ok
}

// Analyze implements analysis.Analyzer.
func (a *Analyzer) Analyze(_ context.Context, task *analysis.Task) *analysis.Result {
	alarms, ok := task.Payload[PayloadAlarms].([]incident.Alarm)
	if !ok {
		return analysis.Failure(task.ID, Name, "payload is missing the alarms")
	}

	var findings []analysis.Finding
	findings = append(findings, severityDistribution(alarms)...)
	findings = append(findings, repeatedAlarms(alarms)...)
	findings = append(findings, temporalPatterns(alarms)...)
	findings = append(findings, categorize(alarms)...)

	return &analysis.Result{
		TaskID:      task.ID,
		Analyzer:    Name,
		Success:     true,
		Findings:    findings,
		Confidence:  confidence(findings, alarms),
		Suggestions: suggestions(findings),
		Metadata: map[string]any{
			"total_alarms_analyzed": len(alarms),
			"analysis_timestamp":    time.Now().Format(time.RFC3339),
		},
	}
}

// severityDistribution emits one finding per distinct severity, in
// first-seen order.
func severityDistribution(alarms []incident.Alarm) []analysis.Finding {
	counts := make(map[string]int)
	var order []string
	for _, al := range alarms {
		sev := strings.ToLower(al.Severity)
		if sev == "" {
			sev = "unknown"
		}
		if counts[sev] == 0 {
			order = append(order, sev)
		}
		counts[sev]++
	}

	findings := make([]analysis.Finding, 0, len(order))
	for _, sev := range order {
		findings = append(findings, analysis.Finding{
			Type:     analysis.FindingSeverityAnalysis,
			Severity: sev,
			Count:    counts[sev],
		})
	}
	return findings
}

// repeatedAlarms emits one finding per message seen more than once, in
// first-seen order.
func repeatedAlarms(alarms []incident.Alarm) []analysis.Finding {
	counts := make(map[string]int)
	var order []string
	for _, al := range alarms {
		if counts[al.Message] == 0 {
			order = append(order, al.Message)
		}
		counts[al.Message]++
	}

	var findings []analysis.Finding
	for _, msg := range order {
		if counts[msg] > 1 {
			findings = append(findings, analysis.Finding{
				Type:    analysis.FindingRepeatedAlarm,
				Message: msg,
				Count:   counts[msg],
				Pattern: "frequent_occurrence",
			})
		}
	}
	return findings
}

// temporalPatterns flags a burst when the mean gap between timestamped
// alarms is under the threshold. Alarms without timestamps are ignored.
func temporalPatterns(alarms []incident.Alarm) []analysis.Finding {
	var times []time.Time
	for _, al := range alarms {
		if !al.Timestamp.IsZero() {
			times = append(times, al.Timestamp)
		}
	}
	if len(times) < 2 {
		return nil
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	var total time.Duration
	for i := 1; i < len(times); i++ {
		total += times[i].Sub(times[i-1])
	}
	avg := total / time.Duration(len(times)-1)
	if avg >= burstThreshold {
		return nil
	}

	return []analysis.Finding{{
		Type:        analysis.FindingTemporalPattern,
		Pattern:     analysis.PatternBurstAlarms,
		AvgInterval: avg.Seconds(),
		Description: "alarms fired in a tight burst, a cascading failure is possible",
	}}
}

// categorize buckets alarms by message keywords, first matching category
// wins. Unclaimed alarms land in the uncategorized bucket.
func categorize(alarms []incident.Alarm) []analysis.Finding {
	counts := make(map[string]int)
	for _, al := range alarms {
		msg := strings.ToLower(al.Message)
		claimed := false
		for _, cat := range categories {
			for _, kw := range cat.keywords {
				if strings.Contains(msg, kw) {
					counts[cat.name]++
					claimed = true
					break
				}
			}
			if claimed {
				break
			}
		}
		if !claimed {
			counts[CategoryUncategorized]++
		}
	}

	var findings []analysis.Finding
	for _, cat := range categories {
		if counts[cat.name] > 0 {
			findings = append(findings, analysis.Finding{
				Type:     analysis.FindingAlarmCategory,
				Category: cat.name,
				Count:    counts[cat.name],
			})
		}
	}
	if counts[CategoryUncategorized] > 0 {
		findings = append(findings, analysis.Finding{
			Type:     analysis.FindingAlarmCategory,
			Category: CategoryUncategorized,
			Count:    counts[CategoryUncategorized],
		})
	}
	return findings
}

func suggestions(findings []analysis.Finding) []string {
	var out []string

	for _, f := range findings {
		if f.Type != analysis.FindingAlarmCategory {
			continue
		}
		if advice, ok := categorySuggestions[f.Category]; ok {
			out = append(out, fmt.Sprintf("found %d %s-related alarms, %s", f.Count, f.Category, advice))
		}
	}

	for _, f := range findings {
		switch f.Type {
		case analysis.FindingRepeatedAlarm:
			if f.Count > 3 {
				out = append(out, fmt.Sprintf("alarm repeated %d times, investigate the root cause to avoid an alarm storm", f.Count))
			}
		case analysis.FindingTemporalPattern:
			if f.Pattern == analysis.PatternBurstAlarms {
				out = append(out, "alarm burst detected, check for cascading failure or system overload")
			}
		}
	}

	return out
}

// confidence is driven by categorization coverage: 0.5 plus up to 0.4 for
// the claimed ratio, plus 0.1 when any category matched, capped at 1.0.
func confidence(findings []analysis.Finding, alarms []incident.Alarm) float64 {
	if len(findings) == 0 || len(alarms) == 0 {
		return 0
	}

	var categorized, buckets int
	for _, f := range findings {
		if f.Type != analysis.FindingAlarmCategory {
			continue
		}
		buckets++
		if f.Category != CategoryUncategorized {
			categorized += f.Count
		}
	}

	c := 0.5 + float64(categorized)/float64(len(alarms))*0.4
	if buckets > 0 {
		c += 0.1
	}
	return math.Round(math.Min(c, 1.0)*100) / 100
}
