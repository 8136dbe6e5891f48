// Package realloc decides whether a finished analysis attempt should be
// retried, derives the retry task, and tracks per-analyzer performance for
// the lifetime of the process.
package realloc

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/linnemanlabs/sift/internal/analysis"
)

// Reason tags why a task was reallocated. Exactly one reason fires per
// decision.
type Reason string

const (
	ReasonAnalysisFailure      Reason = "analysis_failure"
	ReasonLowConfidence        Reason = "low_confidence"
	ReasonInsufficientFindings Reason = "insufficient_findings"
)

// metadata keys stamped onto derived tasks.
const (
	MetaOriginalTaskID   = "original_task_id"
	MetaReason           = "reallocation_reason"
	MetaTimestamp        = "reallocation_timestamp"
	MetaUseFallback      = "use_fallback_analyzer"
	MetaEnhancedAnalysis = "enhanced_analysis"
	MetaExpandedScope    = "expand_analysis_scope"

	reallocatedIDSuffix = "_reallocated"
)

// Config carries the reallocation thresholds. Zero values fall back to the
// defaults from DefaultConfig.
type Config struct {
	// LowConfidenceThreshold is the confidence below which a successful
	// result still triggers a retry.
	LowConfidenceThreshold float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{LowConfidenceThreshold: 0.3}
}

// Rule is a registrable reallocation rule. Only the three built-in
// conditions are consulted by Decide today; custom rules are stored for
// introspection and future evaluation.
type Rule struct {
	Condition   string  `json:"condition"`
	Threshold   float64 `json:"threshold"`
	Action      string  `json:"action"`
	Description string  `json:"description"`
}

// Metric accumulates attempt counters for one analyzer.
type Metric struct {
	Attempts  int       `json:"total_tasks"`
	Successes int       `json:"successful_tasks"`
	UpdatedAt time.Time `json:"last_updated"`
}

// SuccessRate returns successes/attempts rounded to two decimals, 0 for an
// analyzer that has never run.
func (m Metric) SuccessRate() float64 {
	if m.Attempts == 0 {
		return 0
	}
	return math.Round(float64(m.Successes)/float64(m.Attempts)*100) / 100
}

// Reallocator owns the retry decision and the process-lifetime bookkeeping.
// It is safe for use from concurrent incident runs: history and metrics are
// guarded maps, the decision itself is pure.
type Reallocator struct {
	cfg Config

	mu      sync.Mutex
	history map[string][]*analysis.Result // original task ID -> attempts
	metrics map[string]*Metric            // analyzer name -> counters
	rules   []Rule
}

// New creates a Reallocator with the built-in rules installed.
func New(cfg Config) *Reallocator {
	if cfg.LowConfidenceThreshold <= 0 {
		cfg.LowConfidenceThreshold = DefaultConfig().LowConfidenceThreshold
	}
	r := &Reallocator{
		cfg:     cfg,
		history: make(map[string][]*analysis.Result),
		metrics: make(map[string]*Metric),
	}
	r.rules = []Rule{
		{
			Condition:   string(ReasonLowConfidence),
			Threshold:   cfg.LowConfidenceThreshold,
			Action:      "retry_with_different_analyzer",
			Description: "retry with another analyzer when confidence is too low",
		},
		{
			Condition:   string(ReasonAnalysisFailure),
			Threshold:   1,
			Action:      "fallback_analyzer",
			Description: "fall back to another analyzer when analysis fails",
		},
		{
			Condition:   "high_error_rate",
			Threshold:   0.5,
			Action:      "escalate_priority",
			Description: "escalate task priority when an analyzer's error rate is high",
		},
	}
	return r
}

// Decide evaluates the fixed-order predicate list against the prior result.
// The first matching predicate wins; a nil result never reallocates.
func (r *Reallocator) Decide(result *analysis.Result) (Reason, bool) {
	if result == nil {
		return "", false
	}

	checks := []struct {
		match  func(*analysis.Result) bool
		reason Reason
	}{
		{func(res *analysis.Result) bool { return !res.Success }, ReasonAnalysisFailure},
		{func(res *analysis.Result) bool { return res.Confidence < r.cfg.LowConfidenceThreshold }, ReasonLowConfidence},
		{func(res *analysis.Result) bool { return len(res.Findings) == 0 }, ReasonInsufficientFindings},
	}
	for _, c := range checks {
		if c.match(result) {
			return c.reason, true
		}
	}
	return "", false
}

// Reallocate records the attempt and, when a reason fires, derives the retry
// task. The returned bool is false when no retry is warranted; the original
// task is never mutated either way.
func (r *Reallocator) Reallocate(task *analysis.Task, result *analysis.Result) (*analysis.Task, bool) {
	if result != nil {
		r.record(task.ID, result)
	}

	reason, ok := r.Decide(result)
	if !ok {
		return nil, false
	}

	retry := task.Derive(task.ID + reallocatedIDSuffix)
	retry.Metadata[MetaOriginalTaskID] = task.ID
	retry.Metadata[MetaReason] = string(reason)
	retry.Metadata[MetaTimestamp] = time.Now().Format(time.RFC3339)

	switch reason {
	case ReasonAnalysisFailure:
		retry.Metadata[MetaUseFallback] = true
	case ReasonLowConfidence:
		// The only reason that escalates priority, one step, capped.
		retry.Priority = task.Priority.Escalate()
		retry.Metadata[MetaEnhancedAnalysis] = true
	case ReasonInsufficientFindings:
		retry.Metadata[MetaExpandedScope] = true
	}

	return retry, true
}

// RecordFinal folds a retry attempt's result into history and metrics
// without making another decision. The planner calls this for the second
// (and last) attempt.
func (r *Reallocator) RecordFinal(originalTaskID string, result *analysis.Result) {
	if result != nil {
		r.record(originalTaskID, result)
	}
}

func (r *Reallocator) record(taskID string, result *analysis.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history[taskID] = append(r.history[taskID], result)

	m, ok := r.metrics[result.Analyzer]
	if !ok {
		m = &Metric{}
		r.metrics[result.Analyzer] = m
	}
	m.Attempts++
	if result.Success {
		m.Successes++
	}
	m.UpdatedAt = time.Now()
}

// History returns the recorded attempts for a task, oldest first.
func (r *Reallocator) History(taskID string) []*analysis.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*analysis.Result, len(r.history[taskID]))
	copy(out, r.history[taskID])
	return out
}

// Performance returns the accumulated counters for an analyzer.
func (r *Reallocator) Performance(analyzer string) (Metric, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[analyzer]
	if !ok {
		return Metric{}, false
	}
	return *m, true
}

// AddRule registers a custom rule. Rules beyond the built-in conditions are
// stored but not yet consulted by Decide.
func (r *Reallocator) AddRule(rule Rule) error {
	if rule.Condition == "" || rule.Action == "" || rule.Description == "" {
		return fmt.Errorf("reallocation rule requires condition, action and description")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
	return nil
}

// RemoveRule drops every rule with the given condition tag.
func (r *Reallocator) RemoveRule(condition string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rules[:0]
	for _, rule := range r.rules {
		if rule.Condition != condition {
			kept = append(kept, rule)
		}
	}
	r.rules = kept
}

// Rules returns a copy of the installed rule set.
func (r *Reallocator) Rules() []Rule {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}
