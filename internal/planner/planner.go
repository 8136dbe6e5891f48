package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/linnemanlabs/sift/internal/analysis"
	"github.com/linnemanlabs/sift/internal/incident"
	"github.com/linnemanlabs/sift/internal/realloc"
	"github.com/linnemanlabs/sift/internal/summary"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/planner")

// DefaultAnalyzeTimeout bounds a single analyzer invocation.
const DefaultAnalyzeTimeout = 120 * time.Second

// Payload keys on planned tasks.
const (
	PayloadLogs        = "logs"
	PayloadAlarms      = "alarms"
	PayloadDescription = "incident_description"
)

// noAnalyzerName labels synthetic failure results for tasks nothing could
// handle.
const noAnalyzerName = "none"

// Hooks are optional callbacks the planner fires as it works. Any field may
// be nil.
type Hooks struct {
	OnTask         func(taskType string, success bool, duration float64)
	OnReallocation func(reason string)
	OnComplete     func(status string, duration float64, confidence float64)
}

// Config carries the planner's tunables.
type Config struct {
	// AnalyzeTimeout bounds each analyzer invocation. Zero means
	// DefaultAnalyzeTimeout.
	AnalyzeTimeout time.Duration
}

// Planner turns one incident into a triage report: plan tasks from the
// evidence, execute them through the registry with at most one reallocation
// each, then aggregate and assemble. A single Planner serves concurrent
// incident runs; the only mutable state is the guarded task bookkeeping.
type Planner struct {
	registry    *analysis.Registry
	reallocator *realloc.Reallocator
	logger      log.Logger
	hooks       Hooks
	timeout     time.Duration

	tasks *taskTracker
}

// New creates a planner over the given registry and reallocator.
func New(registry *analysis.Registry, reallocator *realloc.Reallocator, logger log.Logger, hooks Hooks, cfg Config) *Planner {
	timeout := cfg.AnalyzeTimeout
	if timeout <= 0 {
		timeout = DefaultAnalyzeTimeout
	}
	return &Planner{
		registry:    registry,
		reallocator: reallocator,
		logger:      logger,
		hooks:       hooks,
		timeout:     timeout,
		tasks:       newTaskTracker(),
	}
}

// Process runs the full triage pipeline over one incident. It always returns
// a report: any panic in the pipeline is converted into a failure envelope.
func (p *Planner) Process(ctx context.Context, in *incident.Incident) (rep *Report) {
	ctx, span := tracer.Start(ctx, "planner.Process")
	defer span.End()

	start := time.Now()
	incidentID := in.ID
	if incidentID == "" {
		incidentID = ulid.Make().String()
	}
	span.SetAttributes(attribute.String("incident.id", incidentID))

	L := p.logger.With("incident_id", incidentID)

	defer func() {
		if r := recover(); r != nil {
			L.Warn(ctx, "triage pipeline panicked", "panic", fmt.Sprint(r))
			rep = &Report{
				Success:           false,
				Error:             fmt.Sprintf("analysis pipeline failed: %v", r),
				AnalysisTimestamp: time.Now(),
			}
		}
		status := "complete"
		confidence := 0.0
		if !rep.Success {
			status = "failed"
		} else if rep.Summary != nil {
			confidence = rep.Summary.Confidence
		}
		if p.hooks.OnComplete != nil {
			p.hooks.OnComplete(status, time.Since(start).Seconds(), confidence)
		}
	}()

	tasks := p.plan(in)
	L.Info(ctx, "planned analysis tasks", "tasks", len(tasks))

	results := p.execute(ctx, tasks)
	summaryResult := p.summarize(ctx, results)

	rep = p.assemble(incidentID, in, results, summaryResult)
	L.Info(ctx, "triage complete",
		"duration", time.Since(start).Seconds(),
		"results", len(results),
		"confidence", confidence(rep),
	)
	return rep
}

func confidence(rep *Report) float64 {
	if rep.Summary == nil {
		return 0
	}
	return rep.Summary.Confidence
}

// plan derives one high-priority task per evidence section the incident
// actually carries, highest priority first. An incident with neither logs
// nor alarms plans nothing.
func (p *Planner) plan(in *incident.Incident) []*analysis.Task {
	var tasks []*analysis.Task

	if in.HasLogs() {
		tasks = append(tasks, analysis.NewTask(analysis.TaskLogAnalysis, analysis.PriorityHigh, map[string]any{
			PayloadLogs:        in.Logs,
			PayloadDescription: in.Description,
		}))
	}
	if in.HasAlarms() {
		tasks = append(tasks, analysis.NewTask(analysis.TaskAlarmAnalysis, analysis.PriorityHigh, map[string]any{
			PayloadAlarms:      in.Alarms,
			PayloadDescription: in.Description,
		}))
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority > tasks[j].Priority
	})
	return tasks
}

// execute runs the planned tasks sequentially, producing exactly one result
// per task. A task no analyzer can handle yields a synthetic failure and
// execution moves on.
func (p *Planner) execute(ctx context.Context, tasks []*analysis.Task) []*analysis.Result {
	results := make([]*analysis.Result, 0, len(tasks))
	for _, task := range tasks {
		results = append(results, p.runTask(ctx, task))
	}
	return results
}

func (p *Planner) runTask(ctx context.Context, task *analysis.Task) *analysis.Result {
	ctx, span := tracer.Start(ctx, "planner.task")
	defer span.End()
	span.SetAttributes(
		attribute.String("sift.task.id", task.ID),
		attribute.String("sift.task.type", string(task.Type)),
	)

	L := p.logger.With("task_id", task.ID, "task_type", string(task.Type))
	start := time.Now()

	candidates := p.registry.Select(task)
	if len(candidates) == 0 {
		L.Warn(ctx, "no analyzer can handle task")
		result := analysis.Failure(task.ID, noAnalyzerName,
			fmt.Sprintf("no analyzer found for task type %s", task.Type))
		p.tasks.complete(task.ID, result)
		p.taskDone(task, result, start)
		return result
	}
	span.SetAttributes(attribute.String("sift.analyzer", candidates[0].Name()))

	p.tasks.activate(task)
	defer p.tasks.deactivate(task.ID)

	result := p.invoke(ctx, candidates[0], task)

	if retry, ok := p.reallocator.Reallocate(task, result); ok {
		reason, _ := retry.Metadata[realloc.MetaReason].(string)
		L.Info(ctx, "reallocating task", "reason", reason)
		if p.hooks.OnReallocation != nil {
			p.hooks.OnReallocation(reason)
		}

		if next := p.pickRetryAnalyzer(retry, candidates[0].Name()); next != nil {
			result = p.invoke(ctx, next, retry)
			p.reallocator.RecordFinal(task.ID, result)
		}
	}

	p.tasks.complete(task.ID, result)
	p.taskDone(task, result, start)
	return result
}

func (p *Planner) taskDone(task *analysis.Task, result *analysis.Result, start time.Time) {
	if p.hooks.OnTask != nil {
		p.hooks.OnTask(string(task.Type), result.Success, time.Since(start).Seconds())
	}
}

// pickRetryAnalyzer selects the analyzer for the retry attempt. A fallback
// hint prefers a different analyzer when one is available; otherwise the
// first candidate runs again with the retry hints in place.
func (p *Planner) pickRetryAnalyzer(retry *analysis.Task, previous string) analysis.Analyzer {
	candidates := p.registry.Select(retry)
	if len(candidates) == 0 {
		return nil
	}
	if wantFallback, _ := retry.Metadata[realloc.MetaUseFallback].(bool); wantFallback {
		for _, c := range candidates {
			if c.Name() != previous {
				return c
			}
		}
	}
	return candidates[0]
}

// invoke runs one analyzer attempt under the configured timeout. Panics and
// nil results are converted to failures; a timed-out attempt fails without
// waiting for the analyzer goroutine.
func (p *Planner) invoke(ctx context.Context, a analysis.Analyzer, task *analysis.Task) *analysis.Result {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan *analysis.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- analysis.Failure(task.ID, a.Name(), fmt.Sprintf("analyzer panicked: %v", r))
			}
		}()
		done <- a.Analyze(cctx, task)
	}()

	select {
	case result := <-done:
		if result == nil {
			return analysis.Failure(task.ID, a.Name(), "analyzer returned no result")
		}
		if result.Confidence < 0 {
			result.Confidence = 0
		} else if result.Confidence > 1 {
			result.Confidence = 1
		}
		return result
	case <-cctx.Done():
		return analysis.Failure(task.ID, a.Name(),
			fmt.Sprintf("analysis timed out after %s", p.timeout))
	}
}

// summarize drives the aggregation stage through the registry like any other
// task, at critical priority.
func (p *Planner) summarize(ctx context.Context, results []*analysis.Result) *analysis.Result {
	task := analysis.NewTask(analysis.TaskSummary, analysis.PriorityCritical, map[string]any{
		summary.PayloadResults: results,
	})

	candidates := p.registry.Select(task)
	if len(candidates) == 0 {
		return analysis.Failure(task.ID, noAnalyzerName, "no summary analyzer registered")
	}

	p.tasks.activate(task)
	defer p.tasks.deactivate(task.ID)

	result := p.invoke(ctx, candidates[0], task)
	p.tasks.complete(task.ID, result)
	return result
}

func (p *Planner) assemble(incidentID string, in *incident.Incident, results []*analysis.Result, sum *analysis.Result) *Report {
	digests := make([]ResultDigest, 0, len(results))
	for _, r := range results {
		digests = append(digests, ResultDigest{
			Analyzer:         r.Analyzer,
			Success:          r.Success,
			Confidence:       r.Confidence,
			FindingsCount:    len(r.Findings),
			SuggestionsCount: len(r.Suggestions),
		})
	}

	return &Report{
		Success:           true,
		IncidentID:        incidentID,
		AnalysisTimestamp: time.Now(),
		InputSummary: &InputSummary{
			LogsProvided:        in.HasLogs(),
			AlarmsProvided:      in.HasAlarms(),
			IncidentDescription: in.Description,
		},
		AnalysisResults: digests,
		Summary: &Summary{
			Success:     sum.Success,
			Confidence:  sum.Confidence,
			Findings:    sum.Findings,
			Suggestions: sum.Suggestions,
		},
		Recommendations: buildRecommendations(sum),
	}
}

// buildRecommendations buckets the summary's suggestions by their embedded
// priority markers and derives preventive measures from the observed
// root-cause categories.
func buildRecommendations(sum *analysis.Result) *Recommendations {
	rec := &Recommendations{
		ImmediateActions:   []string{},
		FollowUpActions:    []string{},
		PreventiveMeasures: []string{},
	}

	for _, s := range sum.Suggestions {
		switch {
		case strings.Contains(s, summary.MarkerUrgent) || strings.Contains(s, summary.MarkerHigh):
			rec.ImmediateActions = append(rec.ImmediateActions, s)
		case strings.Contains(s, summary.MarkerMedium):
			rec.FollowUpActions = append(rec.FollowUpActions, s)
		}
	}

	rec.PreventiveMeasures = preventiveMeasures(sum.Findings)
	return rec
}

// preventiveMeasures is the fixed baseline plus one entry per distinct
// observed root-cause category, de-duplicated in first-seen order.
func preventiveMeasures(findings []analysis.Finding) []string {
	measures := []string{
		"maintain comprehensive monitoring so emerging problems surface early",
		"run periodic health checks and capacity reviews",
		"keep incident response runbooks current",
		"tune log retention and alert rules to reduce noise",
	}

	perCategory := map[string]string{
		summary.CategoryResource:   "add resource usage alerting with automated scaling policies",
		summary.CategoryDependency: "strengthen dependency management and failure isolation between services",
		summary.CategoryTemporal:   "add rate-of-change alerting to catch alarm storms sooner",
	}

	seen := make(map[string]bool, len(measures))
	for _, m := range measures {
		seen[m] = true
	}
	for _, f := range findings {
		if f.Type != analysis.FindingRootCause {
			continue
		}
		m, ok := perCategory[f.Category]
		if !ok || seen[m] {
			continue
		}
		seen[m] = true
		measures = append(measures, m)
	}
	return measures
}

// TaskState reports where a task is from the planner's point of view.
type TaskState string

const (
	TaskActive    TaskState = "active"
	TaskCompleted TaskState = "completed"
	TaskUnknown   TaskState = "not_found"
)

// TaskStatus returns a task's state and, once completed, its result.
func (p *Planner) TaskStatus(taskID string) (TaskState, *analysis.Result) {
	return p.tasks.status(taskID)
}

// SystemStatus is a point-in-time snapshot for introspection endpoints.
type SystemStatus struct {
	ActiveTasks    int       `json:"active_tasks"`
	CompletedTasks int       `json:"completed_tasks"`
	Analyzers      []string  `json:"analyzers"`
	SupportedTypes []string  `json:"supported_task_types"`
	Rules          int       `json:"reallocation_rules"`
	Timestamp      time.Time `json:"timestamp"`
}

// Status snapshots the planner, registry and reallocator.
func (p *Planner) Status() SystemStatus {
	active, completed := p.tasks.counts()

	names := p.registry.All()
	types := make([]string, 0)
	for _, t := range p.registry.SupportedTaskTypes() {
		types = append(types, string(t))
	}

	return SystemStatus{
		ActiveTasks:    active,
		CompletedTasks: completed,
		Analyzers:      names,
		SupportedTypes: types,
		Rules:          len(p.reallocator.Rules()),
		Timestamp:      time.Now(),
	}
}
