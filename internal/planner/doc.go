// Package planner orchestrates incident triage: it plans analysis tasks
// from an incident's evidence, drives them through the analyzer registry
// with at-most-one reallocation per task, aggregates the results through
// the summary agent, and assembles the final report.
package planner
