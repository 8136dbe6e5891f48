// Package analysis defines the shared triage data model (tasks, findings,
// results), the analyzer capability contract, and the registry that indexes
// analyzers by name and task type.
package analysis
