package cfg

import (
	"errors"
	"flag"
	"fmt"
	"math"
)

// Config adds triage-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds           int
	ShutdownBudgetSeconds  int
	APIPort                int
	DatabaseURL            string
	SlackWebhookURL        string
	APIToken               string
	AnalyzeTimeoutSeconds  int
	LowConfidenceThreshold float64
	MaxLogLines            int
	MaxAlarms              int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for triage notifications")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token for the incident API (empty = no auth)")
	fs.IntVar(&c.AnalyzeTimeoutSeconds, "analyze-timeout-seconds", 120, "per-analyzer timeout in seconds (1..600)")
	fs.Float64Var(&c.LowConfidenceThreshold, "low-confidence-threshold", 0.3, "confidence below which a task is retried (0..1)")
	fs.IntVar(&c.MaxLogLines, "max-log-lines", 10000, "maximum log lines accepted per incident (1..1000000)")
	fs.IntVar(&c.MaxAlarms, "max-alarms", 1000, "maximum alarms accepted per incident (1..100000)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.AnalyzeTimeoutSeconds <= 0 || c.AnalyzeTimeoutSeconds > 600 {
		errs = append(errs, fmt.Errorf("invalid ANALYZE_TIMEOUT_SECONDS %d (must be 1..600)", c.AnalyzeTimeoutSeconds))
	}

	if math.IsNaN(c.LowConfidenceThreshold) || c.LowConfidenceThreshold < 0 || c.LowConfidenceThreshold >= 1 {
		errs = append(errs, fmt.Errorf("invalid LOW_CONFIDENCE_THRESHOLD %v (must be 0 <= t < 1)", c.LowConfidenceThreshold))
	}

	if c.MaxLogLines <= 0 || c.MaxLogLines > 1_000_000 {
		errs = append(errs, fmt.Errorf("invalid MAX_LOG_LINES %d (must be 1..1000000)", c.MaxLogLines))
	}
	if c.MaxAlarms <= 0 || c.MaxAlarms > 100_000 {
		errs = append(errs, fmt.Errorf("invalid MAX_ALARMS %d (must be 1..100000)", c.MaxAlarms))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
