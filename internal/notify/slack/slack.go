// Package slack sends triage notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/sift/internal/analysis"
	"github.com/linnemanlabs/sift/internal/planner"
)

const (
	maxActions  = 5
	httpTimeout = 10 * time.Second
)

// Notifier sends finished triage runs to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts a triage run to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, run *planner.Run) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(run)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(run *planner.Run) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(run),
			{"type": "divider"},
			fieldsBlock(run),
			{"type": "divider"},
			causesBlock(run),
			actionsBlock(run),
			{"type": "divider"},
			contextBlock(run),
		},
	}
}

func headerBlock(run *planner.Run) map[string]any {
	title := "Incident Triage Complete"
	if run.Status == planner.StatusFailed {
		title = "Incident Triage Failed"
	}
	text := fmt.Sprintf("%s %s: %s", statusEmoji(run), title, run.IncidentID)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(run *planner.Run) map[string]any {
	confidence := 0.0
	tasks := 0
	causes := 0
	if run.Report != nil {
		tasks = len(run.Report.AnalysisResults)
		if run.Report.Summary != nil {
			confidence = run.Report.Summary.Confidence
			for _, f := range run.Report.Summary.Findings {
				if f.Type == analysis.FindingRootCause {
					causes++
				}
			}
		}
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", run.Status),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Confidence:* %.0f%%", confidence*100),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", run.Duration),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Tasks:* %d", tasks),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Root causes:* %d", causes),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func causesBlock(run *planner.Run) map[string]any {
	var lines []string
	if run.Report != nil && run.Report.Summary != nil {
		for _, f := range run.Report.Summary.Findings {
			if f.Type != analysis.FindingRootCause {
				continue
			}
			label := f.Category
			if f.Subtype != "" {
				label += "/" + f.Subtype
			}
			lines = append(lines, fmt.Sprintf("• *%s* (%.0f%%): %s", label, f.Confidence*100, f.Description))
		}
	}

	text := strings.Join(lines, "\n")
	if text == "" {
		text = "_No root causes identified._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Root causes*\n%s", text),
		},
	}
}

func actionsBlock(run *planner.Run) map[string]any {
	var lines []string
	if run.Report != nil && run.Report.Recommendations != nil {
		for _, a := range run.Report.Recommendations.ImmediateActions {
			lines = append(lines, "• "+a)
			if len(lines) == maxActions {
				break
			}
		}
	}

	text := strings.Join(lines, "\n")
	if text == "" {
		text = "_No immediate actions required._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Immediate actions*\n%s", text),
		},
	}
}

func contextBlock(run *planner.Run) map[string]any {
	ts := run.CompletedAt
	if ts.IsZero() {
		ts = run.CreatedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("sift • run %s • %s", run.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func statusEmoji(run *planner.Run) string {
	if run.Status == planner.StatusFailed {
		return "\U0001f534" // red circle
	}
	confidence := 0.0
	if run.Report != nil && run.Report.Summary != nil {
		confidence = run.Report.Summary.Confidence
	}
	switch {
	case confidence >= 0.7:
		return "\U0001f7e2" // green circle
	case confidence >= 0.3:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e0" // orange circle
	}
}
