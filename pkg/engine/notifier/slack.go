// Package notifier posts scan summaries to Slack via incoming webhooks.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Summary holds the per-run figures the webhook message is built from.
type Summary struct {
	RunID      string
	InputDir   string
	ReportPath string
	FilesSeen  int
	Parsed     int
	Skipped    int
	TaggedHits int
}

// SlackClient handles sending notifications to Slack.
type SlackClient struct {
	WebhookURL string
}

// NewSlackClient creates a new Slack client. If the webhook URL is empty,
// it returns a nil client and all sends become no-ops.
func NewSlackClient(webhookURL string) *SlackClient {
	if webhookURL == "" {
		return nil
	}
	return &SlackClient{WebhookURL: webhookURL}
}

// block is a single Block Kit element.
// Ref: https://api.slack.com/block-kit/building
type block = map[string]interface{}

func headerBlock(text string) block {
	return block{
		"type": "header",
		"text": block{"type": "plain_text", "text": text},
	}
}

func contextBlock(text string) block {
	return block{
		"type":     "context",
		"elements": []block{{"type": "mrkdwn", "text": text}},
	}
}

func sectionBlock(text string) block {
	return block{
		"type": "section",
		"text": block{"type": "mrkdwn", "text": text},
	}
}

func fieldsBlock(fields ...string) block {
	fs := make([]block, 0, len(fields))
	for _, f := range fields {
		fs = append(fs, block{"type": "mrkdwn", "text": f})
	}
	return block{"type": "section", "fields": fs}
}

func dividerBlock() block {
	return block{"type": "divider"}
}

// SendScanReport posts a formatted run summary to the configured webhook.
func (s *SlackClient) SendScanReport(sum Summary) error {
	if s == nil || s.WebhookURL == "" {
		return nil
	}

	blocks := []block{
		headerBlock(fmt.Sprintf("%s Prefetch Triage Report", statusIcon(sum))),
		contextBlock(fmt.Sprintf("*Scan Date:* %s | *Directory:* `%s`",
			time.Now().Format("2006-01-02 15:04"), sum.InputDir)),
		dividerBlock(),
		fieldsBlock(
			fmt.Sprintf("*Artifacts Found:*\n%d", sum.FilesSeen),
			fmt.Sprintf("*Parsed:*\n%d", sum.Parsed),
			fmt.Sprintf("*Skipped:*\n%d", sum.Skipped),
			fmt.Sprintf("*Triage Hits:*\n%d", sum.TaggedHits),
		),
	}
	if sum.ReportPath != "" {
		blocks = append(blocks, sectionBlock(fmt.Sprintf("Report written to `%s`", sum.ReportPath)))
	}
	if sum.RunID != "" {
		blocks = append(blocks, contextBlock(fmt.Sprintf("Run `%s`", sum.RunID)))
	}

	return s.send(block{"blocks": blocks})
}

// SendDriftAlert notifies about executables that appeared for the first
// time since the previous run.
func (s *SlackClient) SendDriftAlert(inputDir string, newExecutables []string) error {
	if s == nil || s.WebhookURL == "" || len(newExecutables) == 0 {
		return nil
	}

	blocks := []block{
		headerBlock(":rotating_light: New Executables Observed"),
		sectionBlock(fmt.Sprintf("*Directory:* `%s`\n```%s```",
			inputDir, strings.Join(newExecutables, "\n"))),
	}
	return s.send(block{"blocks": blocks})
}

// statusIcon picks the headline emoji. A run where nothing parsed is a
// failure, any skips downgrade it to a warning.
func statusIcon(sum Summary) string {
	switch {
	case sum.FilesSeen > 0 && sum.Parsed == 0:
		return ":red_circle:"
	case sum.Skipped > 0:
		return ":large_yellow_circle:"
	default:
		return ":large_green_circle:"
	}
}

func (s *SlackClient) send(payload block) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(s.WebhookURL, "application/json", bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
