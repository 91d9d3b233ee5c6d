package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/johndauphine/table-transfer/internal/config"
)

const appName = "table-transfer"

// Notifier sends notifications to Slack.
type Notifier struct {
	config     *config.SlackConfig
	httpClient *http.Client
}

// SlackMessage is a Slack webhook payload.
type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment is a Slack message attachment.
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField is a field in an attachment.
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

const (
	colorGood    = "#36a64f"
	colorWarning = "#ffc107"
	colorDanger  = "#dc3545"
)

// New creates a notifier. A nil or disabled config sends nothing.
func New(cfg *config.SlackConfig) *Notifier {
	if cfg == nil {
		cfg = &config.SlackConfig{}
	}
	return &Notifier{
		config:     cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// IsEnabled reports whether notifications are sent.
func (n *Notifier) IsEnabled() bool {
	return n.config.Enabled && n.config.WebhookURL != ""
}

// RunStarted announces a run.
func (n *Notifier) RunStarted(runID, source, target string, jobCount int) error {
	if !n.IsEnabled() {
		return nil
	}
	return n.send(":rocket:", "", SlackAttachment{
		Color: colorGood,
		Title: "Transfer Started",
		Fields: []SlackField{
			{Title: "Run ID", Value: runID, Short: true},
			{Title: "Jobs", Value: fmt.Sprintf("%d", jobCount), Short: true},
			{Title: "Source", Value: source, Short: true},
			{Title: "Target", Value: target, Short: true},
		},
	})
}

// RunCompleted reports a run in which every job succeeded.
func (n *Notifier) RunCompleted(runID string, startTime time.Time, duration time.Duration, jobCount int, rowCount int64) error {
	if !n.IsEnabled() {
		return nil
	}
	text := fmt.Sprintf("Transfer completed successfully. %d jobs, %s rows, %s rows/sec.",
		jobCount, humanize.Comma(rowCount), humanize.Comma(int64(throughput(rowCount, duration))))
	return n.send(":white_check_mark:", text, SlackAttachment{
		Color: colorGood,
		Fields: []SlackField{
			{Title: "Run ID", Value: runID, Short: true},
			{Title: "Started", Value: startTime.UTC().Format("2006-01-02 15:04:05 UTC"), Short: true},
			{Title: "Duration", Value: formatDuration(duration), Short: true},
			{Title: "Total Rows", Value: humanize.Comma(rowCount), Short: true},
		},
	})
}

// RunCompletedWithErrors reports a run in which some jobs failed.
func (n *Notifier) RunCompletedWithErrors(runID string, startTime time.Time, duration time.Duration,
	succeeded, failed int, rowCount int64, failures []string) error {
	if !n.IsEnabled() {
		return nil
	}
	text := fmt.Sprintf("Transfer completed with errors. %d jobs succeeded, %d failed. Transferred %s rows.",
		succeeded, failed, humanize.Comma(rowCount))
	return n.send(":warning:", text, SlackAttachment{
		Color: colorWarning,
		Fields: []SlackField{
			{Title: "Run ID", Value: runID, Short: true},
			{Title: "Started", Value: startTime.UTC().Format("2006-01-02 15:04:05 UTC"), Short: true},
			{Title: "Duration", Value: formatDuration(duration), Short: true},
			{Title: "Total Rows", Value: humanize.Comma(rowCount), Short: true},
			{Title: "Failed Jobs", Value: summarizeFailures(failures), Short: false},
		},
	})
}

// RunFailed reports a run that could not start or was aborted.
func (n *Notifier) RunFailed(runID string, err error, duration time.Duration) error {
	if !n.IsEnabled() {
		return nil
	}
	return n.send(":x:", "", SlackAttachment{
		Color: colorDanger,
		Title: "Transfer Failed",
		Fields: []SlackField{
			{Title: "Run ID", Value: runID, Short: true},
			{Title: "Duration", Value: formatDuration(duration), Short: true},
			{Title: "Error", Value: errorText(err), Short: false},
		},
	})
}

// JobFailed reports a single failed job.
func (n *Notifier) JobFailed(runID, job, state string, err error) error {
	if !n.IsEnabled() {
		return nil
	}
	return n.send(":warning:", "", SlackAttachment{
		Color: colorWarning,
		Title: "Job Failed",
		Fields: []SlackField{
			{Title: "Run ID", Value: runID, Short: true},
			{Title: "Job", Value: job, Short: true},
			{Title: "State", Value: state, Short: true},
			{Title: "Error", Value: errorText(err), Short: false},
		},
	})
}

func (n *Notifier) send(icon, text string, att SlackAttachment) error {
	att.Footer = appName
	att.Timestamp = time.Now().Unix()
	msg := SlackMessage{
		Channel:     n.config.Channel,
		Username:    n.username(),
		IconEmoji:   icon,
		Text:        text,
		Attachments: []SlackAttachment{att},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	resp, err := n.httpClient.Post(n.config.WebhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sending to Slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Slack returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) username() string {
	if n.config.Username != "" {
		return n.config.Username
	}
	return appName
}

func errorText(err error) string {
	if err == nil {
		return "Unknown error"
	}
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	return msg
}

func summarizeFailures(failures []string) string {
	if len(failures) <= 5 {
		return strings.Join(failures, ", ")
	}
	return fmt.Sprintf("%s... and %d more", strings.Join(failures[:3], ", "), len(failures)-3)
}

func throughput(rows int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(rows) / d.Seconds()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
