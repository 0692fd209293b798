/*
Package notifier is the autopilot's external incident-notification
dependency: `notify(severity, incident_notification)`, routing left
entirely to the concrete Notifier. Two implementations are provided: a
structured-logging default and a Slack webhook notifier that posts every
incident it is given.
*/
package notifier

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/vvtv/autopilot/pkg/log"
)

// Severity classifies an incident notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Incident is one notification the cycle controller raises when an error's
// apperr.Policy is Pause, when a canary deployment is rolled back, or when
// committing parameter changes fails.
type Incident struct {
	Severity    Severity
	Component   string
	Summary     string
	Detail      string
	DeploymentID string // empty unless the incident is deployment-scoped
}

// Notifier is the autopilot's external notification dependency contract.
type Notifier interface {
	Notify(incident Incident) error
}

// LogNotifier routes every incident through the structured logger, the
// default Notifier when no external channel is configured.
type LogNotifier struct{}

// NewLogNotifier returns the log-based default Notifier.
func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) Notify(incident Incident) error {
	logger := log.WithComponent(incident.Component)
	event := logger.Warn()
	if incident.Severity == SeverityCritical {
		event = logger.Error()
	} else if incident.Severity == SeverityInfo {
		event = logger.Info()
	}
	event.Str("severity", string(incident.Severity)).Str("deployment_id", incident.DeploymentID).
		Str("detail", incident.Detail).Msg(incident.Summary)
	return nil
}

// SlackNotifier posts incidents to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
}

// NewSlackNotifier returns a Notifier posting to webhookURL, defaulting
// messages to channel (overridable per-message by the webhook's own config).
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, channel: channel}
}

func (n *SlackNotifier) Notify(incident Incident) error {
	color := severityColor(incident.Severity)
	msg := &slack.WebhookMessage{
		Channel: n.channel,
		Attachments: []slack.Attachment{
			{
				Color: color,
				Title: fmt.Sprintf("[%s] %s", incident.Severity, incident.Summary),
				Text:  incident.Detail,
				Fields: []slack.AttachmentField{
					{Title: "component", Value: incident.Component, Short: true},
					{Title: "deployment_id", Value: incident.DeploymentID, Short: true},
				},
			},
		},
	}
	if err := slack.PostWebhook(n.webhookURL, msg); err != nil {
		return fmt.Errorf("failed to post slack notification: %w", err)
	}
	return nil
}

func severityColor(s Severity) string {
	switch s {
	case SeverityCritical:
		return "danger"
	case SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}
