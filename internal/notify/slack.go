package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

// SlackChannel posts messages to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
	channel    string
	username   string
	client     *http.Client
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// NewSlackChannel returns a channel posting to webhookURL. channel and
// username override the webhook's defaults when set.
func NewSlackChannel(webhookURL, channel, username string) *SlackChannel {
	if username == "" {
		username = "GuardDuty Responder"
	}
	return &SlackChannel{
		webhookURL: webhookURL,
		channel:    channel,
		username:   username,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackChannel) Name() string { return "slack" }

func (s *SlackChannel) Send(ctx context.Context, msg Message) error {
	att := slackAttachment{
		Color: severityColor(msg.Severity),
		Title: msg.Subject,
		Text:  "```" + msg.Body + "```",
		Fields: []slackField{
			{Title: "Severity", Value: string(msg.Severity), Short: true},
			{Title: "Playbook", Value: msg.Playbook, Short: true},
		},
	}
	if msg.Kind == KindComplete {
		if msg.Failed {
			att.Color = "#FF0000"
		}
		att.Fields = append(att.Fields, slackField{
			Title: "Actions",
			Value: fmt.Sprintf("%d ok / %d failed / %d skipped", msg.Counts.Success, msg.Counts.Error, msg.Counts.Skipped),
			Short: true,
		})
	}
	if msg.Finding != nil {
		att.Footer = fmt.Sprintf("Finding %s | %s", msg.Finding.ID, msg.Finding.Region)
	}

	payload, err := json.Marshal(slackMessage{
		Channel:     s.channel,
		Username:    s.username,
		Text:        msg.Subject,
		Attachments: []slackAttachment{att},
	})
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func severityColor(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "#8B0000"
	case models.SeverityHigh:
		return "#FF4500"
	case models.SeverityMedium:
		return "#FFA500"
	default:
		return "#36A64F"
	}
}
