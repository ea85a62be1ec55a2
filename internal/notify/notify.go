// Package notify delivers playbook lifecycle notifications to operators.
// The Manager renders one message per event and fans it out to every
// configured channel concurrently; a failing channel never blocks the others.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// UnresolvedPlaybook is the playbook name reported when no playbook could be
// resolved for a finding.
const UnresolvedPlaybook = "Unresolved"

// Notifier is what the engine needs from a notification backend.
type Notifier interface {
	// SendStarting announces that playbookName is about to run for f.
	SendStarting(ctx context.Context, f *models.Finding, playbookName string) error

	// SendComplete reports the outcome of a run, successful or not.
	SendComplete(ctx context.Context, n CompleteNotice) error
}

// CompleteNotice is the payload of a completion notification.
type CompleteNotice struct {
	ExecutionID string
	Finding     *models.Finding
	Playbook    string
	Result      *models.PlaybookResult
	Failed      bool
}

// Kind distinguishes the two lifecycle messages.
type Kind string

const (
	KindStarting Kind = "starting"
	KindComplete Kind = "complete"
)

// Message is a rendered notification handed to channels.
type Message struct {
	Kind     Kind
	Subject  string
	Body     string
	Severity models.Severity
	Finding  *models.Finding
	Playbook string
	Failed   bool
	Counts   models.StatusCounts
}

// Channel is one delivery target.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Manager fans messages out to channels and filters by severity.
type Manager struct {
	channels    []Channel
	minSeverity models.Severity
	log         *slog.Logger
}

// NewManager returns a Manager delivering to channels. Findings whose label
// is below minSeverity are dropped; an empty minSeverity keeps everything.
func NewManager(log *slog.Logger, minSeverity models.Severity, channels ...Channel) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Manager{channels: channels, minSeverity: minSeverity, log: log}
}

// FromConfig builds a Manager with every channel cfg enables. snsClient may
// be nil when no topic is configured.
func FromConfig(cfg config.NotificationsConfig, snsClient common.SNSClient, log *slog.Logger) (*Manager, error) {
	var channels []Channel
	if cfg.Slack.WebhookURL != "" {
		channels = append(channels, NewSlackChannel(cfg.Slack.WebhookURL, cfg.Slack.Channel, cfg.Slack.Username))
	}
	if cfg.SNS.TopicARN != "" {
		if snsClient == nil {
			return nil, fmt.Errorf("notifications.sns.topic_arn is set but no SNS client is available")
		}
		channels = append(channels, NewSNSChannel(snsClient, cfg.SNS.TopicARN))
	}
	if cfg.Log {
		channels = append(channels, NewLogChannel(log))
	}
	minSev, _ := models.ParseSeverity(strings.ToUpper(cfg.MinSeverity))
	return NewManager(log, minSev, channels...), nil
}

// Channels returns the names of the configured channels.
func (m *Manager) Channels() []string {
	out := make([]string, len(m.channels))
	for i, c := range m.channels {
		out[i] = c.Name()
	}
	return out
}

// SendStarting implements Notifier.
func (m *Manager) SendStarting(ctx context.Context, f *models.Finding, playbookName string) error {
	return m.dispatch(ctx, Message{
		Kind:     KindStarting,
		Subject:  startingSubject(f, playbookName),
		Body:     RenderStarting(f, playbookName),
		Severity: f.Label(),
		Finding:  f,
		Playbook: playbookName,
	})
}

// SendComplete implements Notifier.
func (m *Manager) SendComplete(ctx context.Context, n CompleteNotice) error {
	var counts models.StatusCounts
	if n.Result != nil {
		counts = n.Result.Counts()
	}
	return m.dispatch(ctx, Message{
		Kind:     KindComplete,
		Subject:  completeSubject(n),
		Body:     RenderComplete(n),
		Severity: n.Finding.Label(),
		Finding:  n.Finding,
		Playbook: n.Playbook,
		Failed:   n.Failed,
		Counts:   counts,
	})
}

// dispatch sends msg on every channel and joins their errors.
func (m *Manager) dispatch(ctx context.Context, msg Message) error {
	if !msg.Severity.AtLeast(m.minSeverity) {
		m.log.Debug("notification suppressed by severity",
			"kind", msg.Kind, "severity", msg.Severity, "min_severity", m.minSeverity)
		return nil
	}

	// No shared context: a failing channel must not cancel the others.
	var g errgroup.Group
	errs := make([]error, len(m.channels))
	for i, ch := range m.channels {
		g.Go(func() error {
			if err := ch.Send(ctx, msg); err != nil {
				errs[i] = fmt.Errorf("%s: %w", ch.Name(), err)
				return errs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}
	return errors.Join(errs...)
}
