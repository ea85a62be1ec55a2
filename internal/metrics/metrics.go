// Package metrics publishes per-execution counters to CloudWatch so
// responders can alarm on playbooks that start failing.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// Metric names.
const (
	MetricActionsSucceeded = "ActionsSucceeded"
	MetricActionsFailed    = "ActionsFailed"
	MetricActionsSkipped   = "ActionsSkipped"
	MetricPlaybookFailures = "PlaybookFailures"
	MetricPlaybookDuration = "PlaybookDuration"
)

// Execution summarises one handled finding.
type Execution struct {
	Playbook    string
	FindingType string
	Counts      models.StatusCounts
	Failed      bool
	Duration    time.Duration
	Timestamp   time.Time
}

// Publisher records executions.
type Publisher interface {
	Publish(ctx context.Context, e Execution) error
}

// Noop discards every execution.
type Noop struct{}

func (Noop) Publish(context.Context, Execution) error { return nil }

// CloudWatchPublisher writes one PutMetricData call per execution.
type CloudWatchPublisher struct {
	client    common.CloudWatchClient
	namespace string
}

// NewCloudWatchPublisher returns a publisher writing under namespace.
func NewCloudWatchPublisher(client common.CloudWatchClient, namespace string) *CloudWatchPublisher {
	return &CloudWatchPublisher{client: client, namespace: namespace}
}

// FromConfig returns a CloudWatchPublisher when metrics are enabled and Noop
// otherwise.
func FromConfig(cfg config.MetricsConfig, client common.CloudWatchClient, log *slog.Logger) Publisher {
	if !cfg.Enabled || client == nil {
		if cfg.Enabled && log != nil {
			log.Warn("metrics enabled but no CloudWatch client available; publishing disabled")
		}
		return Noop{}
	}
	return NewCloudWatchPublisher(client, cfg.Namespace)
}

// Publish implements Publisher.
func (p *CloudWatchPublisher) Publish(ctx context.Context, e Execution) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	dims := []cwtypes.Dimension{
		{Name: aws.String("Playbook"), Value: aws.String(e.Playbook)},
		{Name: aws.String("FindingType"), Value: aws.String(e.FindingType)},
	}
	count := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dims,
			Timestamp:  aws.Time(ts),
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(v)),
		}
	}
	failures := 0
	if e.Failed {
		failures = 1
	}
	data := []cwtypes.MetricDatum{
		count(MetricActionsSucceeded, e.Counts.Success),
		count(MetricActionsFailed, e.Counts.Error),
		count(MetricActionsSkipped, e.Counts.Skipped),
		count(MetricPlaybookFailures, failures),
		{
			MetricName: aws.String(MetricPlaybookDuration),
			Dimensions: dims,
			Timestamp:  aws.Time(ts),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Value:      aws.Float64(float64(e.Duration.Milliseconds())),
		},
	}

	if _, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: data,
	}); err != nil {
		return fmt.Errorf("CloudWatch PutMetricData: %w", err)
	}
	return nil
}
