package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// SNSChannel publishes messages to an SNS topic, typically fanned out to
// email or a paging integration.
type SNSChannel struct {
	client   common.SNSClient
	topicARN string
}

// NewSNSChannel returns a channel publishing to topicARN.
func NewSNSChannel(client common.SNSClient, topicARN string) *SNSChannel {
	return &SNSChannel{client: client, topicARN: topicARN}
}

func (s *SNSChannel) Name() string { return "sns" }

func (s *SNSChannel) Send(ctx context.Context, msg Message) error {
	attrs := map[string]snstypes.MessageAttributeValue{
		"kind":     {DataType: aws.String("String"), StringValue: aws.String(string(msg.Kind))},
		"severity": {DataType: aws.String("String"), StringValue: aws.String(string(msg.Severity))},
	}
	if msg.Playbook != "" {
		attrs["playbook"] = snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(msg.Playbook)}
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Subject:           aws.String(msg.Subject),
		Message:           aws.String(msg.Body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("SNS Publish: %w", err)
	}
	return nil
}
