package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Notifier publishes messages to a single SNS topic.
type Notifier struct {
	SNS      SNSAPI
	TopicARN string
}

// NewNotifier returns a Notifier bound to a topic ARN.
func NewNotifier(snsClient SNSAPI, topicARN string) *Notifier {
	return &Notifier{
		SNS:      snsClient,
		TopicARN: topicARN,
	}
}

// Publish sends message with subject to the topic and returns the SNS message id.
// Delivery past SNS acceptance is not tracked.
func (n *Notifier) Publish(ctx context.Context, subject, message string, attributes map[string]string) (string, error) {
	input := &sns.PublishInput{
		TopicArn: &n.TopicARN,
		Subject:  &subject,
		Message:  &message,
	}
	if len(attributes) > 0 {
		input.MessageAttributes = make(map[string]snstypes.MessageAttributeValue, len(attributes))
		for k, v := range attributes {
			input.MessageAttributes[k] = snstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(v),
			}
		}
	}

	out, err := n.SNS.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", n.TopicARN, err)
	}
	if out.MessageId == nil {
		return "", nil
	}
	return *out.MessageId, nil
}
