package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Publisher wraps an SQS client and the fulfillment queue URL.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

type fulfillmentBody struct {
	ID string `json:"id"`
}

// SendFulfillmentMessage enqueues {"id": orderID} for the worker.
// attributes are sent as String message attributes; empty values are dropped.
func (p *Publisher) SendFulfillmentMessage(ctx context.Context, orderID string, attributes map[string]string) (string, error) {
	body, err := json.Marshal(fulfillmentBody{ID: orderID})
	if err != nil {
		return "", fmt.Errorf("marshal message body: %w", err)
	}
	messageBody := string(body)

	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &messageBody,
	}
	if len(attributes) > 0 {
		msgAttrs := map[string]sqstypes.MessageAttributeValue{}
		for k, v := range attributes {
			if v == "" {
				continue
			}
			msgAttrs[k] = sqstypes.MessageAttributeValue{
				DataType:    awsString("String"),
				StringValue: awsString(v),
			}
		}
		input.MessageAttributes = msgAttrs
	}

	out, err := p.SQS.SendMessage(ctx, input)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	if out.MessageId == nil {
		return "", nil
	}
	return *out.MessageId, nil
}

// awsString helper
func awsString(s string) *string { return &s }
