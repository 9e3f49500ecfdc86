package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
)

// BatchHandler is satisfied by Processor.
type BatchHandler interface {
	Handle(ctx context.Context, ev events.SQSEvent) (BatchOutcome, error)
}

// Poller long-polls an SQS queue and feeds batches to a handler, reproducing
// the Lambda event source mapping for local runs: messages reported in
// BatchItemFailures are left on the queue for redelivery, the rest are deleted.
type Poller struct {
	sqs      aws.SQSAPI
	queueURL string
	handler  BatchHandler
	logger   *slog.Logger

	maxMessages int32
	waitSeconds int32
	backoff     time.Duration
}

// NewPoller returns a Poller reading up to 10 messages per receive.
func NewPoller(client aws.SQSAPI, queueURL string, handler BatchHandler, log *slog.Logger) *Poller {
	return &Poller{
		sqs:         client,
		queueURL:    queueURL,
		handler:     handler,
		logger:      log.With("component", "poller"),
		maxMessages: 10,
		waitSeconds: 20,
		backoff:     time.Second,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("polling queue", "queue_url", p.queueURL)
	for {
		if err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("poll failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.backoff):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// PollOnce receives one batch, handles it and deletes the messages that succeeded.
func (p *Poller) PollOnce(ctx context.Context) error {
	out, err := p.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    &p.queueURL,
		MaxNumberOfMessages:         p.maxMessages,
		WaitTimeSeconds:             p.waitSeconds,
		MessageAttributeNames:       []string{"All"},
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameAll},
	})
	if err != nil {
		return err
	}
	if len(out.Messages) == 0 {
		return nil
	}

	ev := events.SQSEvent{Records: make([]events.SQSMessage, 0, len(out.Messages))}
	for _, m := range out.Messages {
		ev.Records = append(ev.Records, toEventMessage(m))
	}

	outcome, err := p.handler.Handle(ctx, ev)
	if err != nil {
		// whole batch stays on the queue
		return err
	}

	failed := make(map[string]bool, len(outcome.BatchItemFailures))
	for _, f := range outcome.BatchItemFailures {
		failed[f.ItemIdentifier] = true
	}

	var errs []error
	for _, m := range out.Messages {
		if failed[deref(m.MessageId)] {
			continue
		}
		if _, err := p.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &p.queueURL,
			ReceiptHandle: m.ReceiptHandle,
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func toEventMessage(m sqstypes.Message) events.SQSMessage {
	rec := events.SQSMessage{
		MessageId:     deref(m.MessageId),
		ReceiptHandle: deref(m.ReceiptHandle),
		Body:          deref(m.Body),
		Md5OfBody:     deref(m.MD5OfBody),
		EventSource:   "aws:sqs",
		Attributes:    map[string]string{},
	}
	for k, v := range m.Attributes {
		rec.Attributes[k] = v
	}
	if len(m.MessageAttributes) > 0 {
		rec.MessageAttributes = make(map[string]events.SQSMessageAttribute, len(m.MessageAttributes))
		for k, v := range m.MessageAttributes {
			rec.MessageAttributes[k] = events.SQSMessageAttribute{
				StringValue: v.StringValue,
				DataType:    deref(v.DataType),
			}
		}
	}
	return rec
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
