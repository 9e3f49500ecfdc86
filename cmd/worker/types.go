package main

import (
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-order-fulfillment/internal/validation"
)

// FulfillmentMessage is the payload sent from API -> SQS -> Worker.
type FulfillmentMessage = validation.FulfillmentRequest

// BatchOutcome is returned to the Lambda runtime for every SQS batch.
// BatchItemFailures follows the partial batch response contract so only the
// failed messages are redelivered.
type BatchOutcome struct {
	StatusCode        int                          `json:"statusCode"`
	Body              string                       `json:"body"`
	BatchItemFailures []events.SQSBatchItemFailure `json:"batchItemFailures"`
}

// CompletionNotification is the message body published once an order is concluded.
type CompletionNotification struct {
	EventID    string    `json:"event_id"`
	OrderID    string    `json:"order_id"`
	Status     string    `json:"status"`
	ReceiptKey string    `json:"receipt_key"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	notificationSubject = "Order ready"
	successMessage      = "messages processed"
	failureMessage      = "failed to process orders"
)
