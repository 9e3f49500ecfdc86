package idempotency

import "time"

// Status values for ledger entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// NotificationKey is the ledger key guarding an order's completion notification.
func NotificationKey(orderID string) string {
	return "notify:" + orderID
}

// IdempotencyRecord is the shape persisted in the idempotency DynamoDB table.
type IdempotencyRecord struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"` // SNS message id once published
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}
