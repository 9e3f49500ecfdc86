package validation

// FulfillmentRequest is the payload for POST /fulfillments and the body of
// every message on the fulfillment queue.
type FulfillmentRequest struct {
	ID string `json:"id" validate:"required,orderid"` // order id in the orders table
}
