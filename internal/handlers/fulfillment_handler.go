package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/validation"
)

// OrderReader looks orders up before they are queued.
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
}

// FulfillmentQueue accepts fulfillment messages for the worker.
type FulfillmentQueue interface {
	SendFulfillmentMessage(ctx context.Context, orderID string, attributes map[string]string) (string, error)
}

// HandlerConfig groups dependencies for the fulfillment handler.
type HandlerConfig struct {
	Orders OrderReader
	Queue  FulfillmentQueue
	Logger *slog.Logger
}

// RegisterFulfillmentRoutes registers POST /fulfillments.
func RegisterFulfillmentRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("component", "api")

	r.POST("/fulfillments", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.FulfillmentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		order, err := cfg.Orders.Get(ctx, req.ID)
		if err != nil {
			log.ErrorContext(ctx, "order lookup failed", "order_id", req.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "order_lookup_failed"})
			return
		}
		if order == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found", "order_id": req.ID})
			return
		}

		correlationID := c.GetHeader("X-Request-Id")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		attrs := map[string]string{
			"order_id":       req.ID,
			"correlation_id": correlationID,
		}
		msgID, err := cfg.Queue.SendFulfillmentMessage(ctx, req.ID, attrs)
		if err != nil {
			log.ErrorContext(ctx, "enqueue failed", "order_id", req.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue_failed"})
			return
		}

		log.InfoContext(ctx, "fulfillment queued", "order_id", req.ID, "message_id", msgID, "correlation_id", correlationID)
		c.JSON(http.StatusAccepted, gin.H{"order_id": req.ID, "correlation_id": correlationID})
	})
}
