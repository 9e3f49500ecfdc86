package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
	"github.com/imrishuroy/go-order-fulfillment/internal/idempotency"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/receipt"
	"github.com/imrishuroy/go-order-fulfillment/internal/validation"
)

// OrderStore reads orders and applies single-attribute updates.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	UpdateField(ctx context.Context, orderID, field, value string) error
}

// ReceiptRenderer turns an order snapshot into a complete document.
type ReceiptRenderer interface {
	Render(o *orders.Order, at time.Time) ([]byte, error)
}

// DocumentArchive persists rendered receipts.
type DocumentArchive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// NotificationPublisher broadcasts completion events.
type NotificationPublisher interface {
	Publish(ctx context.Context, subject, message string, attributes map[string]string) (string, error)
}

// NotificationLedger remembers which orders were already announced.
type NotificationLedger interface {
	CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// BatchMetrics receives per-batch counters.
type BatchMetrics interface {
	RecordBatch(ctx context.Context, c aws.BatchCounts) error
}

// ProcessorConfig groups the Processor's collaborators. Ledger and Metrics are optional.
type ProcessorConfig struct {
	Store       OrderStore
	Renderer    ReceiptRenderer
	Archive     DocumentArchive
	Notifier    NotificationPublisher
	Ledger      NotificationLedger
	Metrics     BatchMetrics
	Logger      *slog.Logger
	CallTimeout time.Duration
	Concurrency int
}

// Processor handles SQS batches: for each message it fetches the order,
// renders and archives the receipt, concludes the order and announces it.
type Processor struct {
	store       OrderStore
	renderer    ReceiptRenderer
	archive     DocumentArchive
	notifier    NotificationPublisher
	ledger      NotificationLedger
	metrics     BatchMetrics
	logger      *slog.Logger
	validate    *validatorv10.Validate
	callTimeout time.Duration
	concurrency int
	nowFunc     func() time.Time
	newEventID  func() string
}

// NewProcessor creates a new worker processor with its collaborators injected.
func NewProcessor(cfg ProcessorConfig) *Processor {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Processor{
		store:       cfg.Store,
		renderer:    cfg.Renderer,
		archive:     cfg.Archive,
		notifier:    cfg.Notifier,
		ledger:      cfg.Ledger,
		metrics:     cfg.Metrics,
		logger:      log.With("component", "worker"),
		validate:    validation.New(),
		callTimeout: cfg.CallTimeout,
		concurrency: concurrency,
		nowFunc:     time.Now,
		newEventID:  uuid.NewString,
	}
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

type messageResult struct {
	messageID string
	orderID   string
	outcome   outcome
	err       error
}

// Handle processes every message of the batch and never lets one message's
// failure stop the others. The returned error is always nil; failures are
// reported through the outcome.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (BatchOutcome, error) {
	p.logger.InfoContext(ctx, "received SQS batch", "messages", len(ev.Records))

	results := make([]messageResult, len(ev.Records))
	if p.concurrency == 1 {
		for i, rec := range ev.Records {
			results[i] = p.processMessage(ctx, rec)
		}
	} else {
		// messages for the same order stay on one goroutine, in batch order
		var g errgroup.Group
		g.SetLimit(p.concurrency)
		for _, group := range partitionByOrder(ev.Records) {
			g.Go(func() error {
				for _, i := range group {
					results[i] = p.processMessage(ctx, ev.Records[i])
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	return p.summarize(ctx, results), nil
}

func (p *Processor) summarize(ctx context.Context, results []messageResult) BatchOutcome {
	var counts aws.BatchCounts
	failures := []events.SQSBatchItemFailure{}
	for _, r := range results {
		switch r.outcome {
		case outcomeProcessed:
			counts.Processed++
		case outcomeSkipped:
			counts.Skipped++
		case outcomeFailed:
			counts.Failed++
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: r.messageID})
			p.logger.ErrorContext(ctx, "message failed",
				"message_id", r.messageID, "order_id", r.orderID, "error", r.err)
		}
	}

	if p.metrics != nil {
		if err := p.call(ctx, func(ctx context.Context) error {
			return p.metrics.RecordBatch(ctx, counts)
		}); err != nil {
			p.logger.WarnContext(ctx, "failed to record batch metrics", "error", err)
		}
	}

	p.logger.InfoContext(ctx, "batch finished",
		"processed", counts.Processed, "skipped", counts.Skipped, "failed", counts.Failed)

	if counts.Failed > 0 {
		return BatchOutcome{
			StatusCode:        http.StatusInternalServerError,
			Body:              jsonBody("error", failureMessage),
			BatchItemFailures: failures,
		}
	}
	return BatchOutcome{
		StatusCode:        http.StatusOK,
		Body:              jsonBody("message", successMessage),
		BatchItemFailures: failures,
	}
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) (res messageResult) {
	res.messageID = rec.MessageId
	defer func() {
		if r := recover(); r != nil {
			res.outcome = outcomeFailed
			res.err = fmt.Errorf("panic while processing message: %v", r)
		}
	}()
	fail := func(err error) messageResult {
		res.outcome = outcomeFailed
		res.err = err
		return res
	}

	var msg FulfillmentMessage
	if err := validation.DecodeAndValidate([]byte(rec.Body), &msg, p.validate); err != nil {
		return fail(err)
	}
	res.orderID = msg.ID
	log := p.logger.With("order_id", msg.ID, "message_id", rec.MessageId)

	// Step 1: fetch the order
	var order *orders.Order
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		order, err = p.store.Get(ctx, msg.ID)
		return err
	})
	if err != nil {
		return fail(fmt.Errorf("fetch order: %w", err))
	}
	if order == nil {
		log.WarnContext(ctx, "order not found, skipping")
		res.outcome = outcomeSkipped
		return res
	}

	// Step 2: render the receipt
	now := p.nowFunc()
	doc, err := p.renderer.Render(order, now)
	if err != nil {
		return fail(fmt.Errorf("render receipt: %w", err))
	}

	// Step 3: archive it; the receipt must exist before the order is concluded
	key := receipt.Key(msg.ID)
	if err := p.call(ctx, func(ctx context.Context) error {
		return p.archive.Put(ctx, key, doc, receipt.ContentType)
	}); err != nil {
		return fail(fmt.Errorf("archive receipt: %w", err))
	}

	// Step 4: conclude the order
	if err := p.call(ctx, func(ctx context.Context) error {
		return p.store.UpdateField(ctx, msg.ID, "status", orders.StatusConcluded)
	}); err != nil {
		return fail(fmt.Errorf("update status: %w", err))
	}

	// Step 5: announce completion
	if err := p.notify(ctx, log, msg.ID, key, now); err != nil {
		return fail(err)
	}

	log.InfoContext(ctx, "order fulfilled", "receipt_key", key)
	res.outcome = outcomeProcessed
	return res
}

func (p *Processor) notify(ctx context.Context, log *slog.Logger, orderID, key string, at time.Time) error {
	ledgerKey := idempotency.NotificationKey(orderID)
	if p.ledger != nil {
		var created bool
		if err := p.call(ctx, func(ctx context.Context) error {
			var err error
			created, err = p.ledger.CreateIfNotExists(ctx, ledgerKey, orderID)
			return err
		}); err != nil {
			return fmt.Errorf("claim notification: %w", err)
		}
		if !created {
			var rec *idempotency.IdempotencyRecord
			if err := p.call(ctx, func(ctx context.Context) error {
				var err error
				rec, err = p.ledger.Get(ctx, ledgerKey)
				return err
			}); err != nil {
				return fmt.Errorf("read notification ledger: %w", err)
			}
			if rec != nil && rec.Status == idempotency.StatusDone {
				log.InfoContext(ctx, "completion already announced, not republishing", "sns_message_id", rec.ResponseBody)
				return nil
			}
		}
	}

	body, err := json.Marshal(CompletionNotification{
		EventID:    p.newEventID(),
		OrderID:    orderID,
		Status:     orders.StatusConcluded,
		ReceiptKey: key,
		Message:    "order concluded: " + orderID,
		OccurredAt: at.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	var snsID string
	err = p.call(ctx, func(ctx context.Context) error {
		var err error
		snsID, err = p.notifier.Publish(ctx, notificationSubject, string(body), map[string]string{"order_id": orderID})
		return err
	})
	if err != nil {
		if p.ledger != nil {
			if merr := p.call(ctx, func(ctx context.Context) error {
				return p.ledger.MarkFailed(ctx, ledgerKey, err.Error())
			}); merr != nil {
				log.WarnContext(ctx, "failed to mark notification as failed", "error", merr)
			}
		}
		return fmt.Errorf("publish notification: %w", err)
	}

	if p.ledger != nil {
		// the event is out; failing the message now would only publish it twice
		if err := p.call(ctx, func(ctx context.Context) error {
			return p.ledger.MarkDone(ctx, ledgerKey, snsID, http.StatusOK)
		}); err != nil {
			log.WarnContext(ctx, "failed to mark notification as done", "error", err)
		}
	}
	return nil
}

// call runs fn under the per-call timeout. An expired deadline is reported as
// that call's failure.
func (p *Processor) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.callTimeout <= 0 {
		return fn(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	err := fn(cctx)
	if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("timed out after %s: %w", p.callTimeout, err)
	}
	return err
}

// partitionByOrder groups record indexes by order id, keeping first-seen order.
// Bodies that do not decode get a group of their own.
func partitionByOrder(records []events.SQSMessage) [][]int {
	var groups [][]int
	byID := map[string]int{}
	for i, rec := range records {
		var msg FulfillmentMessage
		if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil || msg.ID == "" {
			groups = append(groups, []int{i})
			continue
		}
		if g, ok := byID[msg.ID]; ok {
			groups[g] = append(groups[g], i)
			continue
		}
		byID[msg.ID] = len(groups)
		groups = append(groups, []int{i})
	}
	return groups
}

func jsonBody(key, value string) string {
	b, _ := json.Marshal(map[string]string{key: value})
	return string(b)
}
