package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
	"github.com/imrishuroy/go-order-fulfillment/internal/config"
	"github.com/imrishuroy/go-order-fulfillment/internal/idempotency"
	"github.com/imrishuroy/go-order-fulfillment/internal/logger"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/receipt"
)

// newProcessorFromConfig wires the AWS-backed collaborators described by cfg.
func newProcessorFromConfig(clients *aws.AWSClients, cfg *config.Config, log *slog.Logger) (*Processor, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	pcfg := ProcessorConfig{
		Store:       orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		Renderer:    receipt.New(receipt.WithLocation(loc)),
		Archive:     aws.NewArchive(clients.S3, cfg.ReceiptsBucket),
		Notifier:    aws.NewNotifier(clients.SNS, cfg.NotifyTopicARN),
		Logger:      log,
		CallTimeout: cfg.CallTimeout,
		Concurrency: cfg.Concurrency,
	}
	if cfg.IdempotencyTable != "" {
		pcfg.Ledger = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	}
	if cfg.MetricsNamespace != "" {
		pcfg.Metrics = aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace)
	}
	return NewProcessor(pcfg), nil
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.EndpointOverride)
	if err != nil {
		return fmt.Errorf("init aws clients: %w", err)
	}
	p, err := newProcessorFromConfig(clients, cfg, log)
	if err != nil {
		return err
	}

	if !cfg.RunLocal {
		lambda.Start(p.Handle)
		return nil
	}

	// Local mode: poll the real queue when one is configured, otherwise run a single synthetic event.
	if cfg.QueueURL != "" && cfg.LocalSQSBody == "" {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return NewPoller(clients.SQS, cfg.QueueURL, p, log).Run(ctx)
	}

	body := cfg.LocalSQSBody
	if body == "" {
		body = `{"id":"local-order-1"}`
	}
	out, err := p.Handle(ctx, events.SQSEvent{
		Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
	})
	if err != nil {
		return err
	}
	log.Info("local batch outcome", "status", out.StatusCode, "body", out.Body, "failures", len(out.BatchItemFailures))
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := run(context.Background(), cfg, logger.New(cfg.LogLevel)); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}
