package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
	"github.com/imrishuroy/go-order-fulfillment/internal/config"
	"github.com/imrishuroy/go-order-fulfillment/internal/handlers"
	"github.com/imrishuroy/go-order-fulfillment/internal/logger"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterFulfillmentRoutes(r, cfg)

	return r
}

func newHandlerConfig(clients *aws.AWSClients, cfg *config.Config, log *slog.Logger) handlers.HandlerConfig {
	return handlers.HandlerConfig{
		Orders: orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		Queue:  aws.NewPublisher(clients.SQS, cfg.QueueURL),
		Logger: log,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.QueueURL == "" {
		log.Fatalf("ORDERS_QUEUE_URL is required")
	}

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSRegion, cfg.EndpointOverride)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	r := setupRouter(newHandlerConfig(clients, cfg, logger.New(cfg.LogLevel)))

	// if RUN_LOCAL is set, run a local HTTP server for development.
	if cfg.RunLocal {
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
