package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings shared by the worker and the API.
type Config struct {
	AWSRegion        string        `mapstructure:"AWS_REGION"`
	EndpointOverride string        `mapstructure:"AWS_ENDPOINT_OVERRIDE"`
	OrdersTable      string        `mapstructure:"ORDERS_TABLE"`
	ReceiptsBucket   string        `mapstructure:"RECEIPTS_BUCKET"`
	NotifyTopicARN   string        `mapstructure:"NOTIFY_TOPIC_ARN"`
	QueueURL         string        `mapstructure:"ORDERS_QUEUE_URL"`
	IdempotencyTable string        `mapstructure:"IDEMPOTENCY_TABLE"` // empty disables the notification ledger
	IdempotencyTTL   time.Duration `mapstructure:"IDEMPOTENCY_TTL"`
	MetricsNamespace string        `mapstructure:"METRICS_NAMESPACE"` // empty disables CloudWatch metrics
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	CallTimeout      time.Duration `mapstructure:"CALL_TIMEOUT"`
	Concurrency      int           `mapstructure:"WORKER_CONCURRENCY"`
	ReceiptTimezone  string        `mapstructure:"RECEIPT_TIMEZONE"`
	RunLocal         bool          `mapstructure:"RUN_LOCAL"`
	LocalSQSBody     string        `mapstructure:"LOCAL_SQS_BODY"`
}

var keys = []string{
	"AWS_REGION", "AWS_ENDPOINT_OVERRIDE", "ORDERS_TABLE", "RECEIPTS_BUCKET", "NOTIFY_TOPIC_ARN",
	"ORDERS_QUEUE_URL", "IDEMPOTENCY_TABLE", "IDEMPOTENCY_TTL", "METRICS_NAMESPACE", "LOG_LEVEL",
	"CALL_TIMEOUT", "WORKER_CONCURRENCY", "RECEIPT_TIMEZONE", "RUN_LOCAL", "LOCAL_SQS_BODY",
}

// Load reads defaults, an optional fulfillment.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("fulfillment")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("ORDERS_TABLE", "Pedidos")
	v.SetDefault("RECEIPTS_BUCKET", "pedidos-pdfs")
	v.SetDefault("IDEMPOTENCY_TTL", "48h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CALL_TIMEOUT", "10s")
	v.SetDefault("WORKER_CONCURRENCY", 1)
	v.SetDefault("RECEIPT_TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("RUN_LOCAL", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for keys viper already knows about.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	if c.OrdersTable == "" {
		return errors.New("config: ORDERS_TABLE is required")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("config: CALL_TIMEOUT must be positive, got %s", c.CallTimeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: WORKER_CONCURRENCY must be at least 1, got %d", c.Concurrency)
	}
	return nil
}

// Location resolves ReceiptTimezone.
func (c *Config) Location() (*time.Location, error) {
	if c.ReceiptTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.ReceiptTimezone)
	if err != nil {
		return nil, fmt.Errorf("config: RECEIPT_TIMEZONE: %w", err)
	}
	return loc, nil
}
