package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// BatchCounts summarises one worker invocation.
type BatchCounts struct {
	Processed int
	Skipped   int
	Failed    int
}

// Metrics pushes batch counters to CloudWatch under a namespace.
type Metrics struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	nowFunc    func() time.Time
}

// NewMetrics returns a Metrics recorder for namespace.
func NewMetrics(cw CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{
		CloudWatch: cw,
		Namespace:  namespace,
		nowFunc:    time.Now,
	}
}

// RecordBatch writes OrdersProcessed, OrdersSkipped and OrdersFailed in a single call.
func (m *Metrics) RecordBatch(ctx context.Context, c BatchCounts) error {
	ts := m.nowFunc()
	datum := func(name string, v int) cwtypes.MetricDatum {
		value := float64(v)
		return cwtypes.MetricDatum{
			MetricName: awsString(name),
			Timestamp:  &ts,
			Unit:       cwtypes.StandardUnitCount,
			Value:      &value,
		}
	}

	_, err := m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &m.Namespace,
		MetricData: []cwtypes.MetricDatum{
			datum("OrdersProcessed", c.Processed),
			datum("OrdersSkipped", c.Skipped),
			datum("OrdersFailed", c.Failed),
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
