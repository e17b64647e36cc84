package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type cloudwatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsClient publishes CloudWatch metrics. A nil or disabled client
// drops every data point.
type MetricsClient struct {
	client    cloudwatchAPI
	namespace string
	enabled   bool
}

// NewMetricsClient creates a CloudWatch metrics client.
func NewMetricsClient(cfg sdkaws.Config, namespace string, enabled bool) *MetricsClient {
	if namespace == "" {
		namespace = "Storefront"
	}
	return &MetricsClient{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
		enabled:   enabled,
	}
}

// PutMetric sends a single data point.
func (m *MetricsClient) PutMetric(ctx context.Context, metricName string, value float64, unit types.StandardUnit, dimensions map[string]string) error {
	if !m.IsEnabled() {
		return nil
	}
	return m.PutMetricBatch(ctx, []types.MetricDatum{datum(metricName, value, unit, dimensions)})
}

// PutMetricBatch sends data points in chunks of 20.
func (m *MetricsClient) PutMetricBatch(ctx context.Context, metrics []types.MetricDatum) error {
	if !m.IsEnabled() || len(metrics) == 0 {
		return nil
	}

	const batchSize = 20
	for i := 0; i < len(metrics); i += batchSize {
		end := min(i+batchSize, len(metrics))
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  sdkaws.String(m.namespace),
			MetricData: metrics[i:end],
		})
		if err != nil {
			return fmt.Errorf("failed to put metric batch: %w", err)
		}
	}
	return nil
}

// RecordCount increments a counter metric.
func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, 1, types.StandardUnitCount, dimensions)
}

// RecordLatency records a duration in milliseconds.
func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
}

// RecordCountAsync records a counter without blocking the caller.
func (m *MetricsClient) RecordCountAsync(metricName string, dimensions map[string]string) {
	m.async(func(ctx context.Context) {
		_ = m.RecordCount(ctx, metricName, dimensions)
	})
}

// RecordLatencyAsync records a duration without blocking the caller.
func (m *MetricsClient) RecordLatencyAsync(metricName string, duration time.Duration, dimensions map[string]string) {
	m.async(func(ctx context.Context) {
		_ = m.RecordLatency(ctx, metricName, duration, dimensions)
	})
}

// RecordRequest sends the count, latency and error class of one HTTP
// request in a single PutMetricData call.
func (m *MetricsClient) RecordRequest(ctx context.Context, statusCode int, duration time.Duration, dimensions map[string]string) error {
	if !m.IsEnabled() {
		return nil
	}
	batch := []types.MetricDatum{
		datum(MetricHTTPRequests, 1, types.StandardUnitCount, dimensions),
		datum(MetricHTTPLatency, float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions),
	}
	switch {
	case statusCode >= 500:
		batch = append(batch,
			datum(MetricHTTPErrors, 1, types.StandardUnitCount, dimensions),
			datum(MetricHTTP5xx, 1, types.StandardUnitCount, dimensions))
	case statusCode >= 400:
		batch = append(batch,
			datum(MetricHTTPErrors, 1, types.StandardUnitCount, dimensions),
			datum(MetricHTTP4xx, 1, types.StandardUnitCount, dimensions))
	}
	return m.PutMetricBatch(ctx, batch)
}

func (m *MetricsClient) async(record func(ctx context.Context)) {
	if !m.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		record(ctx)
	}()
}

func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

func datum(name string, value float64, unit types.StandardUnit, dimensions map[string]string) types.MetricDatum {
	dims := make([]types.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, types.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(v)})
	}
	return types.MetricDatum{
		MetricName: sdkaws.String(name),
		Value:      sdkaws.Float64(value),
		Unit:       unit,
		Timestamp:  sdkaws.Time(time.Now()),
		Dimensions: dims,
	}
}

const (
	// HTTP metrics
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	// Storefront metrics
	MetricOrdersCreated    = "OrdersCreated"
	MetricOrdersFailed     = "OrdersFailed"
	MetricPaymentSucceeded = "PaymentSucceeded"
	MetricPaymentFailed    = "PaymentFailed"
	MetricCartAdds         = "CartAdds"
	MetricAuthFailures     = "AuthFailures"
	MetricSignIns          = "SignIns"

	// Query layer
	MetricCacheHits      = "CacheHits"
	MetricCacheMisses    = "CacheMisses"
	MetricBackendLatency = "BackendLatency"
)
