// Package telemetry publishes API metrics to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchClient abstracts PutMetricData for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// metricDatumLimit is CloudWatch's maximum data points per PutMetricData.
const metricDatumLimit = 20

// flushInterval bounds how stale buffered metrics may get.
const flushInterval = 60 * time.Second

type requestSample struct {
	method   string
	endpoint string
	status   string
	duration time.Duration
}

// Collector implements core.MetricsCollector by buffering request samples
// and flushing them to CloudWatch in the background. RecordRequest never
// blocks the request path: when the buffer is full the sample is dropped.
type Collector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger

	samples chan requestSample
	done    chan struct{}
}

func NewCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		client:    client,
		namespace: namespace,
		logger:    logger,
		samples:   make(chan requestSample, 1024),
		done:      make(chan struct{}),
	}
	go c.flushLoop()
	return c
}

// RecordRequest buffers one request sample.
func (c *Collector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	select {
	case c.samples <- requestSample{method: method, endpoint: endpoint, status: status, duration: duration}:
	default:
		// Buffer full: dropping a metric beats stalling a request.
	}
}

// Close flushes remaining samples and stops the background loop.
func (c *Collector) Close() {
	close(c.samples)
	<-c.done
}

func (c *Collector) flushLoop() {
	defer close(c.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	buffer := make([]requestSample, 0, metricDatumLimit)
	for {
		select {
		case sample, ok := <-c.samples:
			if !ok {
				c.flush(buffer)
				return
			}
			buffer = append(buffer, sample)
			if len(buffer)*2 >= metricDatumLimit {
				c.flush(buffer)
				buffer = buffer[:0]
			}
		case <-ticker.C:
			if len(buffer) > 0 {
				c.flush(buffer)
				buffer = buffer[:0]
			}
		}
	}
}

// flush publishes the buffered samples: one count datum and one latency
// datum per sample, dimensioned by method, endpoint and status.
func (c *Collector) flush(buffer []requestSample) {
	if len(buffer) == 0 {
		return
	}

	data := make([]cwtypes.MetricDatum, 0, len(buffer)*2)
	for _, s := range buffer {
		dims := []cwtypes.Dimension{
			{Name: aws.String("Method"), Value: aws.String(s.method)},
			{Name: aws.String("Endpoint"), Value: aws.String(s.endpoint)},
			{Name: aws.String("Status"), Value: aws.String(s.status)},
		}
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("RequestCount"),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("RequestLatency"),
				Value:      aws.Float64(float64(s.duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: dims,
			},
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for start := 0; start < len(data); start += metricDatumLimit {
		end := min(start+metricDatumLimit, len(data))
		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: data[start:end],
		})
		if err != nil {
			c.logger.Warn("failed to publish request metrics", "error", err)
			return
		}
	}
}
