package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog"
)

// maxDatumsPerRequest is the PutMetricData batch limit.
const maxDatumsPerRequest = 1000

// PutMetricDataAPI is the subset of the CloudWatch client used for publishing.
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

type pendingCounter struct {
	name  string
	tags  map[string]string
	count int64
}

// CloudWatch buffers counters and publishes them with PutMetricData on Flush.
type CloudWatch struct {
	client    PutMetricDataAPI
	namespace string
	log       zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingCounter

	stop    chan struct{}
	stopped chan struct{}
}

// NewCloudWatchFromEnv loads the default AWS configuration (optionally pinned to region)
// and returns a collector publishing into namespace.
func NewCloudWatchFromEnv(ctx context.Context, region, namespace string, log zerolog.Logger) (*CloudWatch, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return NewCloudWatch(cloudwatch.NewFromConfig(cfg), namespace, log), nil
}

// NewCloudWatch creates a collector around an existing client.
func NewCloudWatch(client PutMetricDataAPI, namespace string, log zerolog.Logger) *CloudWatch {
	return &CloudWatch{
		client:    client,
		namespace: namespace,
		log:       log.With().Str("component", "cloudwatch").Logger(),
		pending:   make(map[string]*pendingCounter),
	}
}

// IncCounter implements Collector. Increments are buffered until the next Flush.
func (c *CloudWatch) IncCounter(name string, tags map[string]string) {
	key := SeriesKey(name, tags)

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[key]
	if !ok {
		copied := make(map[string]string, len(tags))
		for k, v := range tags {
			copied[k] = v
		}
		p = &pendingCounter{name: name, tags: copied}
		c.pending[key] = p
	}
	p.count++
}

// Flush publishes all buffered counters. Counters that fail to publish are dropped
// and the error is returned; the next interval starts from zero.
func (c *CloudWatch) Flush(ctx context.Context) error {
	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[string]*pendingCounter)
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	keys := make([]string, 0, len(batch))
	for k := range batch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := time.Now()
	data := make([]cwtypes.MetricDatum, 0, len(batch))
	for _, k := range keys {
		p := batch[k]
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(p.name),
			Dimensions: dimensions(p.tags),
			Timestamp:  aws.Time(now),
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(p.count)),
		})
	}

	for start := 0; start < len(data); start += maxDatumsPerRequest {
		end := start + maxDatumsPerRequest
		if end > len(data) {
			end = len(data)
		}
		if _, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: data[start:end],
		}); err != nil {
			return fmt.Errorf("failed to publish %d metrics: %w", end-start, err)
		}
	}

	c.log.Debug().Int("series", len(data)).Msg("Published metrics")
	return nil
}

// Start flushes every interval until Stop is called.
func (c *CloudWatch) Start(interval time.Duration) {
	c.stop = make(chan struct{})
	c.stopped = make(chan struct{})

	go func() {
		defer close(c.stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := c.Flush(ctx); err != nil {
					c.log.Warn().Err(err).Msg("Failed to publish CloudWatch metrics")
				}
				cancel()
			}
		}
	}()
}

// Stop ends the flush loop and publishes what is left.
func (c *CloudWatch) Stop(ctx context.Context) error {
	if c.stop != nil {
		close(c.stop)
		<-c.stopped
		c.stop = nil
	}
	return c.Flush(ctx)
}

func dimensions(tags map[string]string) []cwtypes.Dimension {
	keys := make([]string, 0, len(tags))
	for k, v := range tags {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	dims := make([]cwtypes.Dimension, 0, len(keys))
	for _, k := range keys {
		dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(tags[k])})
	}
	return dims
}
