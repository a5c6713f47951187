package metrics

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/littlewalk/go-walk/common"
	"github.com/littlewalk/go-walk/models"
)

const exportInterval = 30 * time.Second

var _ models.MetricService = &OtlMetricService{}

// OtlMetricService records counters and histograms through an OpenTelemetry meter. Instruments are created on first
// use and cached by name.
type OtlMetricService struct {
	meterProvider *sdk.MeterProvider
	meter         metric.Meter
	logger        models.Logger
	mu            sync.Mutex
	counters      map[models.MetricName]metric.Int64Counter
	histograms    map[models.MetricName]metric.Int64Histogram
}

// NewOtlMetricService exports over OTLP/HTTP when a collector endpoint is configured, and to stdout otherwise.
func NewOtlMetricService(ctx context.Context, logger models.Logger) (*OtlMetricService, error) {
	exporter, err := newExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("metrics: error creating exporter: %w", err)
	}
	meterProvider := sdk.NewMeterProvider(
		sdk.WithReader(sdk.NewPeriodicReader(exporter, sdk.WithInterval(exportInterval))),
		sdk.WithResource(resource.NewSchemaless(attribute.String("service.name", common.ServiceName))),
	)
	return newMetricService(meterProvider, logger), nil
}

func newMetricService(meterProvider *sdk.MeterProvider, logger models.Logger) *OtlMetricService {
	return &OtlMetricService{
		meterProvider: meterProvider,
		meter:         meterProvider.Meter(models.MetricsCallerName),
		logger:        logger,
		counters:      make(map[models.MetricName]metric.Int64Counter),
		histograms:    make(map[models.MetricName]metric.Int64Histogram),
	}
}

func newExporter(ctx context.Context) (sdk.Exporter, error) {
	if _, found := os.LookupEnv(common.Env_MetricsEndpoint); found {
		// The exporter reads the endpoint from the environment itself
		return otlpmetrichttp.New(ctx)
	}
	return stdoutmetric.New()
}

func (o *OtlMetricService) Count(ctx context.Context, name models.MetricName, val int, attrs ...models.MetricAttribute) error {
	counter, err := o.counter(name)
	if err != nil {
		return err
	}
	counter.Add(ctx, int64(val), metric.WithAttributes(toAttributes(attrs)...))
	return nil
}

func (o *OtlMetricService) Distribution(ctx context.Context, name models.MetricName, val int, attrs ...models.MetricAttribute) error {
	histogram, err := o.histogram(name)
	if err != nil {
		return err
	}
	histogram.Record(ctx, int64(val), metric.WithAttributes(toAttributes(attrs)...))
	return nil
}

// QueueGauge reports the number of waiting and in-flight messages on every collection.
func (o *OtlMetricService) QueueGauge(ctx context.Context, queueName string, monitor models.QueueMonitor) error {
	_, err := o.meter.Int64ObservableGauge(
		"queue_utilization",
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			unprocessed, inFlight, err := monitor.GetUtilization(ctx)
			if err != nil {
				o.logger.Warnf("metrics: error reading utilization for %s: %v", queueName, err)
				return nil
			}
			observer.Observe(int64(unprocessed), metric.WithAttributes(
				attribute.String("queue", queueName),
				attribute.String("state", "unprocessed"),
			))
			observer.Observe(int64(inFlight), metric.WithAttributes(
				attribute.String("queue", queueName),
				attribute.String("state", "in_flight"),
			))
			return nil
		}),
	)
	return err
}

func (o *OtlMetricService) Shutdown(ctx context.Context) {
	if err := o.meterProvider.Shutdown(ctx); err != nil {
		o.logger.Errorf("metrics: error shutting down meter provider: %v", err)
	}
}

func (o *OtlMetricService) counter(name models.MetricName) (metric.Int64Counter, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if counter, found := o.counters[name]; found {
		return counter, nil
	}
	counter, err := o.meter.Int64Counter(string(name))
	if err != nil {
		return nil, err
	}
	o.counters[name] = counter
	return counter, nil
}

func (o *OtlMetricService) histogram(name models.MetricName) (metric.Int64Histogram, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if histogram, found := o.histograms[name]; found {
		return histogram, nil
	}
	histogram, err := o.meter.Int64Histogram(string(name))
	if err != nil {
		return nil, err
	}
	o.histograms[name] = histogram
	return histogram, nil
}

func toAttributes(attrs []models.MetricAttribute) []attribute.KeyValue {
	keyValues := make([]attribute.KeyValue, len(attrs))
	for idx, attr := range attrs {
		keyValues[idx] = attribute.String(attr.Key, attr.Value)
	}
	return keyValues
}
