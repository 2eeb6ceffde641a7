package monitoring

import (
	"github.com/go-kratos/kratos/v2/middleware/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otlpmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	MetricRequests otlpmetric.Int64Counter
	MetricSeconds  otlpmetric.Float64Histogram
	Meter          otlpmetric.Meter
)

// InitPrometheus 使用 prometheus exporter 初始化全局 MeterProvider
// 指标注册到 prometheus 默认 registry，由 promhttp.Handler 暴露
func InitPrometheus(serviceName string) error {
	exporter, err := prometheus.New()
	if err != nil {
		return err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)
	Meter = provider.Meter(serviceName)
	MetricRequests, err = metrics.DefaultRequestsCounter(Meter, metrics.DefaultServerRequestsCounterName)
	if err != nil {
		return err
	}
	MetricSeconds, err = metrics.DefaultSecondsHistogram(Meter, metrics.DefaultServerSecondsHistogramName)
	if err != nil {
		return err
	}
	return nil
}
