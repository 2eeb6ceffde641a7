package monitoring

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func newExporter(ctx context.Context, endpoint string) (tracesdk.SpanExporter, error) {
	return otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
}

// InitTraceProvider 初始化链路追踪
// endpoint: 链路追踪服务地址，为空时只设置 propagator，不上报
// service: 服务名称
// exporter: exporter 名称，记录在资源属性中
// ratio: 采样率
// 返回的函数用于退出前刷新并关闭 provider
func InitTraceProvider(endpoint, service, exporter string, ratio float64) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := newExporter(context.Background(), endpoint)
	if err != nil {
		return nil, err
	}
	tp := tracesdk.NewTracerProvider(
		// 基于父span的采样
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(ratio))),
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewSchemaless(
			semconv.ServiceNameKey.String(service),
			attribute.String("exporter", exporter),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
