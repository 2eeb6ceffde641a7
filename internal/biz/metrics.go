package biz

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/xinghe903/chatify/notify/internal/biz"

var (
	resultDelivered = attribute.String("result", "delivered")
	resultOffline   = attribute.String("result", "offline")
	resultInvalid   = attribute.String("result", "invalid")
	resultOK        = attribute.String("result", "ok")
	resultFailed    = attribute.String("result", "failed")
)

// gatewayMetrics 使用全局 MeterProvider，main 中初始化 prometheus exporter 后生效
type gatewayMetrics struct {
	sessions   metric.Int64UpDownCounter
	deliveries metric.Int64Counter
	emits      metric.Int64Counter
}

func newGatewayMetrics() *gatewayMetrics {
	return newGatewayMetricsWith(otel.Meter(instrumentationName))
}

func newGatewayMetricsWith(meter metric.Meter) *gatewayMetrics {
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	sessions, err := meter.Int64UpDownCounter("notify_live_sessions",
		metric.WithDescription("Number of live websocket sessions"))
	if err != nil {
		otel.Handle(err)
		sessions, _ = fallback.Int64UpDownCounter("notify_live_sessions")
	}
	deliveries, err := meter.Int64Counter("notify_deliveries_total",
		metric.WithDescription("Delivery requests by result"))
	if err != nil {
		otel.Handle(err)
		deliveries, _ = fallback.Int64Counter("notify_deliveries_total")
	}
	emits, err := meter.Int64Counter("notify_emits_total",
		metric.WithDescription("Per-session emits by result"))
	if err != nil {
		otel.Handle(err)
		emits, _ = fallback.Int64Counter("notify_emits_total")
	}
	return &gatewayMetrics{
		sessions:   sessions,
		deliveries: deliveries,
		emits:      emits,
	}
}

func (m *gatewayMetrics) sessionOpened(ctx context.Context) {
	m.sessions.Add(ctx, 1)
}

func (m *gatewayMetrics) sessionClosed(ctx context.Context) {
	m.sessions.Add(ctx, -1)
}

func (m *gatewayMetrics) delivery(ctx context.Context, result attribute.KeyValue) {
	m.deliveries.Add(ctx, 1, metric.WithAttributes(result))
}

func (m *gatewayMetrics) emit(ctx context.Context, result attribute.KeyValue) {
	m.emits.Add(ctx, 1, metric.WithAttributes(result))
}
