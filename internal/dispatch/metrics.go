package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/swarmpush/swarmpush/internal/dispatch"

// Metrics records broadcast outcomes.
type Metrics struct {
	broadcasts metric.Int64Counter
	recipients metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewMetrics creates broadcast instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	broadcasts, err := meter.Int64Counter(
		"dispatch.broadcast.total",
		metric.WithDescription("Broadcasts handed to the push gateway"),
		metric.WithUnit("{broadcast}"),
	)
	if err != nil {
		return nil, err
	}

	recipients, err := meter.Int64Counter(
		"dispatch.broadcast.recipients",
		metric.WithDescription("Messages handed to the push gateway"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"dispatch.gateway.duration",
		metric.WithDescription("Push gateway call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{broadcasts: broadcasts, recipients: recipients, duration: duration}, nil
}

func (m *Metrics) record(n int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	ctx := context.Background()
	m.broadcasts.Add(ctx, 1, attrs)
	m.recipients.Add(ctx, int64(n), attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
