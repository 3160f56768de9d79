package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/WailSalutem-Health-Care/reminder-service"

// Metrics holds all custom metrics for the service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal metric.Int64Counter
	HTTPDurationMs    metric.Float64Histogram

	// Business metrics
	CalendarSyncTotal   metric.Int64Counter
	ReminderEventsTotal metric.Int64Counter
	ReceiptsPurged      metric.Int64Counter

	// Auth metrics
	AuthFailuresTotal metric.Int64Counter
}

// InitMetrics initializes all custom metrics against the global meter provider.
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider())
}

// NewMetrics registers the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	httpRequestsTotal, err := meter.Int64Counter(
		"http_server_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	httpDurationMs, err := meter.Float64Histogram(
		"http_server_duration_milliseconds",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	// One per sync request, labelled with the outcome code
	calendarSyncTotal, err := meter.Int64Counter(
		"reminder_calendar_sync_total",
		metric.WithDescription("Total number of calendar sync requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	reminderEventsTotal, err := meter.Int64Counter(
		"reminder_events_total",
		metric.WithDescription("Reminder events submitted to the calendar provider"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	receiptsPurged, err := meter.Int64Counter(
		"reminder_receipts_purged_total",
		metric.WithDescription("Batch receipts removed by the retention job"),
		metric.WithUnit("{receipt}"),
	)
	if err != nil {
		return nil, err
	}

	authFailuresTotal, err := meter.Int64Counter(
		"auth_failures_total",
		metric.WithDescription("Total number of authentication failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPDurationMs:      httpDurationMs,
		CalendarSyncTotal:   calendarSyncTotal,
		ReminderEventsTotal: reminderEventsTotal,
		ReceiptsPurged:      receiptsPurged,
		AuthFailuresTotal:   authFailuresTotal,
	}, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPDurationMs.Record(ctx, durationMs, attrs)
}

// RecordSync records the outcome of one calendar sync request. code is
// "ok" on success or the error code returned to the caller.
func (m *Metrics) RecordSync(ctx context.Context, code string) {
	m.CalendarSyncTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
	))
}

// RecordReminderEvent counts one submitted event by outcome.
func (m *Metrics) RecordReminderEvent(ctx context.Context, outcome string) {
	m.ReminderEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordReceiptsPurged(ctx context.Context, n int64) {
	if n <= 0 {
		return
	}
	m.ReceiptsPurged.Add(ctx, n)
}

// RecordAuthFailure records an authentication failure
func (m *Metrics) RecordAuthFailure(ctx context.Context, reason string) {
	m.AuthFailuresTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}
