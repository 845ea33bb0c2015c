package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/depotradar/depotradar/internal/api/middleware"

// Metrics records request-level metrics for the HTTP server.
type Metrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	size     metric.Int64Histogram
}

// NewMetrics registers the http.server.* instruments on the global
// meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	var err error
	if m.duration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.total, err = meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.inFlight, err = meter.Int64UpDownCounter(
		"http.server.requests_in_flight",
		metric.WithDescription("Requests currently being handled"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.size, err = meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("Response body size"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Middleware instruments each request with duration, count, in-flight
// and response-size metrics. Responses with status >= 400 additionally
// carry an error attribute.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			base := []attribute.KeyValue{
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
			}
			m.inFlight.Add(r.Context(), 1, metric.WithAttributes(base...))
			defer m.inFlight.Add(r.Context(), -1, metric.WithAttributes(base...))

			rec := wrapWriter(w)
			start := time.Now()
			next.ServeHTTP(rec, r)

			attrs := append(base, attribute.String("http.status_code", strconv.Itoa(rec.status)))
			if rec.status >= 400 {
				attrs = append(attrs, attribute.Bool("error", true))
			}
			opts := metric.WithAttributes(attrs...)
			m.duration.Record(r.Context(), time.Since(start).Seconds(), opts)
			m.total.Add(r.Context(), 1, opts)
			m.size.Record(r.Context(), rec.bytes, opts)
		})
	}
}

// ProviderMetrics records the outcome of calls to one upstream
// provider. The provider name is fixed at construction and attached to
// every data point.
type ProviderMetrics struct {
	name     string
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

// NewProviderMetrics registers the provider.request.* instruments for
// the named provider.
func NewProviderMetrics(name string) (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)
	p := &ProviderMetrics{name: name}

	var err error
	if p.duration, err = meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Upstream provider call latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if p.total, err = meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Upstream provider calls made"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordRequest records one call to the provider. A call whose request
// context was cancelled must still be counted, so recording uses the
// background context.
func (p *ProviderMetrics) RecordRequest(operation string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", p.name),
		attribute.String("provider.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	opts := metric.WithAttributes(attrs...)
	p.duration.Record(context.Background(), duration.Seconds(), opts)
	p.total.Add(context.Background(), 1, opts)
}
