package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service instruments. A nil *Metrics is a valid
// no-op receiver so handlers can run without an initialized manager.
type Metrics struct {
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram

	retrievalsTotal   metric.Int64Counter
	retrievalDuration metric.Float64Histogram
	retrievalResults  metric.Int64Histogram

	generationsTotal   metric.Int64Counter
	generationErrors   metric.Int64Counter
	generationDuration metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.requestsTotal, err = meter.Int64Counter(
		"gavel_http_requests_total",
		metric.WithDescription("HTTP requests served"),
	); err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}
	if m.requestDuration, err = meter.Float64Histogram(
		"gavel_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("creating request histogram: %w", err)
	}

	if m.retrievalsTotal, err = meter.Int64Counter(
		"gavel_retrievals_total",
		metric.WithDescription("Hybrid retrieval invocations"),
	); err != nil {
		return nil, fmt.Errorf("creating retrieval counter: %w", err)
	}
	if m.retrievalDuration, err = meter.Float64Histogram(
		"gavel_retrieval_duration_seconds",
		metric.WithDescription("Hybrid retrieval duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("creating retrieval histogram: %w", err)
	}
	if m.retrievalResults, err = meter.Int64Histogram(
		"gavel_retrieval_results",
		metric.WithDescription("Documents returned per retrieval"),
	); err != nil {
		return nil, fmt.Errorf("creating retrieval results histogram: %w", err)
	}

	if m.generationsTotal, err = meter.Int64Counter(
		"gavel_generations_total",
		metric.WithDescription("LLM generation calls"),
	); err != nil {
		return nil, fmt.Errorf("creating generation counter: %w", err)
	}
	if m.generationErrors, err = meter.Int64Counter(
		"gavel_generation_errors_total",
		metric.WithDescription("Failed LLM generation calls"),
	); err != nil {
		return nil, fmt.Errorf("creating generation error counter: %w", err)
	}
	if m.generationDuration, err = meter.Float64Histogram(
		"gavel_generation_duration_seconds",
		metric.WithDescription("LLM generation duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("creating generation histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	m.requestsTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRetrieval records one hybrid retrieval.
func (m *Metrics) RecordRetrieval(ctx context.Context, results int, duration time.Duration) {
	if m == nil {
		return
	}
	m.retrievalsTotal.Add(ctx, 1)
	m.retrievalDuration.Record(ctx, duration.Seconds())
	m.retrievalResults.Record(ctx, int64(results))
}

// RecordGeneration records one model call.
func (m *Metrics) RecordGeneration(ctx context.Context, model string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.generationsTotal.Add(ctx, 1, attrs)
	m.generationDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.generationErrors.Add(ctx, 1, attrs)
	}
}
