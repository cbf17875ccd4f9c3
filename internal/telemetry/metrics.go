package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	ChatTokensUsed     metric.Int64Counter
	SearchLatency      metric.Float64Histogram
	DocumentsIndexed   metric.Int64Counter
	ChunksIndexed      metric.Int64Counter
	ExtractionDuration metric.Float64Histogram
	GuardRefusals      metric.Int64Counter
}

var defaultMetrics *Metrics

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("ia-assistant-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chatTokensUsed, err := meter.Int64Counter(
		"chat.tokens.used",
		metric.WithDescription("Total chat completion tokens used"),
	)
	if err != nil {
		return nil, err
	}

	searchLatency, err := meter.Float64Histogram(
		"search.hybrid.duration",
		metric.WithDescription("Hybrid search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsIndexed, err := meter.Int64Counter(
		"index.documents.total",
		metric.WithDescription("Documents run through the indexing pipeline"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"index.chunks.total",
		metric.WithDescription("Chunks upserted into the store"),
	)
	if err != nil {
		return nil, err
	}

	extractionDuration, err := meter.Float64Histogram(
		"extract.duration",
		metric.WithDescription("Document text extraction duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	guardRefusals, err := meter.Int64Counter(
		"chat.guard.refusals",
		metric.WithDescription("Questions refused by the relevance guard"),
	)
	if err != nil {
		return nil, err
	}

	defaultMetrics = &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		ChatTokensUsed:     chatTokensUsed,
		SearchLatency:      searchLatency,
		DocumentsIndexed:   documentsIndexed,
		ChunksIndexed:      chunksIndexed,
		ExtractionDuration: extractionDuration,
		GuardRefusals:      guardRefusals,
	}
	return defaultMetrics, nil
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path, status string, duration float64) {
	if defaultMetrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}
	defaultMetrics.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	defaultMetrics.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordChatTokens records completion token usage
func RecordChatTokens(ctx context.Context, tokens int64, provider string) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.ChatTokensUsed.Add(ctx, tokens, metric.WithAttributes(
		attribute.String("chat.provider", provider),
	))
}

// RecordSearchLatency records one hybrid search
func RecordSearchLatency(ctx context.Context, d time.Duration) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.SearchLatency.Record(ctx, d.Seconds())
}

// RecordDocumentIndexed records a document finishing the pipeline
func RecordDocumentIndexed(ctx context.Context, system, status string) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.DocumentsIndexed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("document.system", system),
		attribute.String("document.status", status),
	))
}

// RecordChunksIndexed records chunks upserted into the store
func RecordChunksIndexed(ctx context.Context, n int64) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.ChunksIndexed.Add(ctx, n)
}

// RecordExtraction records an extraction attempt
func RecordExtraction(ctx context.Context, d time.Duration, method, status string) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.ExtractionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("extract.method", method),
		attribute.String("extract.status", status),
	))
}

// RecordGuardRefusal records a relevance guard refusal
func RecordGuardRefusal(ctx context.Context, mode string) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.GuardRefusals.Add(ctx, 1, metric.WithAttributes(
		attribute.String("chat.mode", mode),
	))
}
