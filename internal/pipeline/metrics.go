package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	pipelineMetricsOnce sync.Once
	chatRequests        otelmetric.Int64Counter
	cacheLookups        otelmetric.Int64Counter
	fetchOutcomes       otelmetric.Int64Counter
	fetchDuration       otelmetric.Float64Histogram
	rateLimitDecisions  otelmetric.Int64Counter
)

func initPipelineMetrics(logger *zap.Logger) {
	meter := otel.Meter("groundchat/pipeline")
	var err error
	chatRequests, err = meter.Int64Counter(
		"chat_requests_total",
		otelmetric.WithDescription("Chat requests by outcome"),
	)
	if err != nil {
		logger.Warn("pipeline metrics init", zap.String("metric", "chat_requests_total"), zap.Error(err))
	}
	cacheLookups, err = meter.Int64Counter(
		"cache_lookups_total",
		otelmetric.WithDescription("Result cache lookups by result"),
	)
	if err != nil {
		logger.Warn("pipeline metrics init", zap.String("metric", "cache_lookups_total"), zap.Error(err))
	}
	fetchOutcomes, err = meter.Int64Counter(
		"fetch_outcomes_total",
		otelmetric.WithDescription("Content fetches by outcome kind"),
	)
	if err != nil {
		logger.Warn("pipeline metrics init", zap.String("metric", "fetch_outcomes_total"), zap.Error(err))
	}
	fetchDuration, err = meter.Float64Histogram(
		"fetch_duration_seconds",
		otelmetric.WithDescription("Wall time of content fetches"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("pipeline metrics init", zap.String("metric", "fetch_duration_seconds"), zap.Error(err))
	}
	rateLimitDecisions, err = meter.Int64Counter(
		"ratelimit_decisions_total",
		otelmetric.WithDescription("Rate limiter decisions"),
	)
	if err != nil {
		logger.Warn("pipeline metrics init", zap.String("metric", "ratelimit_decisions_total"), zap.Error(err))
	}
}

func recordRequest(ctx context.Context, outcome string) {
	if chatRequests != nil {
		chatRequests.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func recordCacheLookup(ctx context.Context, hit bool) {
	if cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("result", result)))
}

func recordFetch(ctx context.Context, kind string, elapsed time.Duration) {
	if fetchOutcomes != nil {
		fetchOutcomes.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("kind", kind)))
	}
	if fetchDuration != nil {
		fetchDuration.Record(ctx, elapsed.Seconds())
	}
}

func recordDecision(ctx context.Context, allowed bool) {
	if rateLimitDecisions != nil {
		rateLimitDecisions.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("allowed", strconv.FormatBool(allowed))))
	}
}
