package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// metrics are recorded through the global meter provider configured in
// shared/observability and exported via Prometheus.
type metrics struct {
	turnsStarted    metric.Int64Counter
	turnsCommitted  metric.Int64Counter
	turnsSilent     metric.Int64Counter
	turnsRolledBack metric.Int64Counter
	turnLatency     metric.Float64Histogram
	bgRefreshes     metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter("ensemble-chat/orchestrator")

	turnsStarted, _ := meter.Int64Counter("orchestrator.turns.started",
		metric.WithDescription("Agent turns attempted"))
	turnsCommitted, _ := meter.Int64Counter("orchestrator.turns.committed",
		metric.WithDescription("Agent turns finalized with content"))
	turnsSilent, _ := meter.Int64Counter("orchestrator.turns.silent",
		metric.WithDescription("Agent turns resolved as silence"))
	turnsRolledBack, _ := meter.Int64Counter("orchestrator.turns.rolled_back",
		metric.WithDescription("Agent turns rolled back on failure"))
	turnLatency, _ := meter.Float64Histogram("orchestrator.turn.duration_seconds",
		metric.WithDescription("Wall time of committed agent turns"))
	bgRefreshes, _ := meter.Int64Counter("orchestrator.background.refreshes",
		metric.WithDescription("Background images committed"))

	return &metrics{
		turnsStarted:    turnsStarted,
		turnsCommitted:  turnsCommitted,
		turnsSilent:     turnsSilent,
		turnsRolledBack: turnsRolledBack,
		turnLatency:     turnLatency,
		bgRefreshes:     bgRefreshes,
	}
}

func (m *metrics) turnStarted(ctx context.Context) {
	m.turnsStarted.Add(ctx, 1)
}

func (m *metrics) turnCommitted(ctx context.Context, elapsed time.Duration) {
	m.turnsCommitted.Add(ctx, 1)
	m.turnLatency.Record(ctx, elapsed.Seconds())
}

func (m *metrics) turnSilent(ctx context.Context) {
	m.turnsSilent.Add(ctx, 1)
}

func (m *metrics) turnRolledBack(ctx context.Context) {
	m.turnsRolledBack.Add(ctx, 1)
}

func (m *metrics) backgroundRefreshed(ctx context.Context) {
	m.bgRefreshes.Add(ctx, 1)
}
