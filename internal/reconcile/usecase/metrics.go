package usecase

import (
	"context"

	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type engineMetrics struct {
	items      metric.Int64Counter
	batches    metric.Int64Counter
	duplicates metric.Int64Counter
}

func newEngineMetrics(meter metric.Meter) *engineMetrics {
	m := &engineMetrics{}

	var err error
	if m.items, err = meter.Int64Counter("inventory_sync.items",
		metric.WithDescription("Reconciled items by outcome")); err != nil {
		m.items = noop.Int64Counter{}
	}
	if m.batches, err = meter.Int64Counter("inventory_sync.batches",
		metric.WithDescription("Reconciliation batches by mode")); err != nil {
		m.batches = noop.Int64Counter{}
	}
	if m.duplicates, err = meter.Int64Counter("inventory_sync.duplicate_deliveries",
		metric.WithDescription("Webhook deliveries whose history write was suppressed")); err != nil {
		m.duplicates = noop.Int64Counter{}
	}
	return m
}

func (m *engineMetrics) recordBatch(ctx context.Context, in *dto.ReconcileInput, result *dto.SyncBatchResult) {
	mode := "sync"
	if in.Options.Webhook {
		mode = "webhook"
	}
	m.batches.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))

	for outcome, n := range map[string]int{
		"created": result.Created,
		"updated": result.Updated,
		"failed":  result.Failed,
	} {
		if n > 0 {
			m.items.Add(ctx, int64(n), metric.WithAttributes(
				attribute.String("mode", mode),
				attribute.String("outcome", outcome),
			))
		}
	}
}
