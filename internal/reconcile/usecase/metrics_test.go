package usecase

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]map[attribute.Distinct]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]map[attribute.Distinct]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			points := make(map[attribute.Distinct]int64)
			for _, dp := range sum.DataPoints {
				points[dp.Attributes.Equivalent()] = dp.Value
			}
			out[m.Name] = points
		}
	}
	return out
}

func TestReconcile_RecordsMetrics(t *testing.T) {
	uc, _, _, _ := newTestUseCase(t)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	uc.metrics = newEngineMetrics(mp.Meter("test"))

	_, err := uc.Reconcile(context.Background(), batch("T1", "clover",
		dto.SyncItem{Name: "Chips", Quantity: 3},
		dto.SyncItem{Name: "", Quantity: 1},
	))
	require.NoError(t, err)

	sums := collectSums(t, reader)
	created := attribute.NewSet(attribute.String("mode", "sync"), attribute.String("outcome", "created"))
	failed := attribute.NewSet(attribute.String("mode", "sync"), attribute.String("outcome", "failed"))
	assert.Equal(t, int64(1), sums["inventory_sync.items"][created.Equivalent()])
	assert.Equal(t, int64(1), sums["inventory_sync.items"][failed.Equivalent()])

	mode := attribute.NewSet(attribute.String("mode", "sync"))
	assert.Equal(t, int64(1), sums["inventory_sync.batches"][mode.Equivalent()])
}
