package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/enrichment"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"github.com/fekuna/omnipos-inventory-sync/pkg/logger"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUseCase(t *testing.T) (*reconcileUseCase, *memInventory, *memHistory, *fakeClock) {
	t.Helper()
	hist := &memHistory{}
	inv := newMemInventory(hist)
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	uc := NewReconcileUseCase(inv, hist, nil, nil, nil, &Config{BatchSize: DefaultBatchSize}, logger.NewNop()).(*reconcileUseCase)
	uc.now = clock.Now
	uc.guard.now = clock.Now
	return uc, inv, hist, clock
}

func batch(tenant, source string, items ...dto.SyncItem) *dto.ReconcileInput {
	return &dto.ReconcileInput{TenantID: tenant, Source: source, Items: items}
}

func webhookBatch(source, deliveryID string, items ...dto.SyncItem) *dto.ReconcileInput {
	in := batch("T1", source, items...)
	in.Options = dto.Options{Webhook: true, DeliveryID: deliveryID, Platform: strings.SplitN(source, "_", 2)[0]}
	return in
}

func TestReconcile_CloverScenario(t *testing.T) {
	uc, inv, hist, clock := newTestUseCase(t)
	ctx := context.Background()
	chips := dto.SyncItem{Name: "Chips", SKU: "CH-1", Quantity: "10"}

	res, err := uc.Reconcile(ctx, batch("T1", "clover", chips))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Failed)
	assert.True(t, res.Success())
	assert.Empty(t, res.Errors)

	items := inv.all()
	require.Len(t, items, 1)
	assert.Equal(t, int64(10), items[0].Quantity)
	assert.Equal(t, model.ItemTypeStock, items[0].ItemType)

	events := hist.all()
	require.Len(t, events, 1)
	assert.Equal(t, int64(0), events[0].PreviousQuantity)
	assert.Equal(t, int64(10), events[0].NewQuantity)
	assert.Equal(t, int64(10), events[0].QuantityChange)
	assert.Equal(t, model.ChangeTypeSync, events[0].ChangeType)
	assert.Equal(t, "clover", events[0].Source)
	assert.Equal(t, "Chips", events[0].ItemName)

	clock.Advance(time.Minute)
	res, err = uc.Reconcile(ctx, batch("T1", "clover", chips))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Failed)
	assert.Len(t, hist.all(), 1)
	assert.Equal(t, "Synced 1 items: 0 created, 1 updated, 0 failed", res.Summary())

	require.Len(t, hist.imports, 2)
	assert.Equal(t, model.ImportStatusCompleted, hist.imports[1].Status)
}

func TestReconcile_IdempotentResync(t *testing.T) {
	uc, inv, hist, _ := newTestUseCase(t)
	ctx := context.Background()

	var items []dto.SyncItem
	for i := 0; i < 30; i++ {
		items = append(items, dto.SyncItem{Name: fmt.Sprintf("Item %d", i), SKU: fmt.Sprintf("SKU-%d", i), Quantity: i})
	}

	res, err := uc.Reconcile(ctx, batch("T1", "bigcommerce", items...))
	require.NoError(t, err)
	assert.Equal(t, 30, res.Created)
	before := len(hist.all())

	res, err = uc.Reconcile(ctx, batch("T1", "bigcommerce", items...))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 30, res.Updated)
	assert.Len(t, hist.all(), before)
	assert.Len(t, inv.all(), 30)
}

func TestReconcile_QuantityDelta(t *testing.T) {
	uc, _, hist, clock := newTestUseCase(t)
	ctx := context.Background()

	_, err := uc.Reconcile(ctx, batch("T1", "shopify", dto.SyncItem{Name: "Beans", PlatformVariantID: "V1", Quantity: 10}))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = uc.Reconcile(ctx, batch("T1", "shopify", dto.SyncItem{Name: "Beans", PlatformVariantID: "V1", Quantity: 4.8}))
	require.NoError(t, err)

	events := hist.all()
	require.Len(t, events, 2)
	assert.Equal(t, int64(10), events[1].PreviousQuantity)
	assert.Equal(t, int64(4), events[1].NewQuantity)
	assert.Equal(t, int64(-6), events[1].QuantityChange)
}

func TestReconcile_WebhookDedupWindow(t *testing.T) {
	uc, _, hist, clock := newTestUseCase(t)
	ctx := context.Background()
	source := "clover_webhook_update_M1"
	item := func(q int) dto.SyncItem {
		return dto.SyncItem{Name: "Chips", PlatformItemID: "I1", StoreID: "M1", Quantity: q}
	}

	_, err := uc.Reconcile(ctx, batch("T1", "clover", item(10)))
	require.NoError(t, err)

	// First delivery records the drop to 7.
	_, err = uc.Reconcile(ctx, webhookBatch(source, "", item(7)))
	require.NoError(t, err)
	require.Len(t, hist.all(), 2)
	assert.Equal(t, model.ChangeTypeWebhook, hist.all()[1].ChangeType)

	// A poll lands in between and restores 10, then the provider retries.
	clock.Advance(10 * time.Second)
	_, err = uc.Reconcile(ctx, batch("T1", "clover", item(10)))
	require.NoError(t, err)
	require.Len(t, hist.all(), 3)

	clock.Advance(10 * time.Second)
	res, err := uc.Reconcile(ctx, webhookBatch(source, "", item(7)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated, "duplicate still counts as reconciled")
	assert.Len(t, hist.all(), 3, "retry inside the window is suppressed")

	// Outside the window the same transition is recorded again.
	clock.Advance(61 * time.Second)
	_, err = uc.Reconcile(ctx, batch("T1", "clover", item(10)))
	require.NoError(t, err)
	_, err = uc.Reconcile(ctx, webhookBatch(source, "", item(7)))
	require.NoError(t, err)
	assert.Len(t, hist.all(), 5)

	// A different resulting quantity is never a duplicate.
	_, err = uc.Reconcile(ctx, webhookBatch(source, "", item(5)))
	require.NoError(t, err)
	events := hist.all()
	require.Len(t, events, 6)
	assert.Equal(t, int64(-2), events[5].QuantityChange)
}

func TestReconcile_DeliveryIDDedup(t *testing.T) {
	uc, _, hist, _ := newTestUseCase(t)
	uc.guard.marker = &fakeMarker{}
	ctx := context.Background()
	source := "shopify_webhook_update_S1"
	item := func(q int) dto.SyncItem {
		return dto.SyncItem{Name: "Tea", PlatformVariantID: "V9", Quantity: q}
	}

	_, err := uc.Reconcile(ctx, batch("T1", "shopify", item(3)))
	require.NoError(t, err)

	_, err = uc.Reconcile(ctx, webhookBatch(source, "d-1", item(1)))
	require.NoError(t, err)
	_, err = uc.Reconcile(ctx, batch("T1", "shopify", item(3)))
	require.NoError(t, err)
	require.Len(t, hist.all(), 3)

	// Same delivery redelivered.
	_, err = uc.Reconcile(ctx, webhookBatch(source, "d-1", item(1)))
	require.NoError(t, err)
	assert.Len(t, hist.all(), 3)

	_, err = uc.Reconcile(ctx, batch("T1", "shopify", item(3)))
	require.NoError(t, err)

	// A distinct delivery with the same resulting quantity is a real change.
	_, err = uc.Reconcile(ctx, webhookBatch(source, "d-2", item(1)))
	require.NoError(t, err)
	assert.Len(t, hist.all(), 5)
}

func TestReconcile_DeliveryMarkerErrorFallsBackToLedger(t *testing.T) {
	uc, _, hist, _ := newTestUseCase(t)
	uc.guard.marker = &fakeMarker{err: errors.New("redis down")}
	ctx := context.Background()
	source := "shopify_webhook_update_S1"
	item := func(q int) dto.SyncItem { return dto.SyncItem{Name: "Tea", PlatformVariantID: "V9", Quantity: q} }

	_, err := uc.Reconcile(ctx, batch("T1", "shopify", item(3)))
	require.NoError(t, err)
	_, err = uc.Reconcile(ctx, webhookBatch(source, "d-1", item(1)))
	require.NoError(t, err)
	_, err = uc.Reconcile(ctx, batch("T1", "shopify", item(3)))
	require.NoError(t, err)
	_, err = uc.Reconcile(ctx, webhookBatch(source, "d-1", item(1)))
	require.NoError(t, err)

	assert.Len(t, hist.all(), 3)
}

func TestReconcile_PartialFailureIsolation(t *testing.T) {
	uc, inv, _, _ := newTestUseCase(t)
	ctx := context.Background()

	res, err := uc.Reconcile(ctx, batch("T1", "generic",
		dto.SyncItem{Name: "A", Quantity: 1},
		dto.SyncItem{Name: "B", Quantity: 2},
		dto.SyncItem{Name: "  ", Quantity: 3},
		dto.SyncItem{Name: "D", Quantity: 4},
		dto.SyncItem{Name: "E", Quantity: 5},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 4, res.Created+res.Updated)
	assert.False(t, res.Success())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "item 3: name is required", res.Errors[0])
	assert.Len(t, inv.all(), 4)
}

func TestReconcile_StorageFailureIsCountedPerItem(t *testing.T) {
	uc, inv, hist, _ := newTestUseCase(t)
	ctx := context.Background()

	_, err := uc.Reconcile(ctx, batch("T1", "clover",
		dto.SyncItem{Name: "Widget", SKU: "W-1", Quantity: 1},
		dto.SyncItem{Name: "Gadget", SKU: "G-1", Quantity: 1},
	))
	require.NoError(t, err)

	inv.failUpdates["Widget"] = errors.New("connection reset")
	res, err := uc.Reconcile(ctx, batch("T1", "clover",
		dto.SyncItem{Name: "Widget", SKU: "W-1", Quantity: 9},
		dto.SyncItem{Name: "Gadget", SKU: "G-1", Quantity: 9},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"Widget: connection reset"}, res.Errors)

	require.Len(t, hist.imports, 2)
	assert.Equal(t, model.ImportStatusCompletedWithErrors, hist.imports[1].Status)
	assert.Equal(t, 1, hist.imports[1].FailedCount)
}

func TestReconcile_ErrorsKeepInputOrder(t *testing.T) {
	uc, _, _, _ := newTestUseCase(t)
	uc.cfg.BatchSize = 3

	var items []dto.SyncItem
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("N%d", i)
		if i%3 == 0 {
			name = ""
		}
		items = append(items, dto.SyncItem{Name: name, SKU: fmt.Sprintf("S%d", i), Quantity: i})
	}

	res, err := uc.Reconcile(context.Background(), batch("T1", "generic", items...))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"item 1: name is required",
		"item 4: name is required",
		"item 7: name is required",
		"item 10: name is required",
	}, res.Errors)
	assert.Equal(t, 6, res.Created)
}

func TestReconcile_IdentityPrioritySKUFallback(t *testing.T) {
	uc, inv, hist, _ := newTestUseCase(t)
	ctx := context.Background()

	_, err := uc.Reconcile(ctx, batch("T1", "generic", dto.SyncItem{Name: "Soda", SKU: "SD-1", Quantity: 5}))
	require.NoError(t, err)

	res, err := uc.Reconcile(ctx, batch("T1", "bigcommerce",
		dto.SyncItem{Name: "Soda 330ml", SKU: "SD-1", PlatformItemID: "P-9", Quantity: 8}))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)

	items := inv.all()
	require.Len(t, items, 1)
	assert.Equal(t, "Soda 330ml", items[0].Name)
	require.NotNil(t, items[0].PlatformItemID)
	assert.Equal(t, "P-9", *items[0].PlatformItemID)
	assert.Equal(t, int64(8), items[0].Quantity)
	assert.Equal(t, int64(3), hist.all()[1].QuantityChange)
}

func TestReconcile_TenantsAreIsolated(t *testing.T) {
	uc, inv, _, _ := newTestUseCase(t)
	ctx := context.Background()

	_, err := uc.Reconcile(ctx, batch("T1", "clover", dto.SyncItem{Name: "Chips", SKU: "CH-1", Quantity: 1}))
	require.NoError(t, err)
	res, err := uc.Reconcile(ctx, batch("T2", "clover", dto.SyncItem{Name: "Chips", SKU: "CH-1", Quantity: 1}))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Len(t, inv.all(), 2)
}

func TestReconcile_Preconditions(t *testing.T) {
	uc, _, hist, _ := newTestUseCase(t)
	ctx := context.Background()
	one := dto.SyncItem{Name: "A"}

	tests := []struct {
		name string
		in   *dto.ReconcileInput
		err  error
	}{
		{"nil input", nil, reconcile.ErrTenantRequired},
		{"missing tenant", batch("", "clover", one), reconcile.ErrTenantRequired},
		{"missing source", batch("T1", " ", one), reconcile.ErrSourceRequired},
		{"no items", batch("T1", "clover"), reconcile.ErrNoItems},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := uc.Reconcile(ctx, tt.in)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, res)
		})
	}
	assert.Empty(t, hist.imports)
}

func TestReconcile_NegativeQuantityClampedToZero(t *testing.T) {
	uc, inv, hist, _ := newTestUseCase(t)

	res, err := uc.Reconcile(context.Background(), batch("T1", "clover", dto.SyncItem{Name: "Oops", Quantity: "-5"}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, int64(0), inv.all()[0].Quantity)
	assert.Empty(t, hist.all())
}

func TestReconcile_ThresholdKeptWhenPlatformOmitsIt(t *testing.T) {
	uc, inv, _, _ := newTestUseCase(t)
	ctx := context.Background()

	_, err := uc.Reconcile(ctx, batch("T1", "bigcommerce", dto.SyncItem{Name: "Rice", SKU: "R1", Quantity: 9, ReorderThreshold: "4"}))
	require.NoError(t, err)
	assert.Equal(t, int64(4), inv.all()[0].ReorderThreshold)

	_, err = uc.Reconcile(ctx, batch("T1", "clover", dto.SyncItem{Name: "Rice", SKU: "R1", Quantity: 7}))
	require.NoError(t, err)
	assert.Equal(t, int64(4), inv.all()[0].ReorderThreshold)
}

func TestReconcile_Enrichment(t *testing.T) {
	ctx := context.Background()

	t.Run("labels new items without category", func(t *testing.T) {
		uc, inv, _, _ := newTestUseCase(t)
		enricher := &fakeEnricher{result: &enrichment.Result{Status: enrichment.StatusSuccess, Category: "Snacks", Label: "chips"}}
		uc.enricher = enricher

		in := batch("T1", "clover",
			dto.SyncItem{Name: "Chips", SKU: "C1", Quantity: 1},
			dto.SyncItem{Name: "Cola", SKU: "C2", Quantity: 1, Category: "Drinks"},
		)
		in.Options.EnableEnrichment = true
		_, err := uc.Reconcile(ctx, in)
		require.NoError(t, err)

		assert.Equal(t, []string{"Chips"}, enricher.calls)
		for _, it := range inv.all() {
			require.NotNil(t, it.Category)
			if it.Name == "Chips" {
				assert.Equal(t, "Snacks", *it.Category)
				assert.Equal(t, "chips", *it.AILabel)
			} else {
				assert.Equal(t, "Drinks", *it.Category)
			}
		}
	})

	t.Run("failure does not fail the item", func(t *testing.T) {
		uc, inv, _, _ := newTestUseCase(t)
		uc.enricher = &fakeEnricher{err: errors.New("timeout")}

		in := batch("T1", "clover", dto.SyncItem{Name: "Chips", Quantity: 1})
		in.Options.EnableEnrichment = true
		res, err := uc.Reconcile(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Created)
		assert.Nil(t, inv.all()[0].Category)
	})

	t.Run("insufficient data leaves fields empty", func(t *testing.T) {
		uc, inv, _, _ := newTestUseCase(t)
		uc.enricher = &fakeEnricher{result: &enrichment.Result{Status: enrichment.StatusInsufficientData}}

		in := batch("T1", "clover", dto.SyncItem{Name: "X", Quantity: 1})
		in.Options.EnableEnrichment = true
		_, err := uc.Reconcile(ctx, in)
		require.NoError(t, err)
		assert.Nil(t, inv.all()[0].Category)
		assert.Nil(t, inv.all()[0].AILabel)
	})

	t.Run("disabled skips the enricher", func(t *testing.T) {
		uc, _, _, _ := newTestUseCase(t)
		enricher := &fakeEnricher{result: &enrichment.Result{Status: enrichment.StatusSuccess, Category: "Snacks"}}
		uc.enricher = enricher

		_, err := uc.Reconcile(ctx, batch("T1", "clover", dto.SyncItem{Name: "Chips", Quantity: 1}))
		require.NoError(t, err)
		assert.Empty(t, enricher.calls)
	})

	t.Run("existing labels are never overwritten", func(t *testing.T) {
		uc, inv, _, _ := newTestUseCase(t)
		enricher := &fakeEnricher{result: &enrichment.Result{Status: enrichment.StatusSuccess, Category: "Snacks"}}
		uc.enricher = enricher

		in := batch("T1", "clover", dto.SyncItem{Name: "Chips", SKU: "C1", Quantity: 1})
		in.Options.EnableEnrichment = true
		_, err := uc.Reconcile(ctx, in)
		require.NoError(t, err)

		in = batch("T1", "clover", dto.SyncItem{Name: "Chips", SKU: "C1", Quantity: 2, Category: "Produce"})
		in.Options.EnableEnrichment = true
		_, err = uc.Reconcile(ctx, in)
		require.NoError(t, err)

		assert.Len(t, enricher.calls, 1)
		assert.Equal(t, "Snacks", *inv.all()[0].Category)
	})
}

func TestReconcile_CancelledContextStopsNewWork(t *testing.T) {
	uc, inv, hist, _ := newTestUseCase(t)
	uc.cfg.BatchSize = 2

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := uc.Reconcile(ctx, batch("T1", "clover",
		dto.SyncItem{Name: "A", Quantity: 1},
		dto.SyncItem{Name: "B", Quantity: 1},
		dto.SyncItem{Name: "C", Quantity: 1},
	))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, "A: sync cancelled", res.Errors[0])
	assert.Empty(t, inv.all())
	assert.Len(t, hist.imports, 1, "audit row is written even when cancelled")
}

func TestReconcile_InsertRaceTakesUpdatePath(t *testing.T) {
	uc, inv, hist, _ := newTestUseCase(t)

	raced := false
	inv.createHook = func(item *model.InventoryItem) error {
		if raced {
			return nil
		}
		raced = true
		other := *item
		other.ID = "winner"
		other.Quantity = 2
		inv.mu.Lock()
		inv.items = append(inv.items, other)
		inv.mu.Unlock()
		return &pgconn.PgError{Code: "23505"}
	}

	res, err := uc.Reconcile(context.Background(), batch("T1", "shopify",
		dto.SyncItem{Name: "Tea", PlatformVariantID: "V1", Quantity: 5}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 0, res.Created)

	items := inv.all()
	require.Len(t, items, 1)
	assert.Equal(t, "winner", items[0].ID)
	assert.Equal(t, int64(5), items[0].Quantity)
	require.Len(t, hist.all(), 1)
	assert.Equal(t, int64(3), hist.all()[0].QuantityChange)
}

func platformBatch(platform string, items ...dto.SyncItem) *dto.ReconcileInput {
	in := batch("T1", platform, items...)
	in.Options.Platform = platform
	return in
}

func TestReconcile_VariantsOfOneProductKeepTheirOwnRows(t *testing.T) {
	uc, inv, hist, clock := newTestUseCase(t)
	uc.cfg.BatchSize = 1
	ctx := context.Background()
	variant := func(vid, sku string, q int) dto.SyncItem {
		return dto.SyncItem{Name: "Tee - " + sku, SKU: sku, PlatformItemID: "P1", PlatformVariantID: vid, Quantity: q}
	}
	small, medium, large := variant("V10", "TEE-S", 4), variant("V11", "TEE-M", 6), variant("V12", "TEE-L", 2)

	res, err := uc.Reconcile(ctx, platformBatch("bigcommerce", small, medium))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	// A variant added to an existing product gets a row of its own.
	clock.Advance(time.Minute)
	res, err = uc.Reconcile(ctx, platformBatch("bigcommerce", small, medium, large))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Updated)
	assert.Len(t, hist.all(), 3)

	for i := 0; i < 3; i++ {
		clock.Advance(time.Minute)
		res, err = uc.Reconcile(ctx, platformBatch("bigcommerce", small, medium, large))
		require.NoError(t, err)
		assert.Equal(t, 3, res.Updated)
	}
	assert.Len(t, hist.all(), 3, "re-syncing unchanged variants records nothing")

	byVariant := map[string]model.InventoryItem{}
	for _, it := range inv.all() {
		require.NotNil(t, it.PlatformVariantID)
		byVariant[*it.PlatformVariantID] = it
	}
	require.Len(t, byVariant, 3)
	assert.Equal(t, "TEE-S", *byVariant["V10"].SKU)
	assert.Equal(t, int64(6), byVariant["V11"].Quantity)
	assert.Equal(t, "Tee - TEE-L", byVariant["V12"].Name)
}

func TestReconcile_ReusedDeliveryIDWithNewQuantityIsRecorded(t *testing.T) {
	uc, inv, hist, clock := newTestUseCase(t)
	uc.guard.marker = &fakeMarker{}
	ctx := context.Background()
	source := "bigcommerce_webhook_update_abc"
	item := func(q int) dto.SyncItem {
		return dto.SyncItem{Name: "Mug", PlatformItemID: "P7", PlatformVariantID: "V7", Quantity: q}
	}

	_, err := uc.Reconcile(ctx, batch("T1", "bigcommerce", item(10)))
	require.NoError(t, err)

	_, err = uc.Reconcile(ctx, webhookBatch(source, "hash-1", item(9)))
	require.NoError(t, err)
	clock.Advance(20 * time.Second)
	_, err = uc.Reconcile(ctx, webhookBatch(source, "hash-1", item(8)))
	require.NoError(t, err)

	// A true redelivery of the last change is still absorbed.
	_, err = uc.Reconcile(ctx, batch("T1", "bigcommerce", item(9)))
	require.NoError(t, err)
	_, err = uc.Reconcile(ctx, webhookBatch(source, "hash-1", item(8)))
	require.NoError(t, err)

	events := hist.all()
	require.Len(t, events, 4)
	assert.Equal(t, int64(10), events[1].PreviousQuantity)
	assert.Equal(t, int64(9), events[1].NewQuantity)
	assert.Equal(t, int64(9), events[2].PreviousQuantity)
	assert.Equal(t, int64(8), events[2].NewQuantity)
	assert.Equal(t, int64(8), inv.all()[0].Quantity)
}

func TestReconcile_HistoryFailureLeavesRowUntouched(t *testing.T) {
	uc, inv, hist, _ := newTestUseCase(t)
	ctx := context.Background()
	widget := func(q int) dto.SyncItem { return dto.SyncItem{Name: "Widget", SKU: "W-1", Quantity: q} }

	_, err := uc.Reconcile(ctx, batch("T1", "clover", widget(5)))
	require.NoError(t, err)

	inv.failHistory["Widget"] = errors.New("disk full")
	res, err := uc.Reconcile(ctx, batch("T1", "clover", widget(3)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, int64(5), inv.all()[0].Quantity)
	assert.Len(t, hist.all(), 1)

	delete(inv.failHistory, "Widget")
	res, err = uc.Reconcile(ctx, batch("T1", "clover", widget(3)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	events := hist.all()
	require.Len(t, events, 2)
	assert.Equal(t, int64(-2), events[1].QuantityChange)
}

func TestReconcile_FailedWebhookWriteReleasesDelivery(t *testing.T) {
	uc, inv, hist, _ := newTestUseCase(t)
	uc.guard.marker = &fakeMarker{}
	ctx := context.Background()
	source := "shopify_webhook_update_S1"
	tea := func(q int) dto.SyncItem { return dto.SyncItem{Name: "Tea", PlatformVariantID: "V9", Quantity: q} }

	_, err := uc.Reconcile(ctx, batch("T1", "shopify", tea(3)))
	require.NoError(t, err)

	inv.failHistory["Tea"] = errors.New("connection reset")
	res, err := uc.Reconcile(ctx, webhookBatch(source, "d-1", tea(1)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	delete(inv.failHistory, "Tea")
	res, err = uc.Reconcile(ctx, webhookBatch(source, "d-1", tea(1)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, hist.all(), 2)
	assert.Equal(t, int64(-2), hist.all()[1].QuantityChange)
}
