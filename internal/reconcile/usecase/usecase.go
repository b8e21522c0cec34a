package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/history"
	"github.com/fekuna/omnipos-inventory-sync/internal/inventory"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"github.com/fekuna/omnipos-inventory-sync/pkg/database/postgres"
	"github.com/fekuna/omnipos-inventory-sync/pkg/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize  = 25
	DefaultBatchDelay = 500 * time.Millisecond
)

type Config struct {
	BatchSize   int
	BatchDelay  time.Duration
	DedupWindow time.Duration
}

type itemStatus int

const (
	statusFailed itemStatus = iota
	statusCreated
	statusUpdated
)

type itemOutcome struct {
	status itemStatus
	err    string
	item   *model.InventoryItem
}

type reconcileUseCase struct {
	items    inventory.Repository
	history  history.Repository
	resolver *Resolver
	guard    *DedupGuard
	enricher reconcile.Enricher
	readSide inventory.UseCase
	cfg      Config
	tracer   trace.Tracer
	metrics  *engineMetrics
	logger   logger.ZapLogger
	now      func() time.Time
}

// NewReconcileUseCase wires the engine. enricher, marker and readSide may be nil.
func NewReconcileUseCase(
	items inventory.Repository,
	hist history.Repository,
	enricher reconcile.Enricher,
	marker reconcile.DeliveryMarker,
	readSide inventory.UseCase,
	cfg *Config,
	log logger.ZapLogger,
) reconcile.UseCase {
	c := *cfg
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}

	return &reconcileUseCase{
		items:    items,
		history:  hist,
		resolver: NewResolver(items),
		guard:    NewDedupGuard(hist, marker, c.DedupWindow, log),
		enricher: enricher,
		readSide: readSide,
		cfg:      c,
		tracer:   otel.Tracer("omnipos-inventory-sync/reconcile"),
		metrics:  newEngineMetrics(otel.Meter("omnipos-inventory-sync/reconcile")),
		logger:   log,
		now:      time.Now,
	}
}

func validateInput(in *dto.ReconcileInput) error {
	if in == nil || strings.TrimSpace(in.TenantID) == "" {
		return reconcile.ErrTenantRequired
	}
	if strings.TrimSpace(in.Source) == "" {
		return reconcile.ErrSourceRequired
	}
	if len(in.Items) == 0 {
		return reconcile.ErrNoItems
	}
	return nil
}

func (uc *reconcileUseCase) Reconcile(ctx context.Context, in *dto.ReconcileInput) (*dto.SyncBatchResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	ctx, span := uc.tracer.Start(ctx, "reconcile.Reconcile", trace.WithAttributes(
		attribute.String("tenant_id", in.TenantID),
		attribute.String("source", in.Source),
		attribute.Int("items", len(in.Items)),
		attribute.Bool("webhook", in.Options.Webhook),
	))
	defer span.End()

	outcomes := make([]itemOutcome, len(in.Items))
	started := len(in.Items)
	for start := 0; start < len(in.Items); start += uc.cfg.BatchSize {
		if start > 0 && !uc.pause(ctx) {
			started = start
			break
		}
		if ctx.Err() != nil {
			started = start
			break
		}
		end := min(start+uc.cfg.BatchSize, len(in.Items))
		uc.runChunk(ctx, in, start, end, outcomes)
	}
	// Work never issued because the caller gave up. Already written items stay.
	for i := started; i < len(in.Items); i++ {
		outcomes[i] = failure(itemLabel(&in.Items[i], i), reconcile.ErrSyncCancelled)
	}

	result := &dto.SyncBatchResult{Errors: []string{}}
	var changed []model.InventoryItem
	for _, o := range outcomes {
		switch o.status {
		case statusCreated:
			result.Created++
		case statusUpdated:
			result.Updated++
		default:
			result.Failed++
			result.Errors = append(result.Errors, o.err)
		}
		if o.item != nil {
			changed = append(changed, *o.item)
		}
	}

	uc.recordImport(ctx, in, result)
	uc.metrics.recordBatch(ctx, in, result)

	if uc.readSide != nil && len(changed) > 0 {
		go uc.readSide.ItemsChanged(context.WithoutCancel(ctx), in.TenantID, changed)
	}

	span.SetAttributes(
		attribute.Int("created", result.Created),
		attribute.Int("updated", result.Updated),
		attribute.Int("failed", result.Failed),
	)
	if !result.Success() {
		span.SetStatus(codes.Error, "completed with errors")
	}

	uc.logger.Info(result.Summary(),
		zap.String("tenant_id", in.TenantID),
		zap.String("source", in.Source),
		zap.Bool("webhook", in.Options.Webhook),
	)
	return result, nil
}

func (uc *reconcileUseCase) pause(ctx context.Context) bool {
	if uc.cfg.BatchDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(uc.cfg.BatchDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// runChunk reconciles items[start:end] concurrently. Records that share an
// identity key run sequentially in input order so they cannot race each other
// into duplicate rows.
func (uc *reconcileUseCase) runChunk(ctx context.Context, in *dto.ReconcileInput, start, end int, outcomes []itemOutcome) {
	groups := make(map[string][]int)
	var keys []string
	for i := start; i < end; i++ {
		k := identityKey(&in.Items[i])
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}

	var wg sync.WaitGroup
	for _, k := range keys {
		idxs := groups[k]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, i := range idxs {
				outcomes[i] = uc.reconcileItem(ctx, in, i)
			}
		}()
	}
	wg.Wait()
}

func (uc *reconcileUseCase) reconcileItem(ctx context.Context, in *dto.ReconcileInput, idx int) (out itemOutcome) {
	raw := in.Items[idx]
	label := itemLabel(&raw, idx)

	defer func() {
		if r := recover(); r != nil {
			out = failure(label, fmt.Errorf("unexpected panic: %v", r))
		}
	}()

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return failure(label, reconcile.ErrNameRequired)
	}

	item, status, err := uc.apply(ctx, in, &raw, name)
	if err != nil {
		uc.logger.Warn("failed to reconcile item",
			zap.String("tenant_id", in.TenantID),
			zap.String("source", in.Source),
			zap.String("item", name),
			zap.Error(err),
		)
		return failure(label, err)
	}
	return itemOutcome{status: status, item: item}
}

func (uc *reconcileUseCase) apply(ctx context.Context, in *dto.ReconcileInput, raw *dto.SyncItem, name string) (*model.InventoryItem, itemStatus, error) {
	quantity := nonNegative(NormalizeQuantity(raw.Quantity))
	threshold := nonNegative(NormalizeQuantity(raw.ReorderThreshold))

	existing, match, err := uc.resolver.Resolve(ctx, in.TenantID, in.Options.Platform, raw)
	if err != nil {
		return nil, statusFailed, err
	}

	if existing == nil {
		created, err := uc.create(ctx, in, raw, name, quantity, threshold)
		if err == nil {
			return created, statusCreated, nil
		}
		if !postgres.IsUniqueViolation(err) {
			return nil, statusFailed, err
		}
		// A concurrent sync inserted the same platform item first.
		existing, match, err = uc.resolver.Resolve(ctx, in.TenantID, in.Options.Platform, raw)
		if err != nil {
			return nil, statusFailed, err
		}
		if existing == nil {
			return nil, statusFailed, fmt.Errorf("insert conflicted but no matching item found")
		}
	}

	uc.logger.Debug("resolved inventory item",
		zap.String("tenant_id", in.TenantID),
		zap.String("item_id", existing.ID),
		zap.String("match", string(match)),
	)

	updated, err := uc.update(ctx, in, raw, name, existing, quantity, threshold)
	if err != nil {
		return nil, statusFailed, err
	}
	return updated, statusUpdated, nil
}

func (uc *reconcileUseCase) create(ctx context.Context, in *dto.ReconcileInput, raw *dto.SyncItem, name string, quantity, threshold int64) (*model.InventoryItem, error) {
	now := uc.now()
	item := &model.InventoryItem{
		ID:                uuid.New().String(),
		TenantID:          in.TenantID,
		Name:              name,
		SKU:               optional(raw.SKU),
		Platform:          optional(in.Options.Platform),
		PlatformItemID:    optional(raw.PlatformItemID),
		PlatformVariantID: optional(raw.PlatformVariantID),
		StoreID:           optional(raw.StoreID),
		Quantity:          quantity,
		ReorderThreshold:  threshold,
		Category:          optional(raw.Category),
		AILabel:           optional(raw.AILabel),
		ItemType:          model.ItemTypeStock,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if item.Category == nil && item.AILabel == nil {
		item.Category, item.AILabel = uc.enrich(ctx, in, name)
	}

	var event *model.HistoryEvent
	if quantity > 0 {
		event = uc.newEvent(in, item, 0)
	}
	if err := uc.items.CreateWithHistory(ctx, item, event); err != nil {
		return nil, err
	}
	return item, nil
}

func (uc *reconcileUseCase) update(ctx context.Context, in *dto.ReconcileInput, raw *dto.SyncItem, name string, item *model.InventoryItem, quantity, threshold int64) (*model.InventoryItem, error) {
	previous := item.Quantity

	item.Name = name
	item.Quantity = quantity
	item.ItemType = model.ItemTypeStock
	item.UpdatedAt = uc.now()
	// Thresholds are user-tuned; platforms that do not send one leave it alone.
	if raw.ReorderThreshold != nil {
		item.ReorderThreshold = threshold
	}
	setIfPresent(&item.SKU, raw.SKU)
	setIfPresent(&item.Platform, in.Options.Platform)
	setIfPresent(&item.PlatformItemID, raw.PlatformItemID)
	setIfPresent(&item.PlatformVariantID, raw.PlatformVariantID)
	setIfPresent(&item.StoreID, raw.StoreID)

	// Enrichment fields are write-once.
	if isBlank(item.Category) && isBlank(item.AILabel) && raw.Category == "" && raw.AILabel == "" {
		item.Category, item.AILabel = uc.enrich(ctx, in, name)
	} else {
		if isBlank(item.Category) {
			item.Category = optional(raw.Category)
		}
		if isBlank(item.AILabel) {
			item.AILabel = optional(raw.AILabel)
		}
	}

	var event *model.HistoryEvent
	marked := false
	if quantity != previous {
		event = uc.newEvent(in, item, previous)
		if in.Options.Webhook {
			dup, err := uc.guard.Check(ctx, in.TenantID, item.ID, quantity, in.Source, in.Options.DeliveryID)
			if err != nil {
				return nil, err
			}
			if dup {
				uc.metrics.duplicates.Add(ctx, 1)
				uc.logger.Info("duplicate webhook delivery, history not recorded",
					zap.String("tenant_id", in.TenantID),
					zap.String("item_id", item.ID),
					zap.Int64("quantity", quantity),
					zap.String("source", in.Source),
				)
				event = nil
			} else {
				marked = in.Options.DeliveryID != ""
			}
		}
	}

	if err := uc.items.UpdateWithHistory(ctx, item, event); err != nil {
		if marked {
			uc.guard.Release(context.WithoutCancel(ctx), in.TenantID, item.ID, quantity, in.Options.DeliveryID)
		}
		return nil, err
	}
	return item, nil
}

func (uc *reconcileUseCase) enrich(ctx context.Context, in *dto.ReconcileInput, name string) (*string, *string) {
	if !in.Options.EnableEnrichment || uc.enricher == nil {
		return nil, nil
	}
	res, err := uc.enricher.Label(ctx, name)
	if err != nil {
		uc.logger.Warn("enrichment failed, continuing without labels",
			zap.String("tenant_id", in.TenantID),
			zap.String("item", name),
			zap.Error(err),
		)
		return nil, nil
	}
	if !res.OK() {
		return nil, nil
	}
	return optional(res.Category), optional(res.Label)
}

func (uc *reconcileUseCase) newEvent(in *dto.ReconcileInput, item *model.InventoryItem, previous int64) *model.HistoryEvent {
	changeType := model.ChangeTypeSync
	if in.Options.Webhook {
		changeType = model.ChangeTypeWebhook
	}
	return &model.HistoryEvent{
		ID:               uuid.New().String(),
		TenantID:         in.TenantID,
		ItemID:           item.ID,
		ItemName:         item.Name,
		SKU:              item.SKU,
		PreviousQuantity: previous,
		NewQuantity:      item.Quantity,
		QuantityChange:   item.Quantity - previous,
		ChangeType:       changeType,
		Source:           in.Source,
		CreatedAt:        uc.now(),
	}
}

func (uc *reconcileUseCase) recordImport(ctx context.Context, in *dto.ReconcileInput, result *dto.SyncBatchResult) {
	status := model.ImportStatusCompleted
	if !result.Success() {
		status = model.ImportStatusCompletedWithErrors
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := uc.history.RecordImport(ctx, &model.ImportRecord{
		ID:           uuid.New().String(),
		TenantID:     in.TenantID,
		Source:       in.Source,
		Status:       status,
		CreatedCount: result.Created,
		UpdatedCount: result.Updated,
		FailedCount:  result.Failed,
		CreatedAt:    uc.now(),
	})
	if err != nil {
		uc.logger.Error("failed to record import audit",
			zap.String("tenant_id", in.TenantID),
			zap.String("source", in.Source),
			zap.Error(err),
		)
	}
}

func failure(label string, err error) itemOutcome {
	return itemOutcome{status: statusFailed, err: fmt.Sprintf("%s: %s", label, err.Error())}
}

func itemLabel(item *dto.SyncItem, idx int) string {
	if name := strings.TrimSpace(item.Name); name != "" {
		return name
	}
	return fmt.Sprintf("item %d", idx+1)
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func setIfPresent(dst **string, v string) {
	if p := optional(v); p != nil {
		*dst = p
	}
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
