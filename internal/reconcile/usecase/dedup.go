package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/history"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile"
	"github.com/fekuna/omnipos-inventory-sync/pkg/logger"
	"go.uber.org/zap"
)

const DefaultDedupWindow = 60 * time.Second

// DedupGuard absorbs at-least-once webhook redelivery. When the provider sent
// a delivery id it is remembered for the window and a repeat is a duplicate.
// Without one, an event for the same tenant, item, resulting quantity and
// source inside the window counts as already recorded. The heuristic can
// swallow a genuine second change that lands on the same quantity within the
// window.
type DedupGuard struct {
	history history.Repository
	marker  reconcile.DeliveryMarker
	window  time.Duration
	now     func() time.Time
	logger  logger.ZapLogger
}

func NewDedupGuard(repo history.Repository, marker reconcile.DeliveryMarker, window time.Duration, log logger.ZapLogger) *DedupGuard {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &DedupGuard{
		history: repo,
		marker:  marker,
		window:  window,
		now:     time.Now,
		logger:  log,
	}
}

// IsDuplicate checks the ledger for an equivalent event inside the window.
func (g *DedupGuard) IsDuplicate(ctx context.Context, tenantID, itemID string, newQuantity int64, source string) (bool, error) {
	since := g.now().Add(-g.window)
	exists, err := g.history.ExistsSince(ctx, tenantID, itemID, newQuantity, source, since)
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return exists, nil
}

// deliveryKey includes the resulting quantity: some providers reuse one
// delivery id for every update of an object, and a genuine second change must
// still reach the ledger.
func deliveryKey(tenantID, deliveryID, itemID string, newQuantity int64) string {
	return fmt.Sprintf("webhook:delivery:%s:%s:%s:%d", tenantID, deliveryID, itemID, newQuantity)
}

// Check prefers the delivery id and falls back to the ledger heuristic when
// there is no id, no marker, or the marker is unavailable.
func (g *DedupGuard) Check(ctx context.Context, tenantID, itemID string, newQuantity int64, source, deliveryID string) (bool, error) {
	if deliveryID != "" && g.marker != nil {
		first, err := g.marker.MarkOnce(ctx, deliveryKey(tenantID, deliveryID, itemID, newQuantity), g.window)
		if err == nil {
			return !first, nil
		}
		g.logger.Warn("delivery marker unavailable, using ledger dedup",
			zap.String("tenant_id", tenantID),
			zap.String("delivery_id", deliveryID),
			zap.Error(err),
		)
	}
	return g.IsDuplicate(ctx, tenantID, itemID, newQuantity, source)
}

// Release forgets a delivery marked by Check whose write did not commit, so
// the provider's retry is recorded.
func (g *DedupGuard) Release(ctx context.Context, tenantID, itemID string, newQuantity int64, deliveryID string) {
	if deliveryID == "" || g.marker == nil {
		return
	}
	if err := g.marker.Unmark(ctx, deliveryKey(tenantID, deliveryID, itemID, newQuantity)); err != nil {
		g.logger.Warn("failed to release delivery marker",
			zap.String("tenant_id", tenantID),
			zap.String("delivery_id", deliveryID),
			zap.Error(err),
		)
	}
}
