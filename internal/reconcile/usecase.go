package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/enrichment"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
)

var (
	ErrTenantRequired = errors.New("tenant id is required")
	ErrSourceRequired = errors.New("source is required")
	ErrNoItems        = errors.New("items must be a non-empty list")
	ErrNameRequired   = errors.New("name is required")
	ErrSyncCancelled  = errors.New("sync cancelled")
)

// UseCase merges inbound platform items into a tenant's inventory.
type UseCase interface {
	// Reconcile only returns an error for batch-level precondition failures.
	// Per-item failures are reported in the result.
	Reconcile(ctx context.Context, input *dto.ReconcileInput) (*dto.SyncBatchResult, error)
}

// Enricher labels items by name. Implemented by the enrichment client.
type Enricher interface {
	Label(ctx context.Context, itemName string) (*enrichment.Result, error)
}

// DeliveryMarker remembers provider delivery ids for a bounded time.
// Implemented by the redis cache client.
type DeliveryMarker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, key string) error
}
