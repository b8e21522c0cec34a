package inventory

import (
	"context"

	"github.com/fekuna/omnipos-inventory-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
)

// Repository is the tenant-scoped store of record for inventory items.
// Point lookups return (nil, nil) when nothing matches.
type Repository interface {
	// Identity lookups, in the order the resolver tries them
	FindByVariantID(ctx context.Context, key *dto.IdentityKey) (*model.InventoryItem, error)
	FindByProductAndSKU(ctx context.Context, key *dto.IdentityKey) (*model.InventoryItem, error)
	FindByProductID(ctx context.Context, key *dto.IdentityKey) (*model.InventoryItem, error)
	FindBySKU(ctx context.Context, key *dto.IdentityKey) (*model.InventoryItem, error)
	FindByName(ctx context.Context, tenantID, name string) (*model.InventoryItem, error)

	FindByID(ctx context.Context, tenantID, id string) (*model.InventoryItem, error)
	FindAll(ctx context.Context, filters *dto.ItemFilters) ([]model.InventoryItem, int, error)

	// CreateWithHistory and UpdateWithHistory write the item row and, when
	// event is non-nil, its ledger entry in a single transaction.
	CreateWithHistory(ctx context.Context, item *model.InventoryItem, event *model.HistoryEvent) error
	UpdateWithHistory(ctx context.Context, item *model.InventoryItem, event *model.HistoryEvent) error
}
