package inventory

import (
	"context"

	"github.com/fekuna/omnipos-inventory-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
)

type UseCase interface {
	GetItem(ctx context.Context, tenantID, id string) (*model.InventoryItem, error)
	ListItems(ctx context.Context, filters *dto.ItemFilters) ([]model.InventoryItem, int, error)
	ListLowStock(ctx context.Context, tenantID string, page, pageSize int) ([]model.InventoryItem, int, error)
	SearchItems(ctx context.Context, tenantID, query string, page, pageSize int) ([]model.InventoryItem, int, error)

	// ItemsChanged is called after a reconciliation wrote items, to refresh
	// derived read models (list cache, search index).
	ItemsChanged(ctx context.Context, tenantID string, items []model.InventoryItem)
}
