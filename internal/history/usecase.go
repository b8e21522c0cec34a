package history

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/history/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
)

// UseCase is the read path consumed by reporting and validation collaborators.
type UseCase interface {
	ListSince(ctx context.Context, tenantID string, since time.Time, limit int, order dto.Order) ([]model.HistoryEvent, error)
	TotalDecrement(ctx context.Context, tenantID string, since, until time.Time) (int64, error)
	TotalIncrement(ctx context.Context, tenantID string, since, until time.Time) (int64, error)
	StockMovement(ctx context.Context, filters *dto.HistoryFilters) (*dto.Movement, error)
}
