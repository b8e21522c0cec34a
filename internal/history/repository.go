package history

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/history/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
)

// Repository reads the append-only change ledger and writes the coarse
// imports audit. Ledger rows are appended together with their item write by
// inventory.Repository; nothing updates or deletes them.
type Repository interface {
	// ExistsSince reports whether an event for the same item, resulting
	// quantity and source was recorded at or after since.
	ExistsSince(ctx context.Context, tenantID, itemID string, newQuantity int64, source string, since time.Time) (bool, error)

	List(ctx context.Context, filters *dto.HistoryFilters) ([]model.HistoryEvent, error)
	SumMovement(ctx context.Context, filters *dto.HistoryFilters) (*dto.Movement, error)

	RecordImport(ctx context.Context, record *model.ImportRecord) error
}
