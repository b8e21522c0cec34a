package model

import "time"

type ItemType string

const (
	ItemTypeStock       ItemType = "stock"
	ItemTypeOperational ItemType = "operational"
)

// Conventional change types recorded on HistoryEvent.
const (
	ChangeTypeSync             = "sync"
	ChangeTypeWebhook          = "webhook"
	ChangeTypeManual           = "manual"
	ChangeTypeThriveValidation = "thrive_validation"
)

const (
	ImportStatusCompleted           = "completed"
	ImportStatusCompletedWithErrors = "completed_with_errors"
)

type InventoryItem struct {
	ID                string    `db:"id" json:"id"`
	TenantID          string    `db:"tenant_id" json:"tenant_id"`
	Name              string    `db:"name" json:"name"`
	SKU               *string   `db:"sku" json:"sku"`
	Platform          *string   `db:"platform" json:"platform"`
	PlatformItemID    *string   `db:"platform_item_id" json:"platform_item_id"`
	PlatformVariantID *string   `db:"platform_variant_id" json:"platform_variant_id"`
	StoreID           *string   `db:"store_id" json:"store_id"` // merchant/store id on multi-store platforms
	Quantity          int64     `db:"quantity" json:"quantity"`
	ReorderThreshold  int64     `db:"reorder_threshold" json:"reorder_threshold"`
	Category          *string   `db:"category" json:"category"`
	AILabel           *string   `db:"ai_label" json:"ai_label"`
	ItemType          ItemType  `db:"item_type" json:"item_type"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// HistoryEvent is an append-only quantity transition. Name and SKU are copied
// at write time so the row stays readable after the item is renamed or removed.
type HistoryEvent struct {
	ID               string    `db:"id" json:"id"`
	TenantID         string    `db:"tenant_id" json:"tenant_id"`
	ItemID           string    `db:"item_id" json:"item_id"`
	ItemName         string    `db:"item_name" json:"item_name"`
	SKU              *string   `db:"sku" json:"sku"`
	PreviousQuantity int64     `db:"previous_quantity" json:"previous_quantity"`
	NewQuantity      int64     `db:"new_quantity" json:"new_quantity"`
	QuantityChange   int64     `db:"quantity_change" json:"quantity_change"`
	ChangeType       string    `db:"change_type" json:"change_type"`
	Source           string    `db:"source" json:"source"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// ImportRecord is the coarse per-batch audit row.
type ImportRecord struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenant_id"`
	Source       string    `db:"source" json:"source"`
	Status       string    `db:"status" json:"status"`
	CreatedCount int       `db:"created_count" json:"created_count"`
	UpdatedCount int       `db:"updated_count" json:"updated_count"`
	FailedCount  int       `db:"failed_count" json:"failed_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
