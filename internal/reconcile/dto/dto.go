package dto

import "fmt"

// SyncItem is one normalized record produced by a platform adapter. Quantity
// and ReorderThreshold are left untyped because upstream payloads carry
// numbers, numeric strings or nothing at all.
type SyncItem struct {
	Name              string      `json:"name"`
	SKU               string      `json:"sku,omitempty"`
	PlatformItemID    string      `json:"platform_item_id,omitempty"`
	PlatformVariantID string      `json:"platform_variant_id,omitempty"`
	StoreID           string      `json:"store_id,omitempty"`
	Quantity          interface{} `json:"quantity"`
	ReorderThreshold  interface{} `json:"reorder_threshold,omitempty"`
	Category          string      `json:"category,omitempty"`
	AILabel           string      `json:"ai_label,omitempty"`
}

type Options struct {
	EnableEnrichment bool
	// Webhook marks a webhook-triggered call: history is tagged "webhook"
	// and passes through the dedup guard.
	Webhook bool
	// DeliveryID is the provider-issued webhook delivery id, when there is one.
	DeliveryID string
	// Platform is stored on created and updated rows ("clover", "shopify", ...).
	Platform string
}

type ReconcileInput struct {
	TenantID string     `json:"tenant_id"`
	Source   string     `json:"source"`
	Items    []SyncItem `json:"items"`
	Options  Options    `json:"-"`
}

type SyncBatchResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

func (r *SyncBatchResult) Success() bool {
	return r.Failed == 0
}

func (r *SyncBatchResult) Summary() string {
	return fmt.Sprintf("Synced %d items: %d created, %d updated, %d failed",
		r.Created+r.Updated+r.Failed, r.Created, r.Updated, r.Failed)
}
