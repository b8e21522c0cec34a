package dto

type ItemFilters struct {
	TenantID    string
	SKU         string
	Platform    string
	SearchQuery string // ILIKE on name and sku
	LowStock    bool   // quantity <= reorder_threshold AND reorder_threshold > 0
	Page        int
	PageSize    int
}

// IdentityKey carries the platform linkage an inbound record is resolved by.
// Platform scopes the variant and product lookups; rows stored without a
// platform still match. A record with a VariantID never adopts a row that is
// already linked to some variant, so the fallback lookups only consider rows
// whose variant id is unset.
type IdentityKey struct {
	TenantID  string
	Platform  string
	VariantID string
	ProductID string
	SKU       string
}
