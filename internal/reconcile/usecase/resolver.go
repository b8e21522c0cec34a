package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-inventory-sync/internal/inventory"
	inventorydto "github.com/fekuna/omnipos-inventory-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
)

// MatchKind names the identity key a resolution succeeded on.
type MatchKind string

const (
	MatchNone          MatchKind = ""
	MatchVariantID     MatchKind = "variant_id"
	MatchProductAndSKU MatchKind = "product_id_and_sku"
	MatchProductID     MatchKind = "product_id"
	MatchSKU           MatchKind = "sku"
	MatchName          MatchKind = "name"
)

// Resolver finds the stored item an inbound record refers to. Keys are tried
// in a fixed priority order and the first hit wins; the resolver does not
// look further to detect that a lower-priority key would have matched a
// different row.
type Resolver struct {
	repo inventory.Repository
}

func NewResolver(repo inventory.Repository) *Resolver {
	return &Resolver{repo: repo}
}

type lookup struct {
	kind MatchKind
	find func(ctx context.Context) (*model.InventoryItem, error)
}

// Resolve returns the matching item and the key it matched on, or (nil, MatchNone, nil).
// platform scopes the platform id lookups and may be empty.
func (r *Resolver) Resolve(ctx context.Context, tenantID, platform string, item *dto.SyncItem) (*model.InventoryItem, MatchKind, error) {
	key := &inventorydto.IdentityKey{
		TenantID:  tenantID,
		Platform:  strings.TrimSpace(platform),
		VariantID: strings.TrimSpace(item.PlatformVariantID),
		ProductID: strings.TrimSpace(item.PlatformItemID),
		SKU:       strings.TrimSpace(item.SKU),
	}
	name := strings.TrimSpace(item.Name)

	// A record carrying a variant id only falls back to rows that are not
	// linked to a variant yet, so sibling variants keep their own rows.
	var lookups []lookup
	if key.VariantID != "" {
		lookups = append(lookups, lookup{MatchVariantID, func(ctx context.Context) (*model.InventoryItem, error) {
			return r.repo.FindByVariantID(ctx, key)
		}})
	}
	if key.ProductID != "" && key.SKU != "" {
		lookups = append(lookups, lookup{MatchProductAndSKU, func(ctx context.Context) (*model.InventoryItem, error) {
			return r.repo.FindByProductAndSKU(ctx, key)
		}})
	}
	if key.ProductID != "" {
		lookups = append(lookups, lookup{MatchProductID, func(ctx context.Context) (*model.InventoryItem, error) {
			return r.repo.FindByProductID(ctx, key)
		}})
	}
	if key.SKU != "" {
		lookups = append(lookups, lookup{MatchSKU, func(ctx context.Context) (*model.InventoryItem, error) {
			return r.repo.FindBySKU(ctx, key)
		}})
	}
	// Names collide and get edited, so they only identify records that carry
	// no structured key at all.
	if len(lookups) == 0 && name != "" {
		lookups = append(lookups, lookup{MatchName, func(ctx context.Context) (*model.InventoryItem, error) {
			return r.repo.FindByName(ctx, tenantID, name)
		}})
	}

	for _, l := range lookups {
		found, err := l.find(ctx)
		if err != nil {
			return nil, MatchNone, fmt.Errorf("resolve by %s: %w", l.kind, err)
		}
		if found != nil {
			return found, l.kind, nil
		}
	}
	return nil, MatchNone, nil
}

// identityKey groups records within a chunk that would resolve through the
// same strongest key, so they are reconciled one after another.
func identityKey(item *dto.SyncItem) string {
	switch {
	case strings.TrimSpace(item.PlatformVariantID) != "":
		return "v:" + strings.TrimSpace(item.PlatformVariantID)
	case strings.TrimSpace(item.PlatformItemID) != "":
		return "p:" + strings.TrimSpace(item.PlatformItemID)
	case strings.TrimSpace(item.SKU) != "":
		return "s:" + strings.TrimSpace(item.SKU)
	default:
		return "n:" + strings.TrimSpace(item.Name)
	}
}
