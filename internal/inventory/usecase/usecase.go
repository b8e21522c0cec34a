package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/inventory"
	"github.com/fekuna/omnipos-inventory-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
	"github.com/fekuna/omnipos-inventory-sync/pkg/cache"
	"github.com/fekuna/omnipos-inventory-sync/pkg/logger"
	"github.com/fekuna/omnipos-inventory-sync/pkg/search"
	"go.uber.org/zap"
)

const (
	itemIndex    = "inventory_items"
	listCacheTTL = 5 * time.Minute
)

const itemIndexMapping = `{
	"mappings": {
		"properties": {
			"tenant_id": { "type": "keyword" },
			"name": { "type": "text" },
			"sku": { "type": "keyword" },
			"platform": { "type": "keyword" },
			"category": { "type": "keyword" },
			"quantity": { "type": "long" },
			"updated_at": { "type": "date" }
		}
	}
}`

type inventoryUseCase struct {
	repo   inventory.Repository
	cache  *cache.RedisClient
	es     *search.Client
	logger logger.ZapLogger
}

// NewInventoryUseCase builds the read side. cache and es are optional; a nil
// client disables list caching or search indexing respectively.
func NewInventoryUseCase(repo inventory.Repository, cache *cache.RedisClient, es *search.Client, log logger.ZapLogger) inventory.UseCase {
	return &inventoryUseCase{
		repo:   repo,
		cache:  cache,
		es:     es,
		logger: log,
	}
}

func (uc *inventoryUseCase) GetItem(ctx context.Context, tenantID, id string) (*model.InventoryItem, error) {
	return uc.repo.FindByID(ctx, tenantID, id)
}

func (uc *inventoryUseCase) ListItems(ctx context.Context, filters *dto.ItemFilters) ([]model.InventoryItem, int, error) {
	cacheKey := ""
	if uc.cache != nil {
		if key, err := generateCacheKey(filters); err == nil {
			cacheKey = key
			if val, err := uc.cache.Client.Get(ctx, cacheKey).Result(); err == nil {
				var cached listResult
				if err := json.Unmarshal([]byte(val), &cached); err == nil {
					return cached.Items, cached.Count, nil
				}
			}
		}
	}

	items, count, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, 0, err
	}

	if cacheKey != "" {
		if data, err := json.Marshal(listResult{Items: items, Count: count}); err == nil {
			uc.cache.Client.Set(ctx, cacheKey, data, listCacheTTL)
		}
	}
	return items, count, nil
}

func (uc *inventoryUseCase) ListLowStock(ctx context.Context, tenantID string, page, pageSize int) ([]model.InventoryItem, int, error) {
	return uc.ListItems(ctx, &dto.ItemFilters{
		TenantID: tenantID,
		LowStock: true,
		Page:     page,
		PageSize: pageSize,
	})
}

var simpleQueryEscaper = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `=`, `\=`, `&`, `\&`, `|`, `\|`,
	`>`, `\>`, `<`, `\<`, `!`, `\!`, `(`, `\(`, `)`, `\)`, `{`, `\{`,
	`}`, `\}`, `[`, `\[`, `]`, `\]`, `^`, `\^`, `"`, `\"`, `~`, `\~`,
	`*`, `\*`, `?`, `\?`, `:`, `\:`, `/`, `\/`,
)

// prefixQuery turns free text into a simple_query_string where every term
// is matched literally as a prefix.
func prefixQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = simpleQueryEscaper.Replace(t) + "*"
	}
	return strings.Join(terms, " ")
}

func (uc *inventoryUseCase) SearchItems(ctx context.Context, tenantID, query string, page, pageSize int) ([]model.InventoryItem, int, error) {
	if page < 1 {
		page = 1
	}
	if uc.es != nil {
		q := map[string]interface{}{
			"query": map[string]interface{}{
				"bool": map[string]interface{}{
					"must": []map[string]interface{}{
						{"simple_query_string": map[string]interface{}{
							"query":            prefixQuery(query),
							"fields":           []string{"name^3", "sku", "category"},
							"default_operator": "and",
							"flags":            "PREFIX|PHRASE|WHITESPACE",
						}},
						{"term": map[string]interface{}{"tenant_id": tenantID}},
					},
				},
			},
			"from": (page - 1) * pageSize,
		}
		if pageSize > 0 {
			q["size"] = pageSize
		}

		res, err := uc.es.Search(ctx, itemIndex, q)
		if err == nil {
			items := make([]model.InventoryItem, 0, len(res.Hits.Hits))
			for _, hit := range res.Hits.Hits {
				var item model.InventoryItem
				if err := json.Unmarshal(hit.Source, &item); err == nil {
					items = append(items, item)
				}
			}
			return items, res.Hits.Total.Value, nil
		}
		uc.logger.Error("ES search failed, falling back to DB", zap.Error(err))
	}

	return uc.repo.FindAll(ctx, &dto.ItemFilters{
		TenantID:    tenantID,
		SearchQuery: query,
		Page:        page,
		PageSize:    pageSize,
	})
}

func (uc *inventoryUseCase) ItemsChanged(ctx context.Context, tenantID string, items []model.InventoryItem) {
	if len(items) == 0 {
		return
	}
	if uc.cache != nil {
		if err := uc.cache.DeletePattern(ctx, fmt.Sprintf("inventory:list:%s:*", tenantID)); err != nil {
			uc.logger.Warn("failed to invalidate inventory list cache", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	if uc.es == nil {
		return
	}
	_ = uc.es.CreateIndex(ctx, itemIndex, itemIndexMapping)
	for i := range items {
		if err := uc.es.Index(ctx, itemIndex, items[i].ID, &items[i]); err != nil {
			uc.logger.Error("failed to index inventory item", zap.String("item_id", items[i].ID), zap.Error(err))
		}
	}
}

type listResult struct {
	Items []model.InventoryItem
	Count int
}

func generateCacheKey(filters *dto.ItemFilters) (string, error) {
	data, err := json.Marshal(filters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("inventory:list:%s:%x", filters.TenantID, md5.Sum(data)), nil
}
