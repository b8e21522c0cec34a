package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"github.com/go-resty/resty/v2"
)

type GenericConfig struct {
	URL     string
	APIKey  string
	StoreID string
	Timeout time.Duration
}

// GenericAdapter reads a plain JSON endpoint returning either an array of
// records or an object with an "items" array. Field names vary between
// feeds, so a few common aliases are accepted.
type GenericAdapter struct {
	url     string
	storeID string
	http    *resty.Client
}

func NewGenericAdapter(cfg *GenericConfig) *GenericAdapter {
	client := newHTTPClient("", cfg.Timeout)
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	return &GenericAdapter{url: cfg.URL, storeID: cfg.StoreID, http: client}
}

func (a *GenericAdapter) Platform() string { return "generic" }

func (a *GenericAdapter) StoreID() string { return a.storeID }

func (a *GenericAdapter) FetchItems(ctx context.Context) ([]dto.SyncItem, error) {
	resp, err := a.http.R().SetContext(ctx).Get(a.url)
	if err != nil {
		return nil, fmt.Errorf("generic feed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("generic feed: unexpected status %s", resp.Status())
	}

	records, err := decodeRecords(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("generic feed: %w", err)
	}

	items := make([]dto.SyncItem, 0, len(records))
	for _, r := range records {
		items = append(items, a.mapRecord(r))
	}
	return items, nil
}

// FetchItem has no single-record endpoint to call, so it scans the feed.
func (a *GenericAdapter) FetchItem(ctx context.Context, ref string) (*dto.SyncItem, error) {
	items, err := a.FetchItems(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].PlatformItemID == ref || items[i].PlatformVariantID == ref {
			return &items[i], nil
		}
	}
	return nil, ErrItemNotFound
}

func decodeRecords(body []byte) ([]map[string]interface{}, error) {
	dec := func(b []byte, v interface{}) error {
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		return d.Decode(v)
	}

	var list []map[string]interface{}
	if err := dec(body, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Items []map[string]interface{} `json:"items"`
	}
	if err := dec(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return wrapped.Items, nil
}

func (a *GenericAdapter) mapRecord(r map[string]interface{}) dto.SyncItem {
	return dto.SyncItem{
		Name:              firstString(r, "name", "title"),
		SKU:               firstString(r, "sku", "code"),
		PlatformItemID:    firstString(r, "id", "item_id", "product_id"),
		PlatformVariantID: firstString(r, "variant_id"),
		StoreID:           a.storeID,
		Quantity:          firstValue(r, "quantity", "stock", "qty"),
		ReorderThreshold:  firstValue(r, "reorder_threshold", "reorder_point"),
		Category:          firstString(r, "category"),
	}
}

func firstValue(r map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(r map[string]interface{}, keys ...string) string {
	switch v := firstValue(r, keys...).(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
