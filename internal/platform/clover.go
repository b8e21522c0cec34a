package platform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"github.com/go-resty/resty/v2"
)

const cloverAPI = "https://api.clover.com"

type CloverConfig struct {
	BaseURL     string
	MerchantID  string
	AccessToken string
	Timeout     time.Duration
}

type cloverItem struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	SKU        string   `json:"sku"`
	Code       string   `json:"code"`
	StockCount *float64 `json:"stockCount"`
	ItemStock  *struct {
		Quantity *float64 `json:"quantity"`
	} `json:"itemStock"`
}

type CloverAdapter struct {
	merchantID string
	http       *resty.Client
	pageSize   int
}

func NewCloverAdapter(cfg *CloverConfig) *CloverAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = cloverAPI
	}
	client := newHTTPClient(base, cfg.Timeout).SetAuthToken(cfg.AccessToken)
	return &CloverAdapter{merchantID: cfg.MerchantID, http: client, pageSize: 1000}
}

func (a *CloverAdapter) Platform() string { return "clover" }

func (a *CloverAdapter) StoreID() string { return a.merchantID }

func (a *CloverAdapter) itemsPath() string {
	return fmt.Sprintf("/v3/merchants/%s/items", a.merchantID)
}

func (a *CloverAdapter) FetchItems(ctx context.Context) ([]dto.SyncItem, error) {
	var items []dto.SyncItem
	for offset := 0; ; offset += a.pageSize {
		var out struct {
			Elements []cloverItem `json:"elements"`
		}
		resp, err := a.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"expand": "itemStock",
				"limit":  strconv.Itoa(a.pageSize),
				"offset": strconv.Itoa(offset),
			}).
			SetResult(&out).
			Get(a.itemsPath())
		if err != nil {
			return nil, fmt.Errorf("clover items offset %d: %w", offset, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("clover items offset %d: unexpected status %s", offset, resp.Status())
		}

		for i := range out.Elements {
			items = append(items, a.mapItem(&out.Elements[i]))
		}
		if len(out.Elements) < a.pageSize {
			return items, nil
		}
	}
}

func (a *CloverAdapter) FetchItem(ctx context.Context, ref string) (*dto.SyncItem, error) {
	var out cloverItem
	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParam("expand", "itemStock").
		SetResult(&out).
		Get(a.itemsPath() + "/" + ref)
	if err != nil {
		return nil, fmt.Errorf("clover item %s: %w", ref, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrItemNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("clover item %s: unexpected status %s", ref, resp.Status())
	}
	item := a.mapItem(&out)
	return &item, nil
}

// mapItem prefers the tracked itemStock quantity over the legacy stockCount.
func (a *CloverAdapter) mapItem(c *cloverItem) dto.SyncItem {
	sku := c.SKU
	if sku == "" {
		sku = c.Code
	}
	item := dto.SyncItem{
		Name:           c.Name,
		SKU:            sku,
		PlatformItemID: c.ID,
		StoreID:        a.merchantID,
	}
	switch {
	case c.ItemStock != nil && c.ItemStock.Quantity != nil:
		item.Quantity = *c.ItemStock.Quantity
	case c.StockCount != nil:
		item.Quantity = *c.StockCount
	}
	return item
}
