package platform

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"github.com/go-resty/resty/v2"
)

const shopifyAPIVersion = "2024-01"

var linkNextRe = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

type ShopifyConfig struct {
	// BaseURL overrides https://<ShopDomain>.
	BaseURL     string
	ShopDomain  string
	AccessToken string
	Timeout     time.Duration
}

type shopifyVariant struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"product_id"`
	Title             string `json:"title"`
	SKU               string `json:"sku"`
	InventoryQuantity *int64 `json:"inventory_quantity"`
}

type shopifyProduct struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	Variants []shopifyVariant `json:"variants"`
}

type ShopifyAdapter struct {
	shop     string
	http     *resty.Client
	pageSize int
}

func NewShopifyAdapter(cfg *ShopifyConfig) *ShopifyAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = "https://" + cfg.ShopDomain
	}
	client := newHTTPClient(base, cfg.Timeout).
		SetHeader("X-Shopify-Access-Token", cfg.AccessToken)
	return &ShopifyAdapter{shop: cfg.ShopDomain, http: client, pageSize: 250}
}

func (a *ShopifyAdapter) Platform() string { return "shopify" }

func (a *ShopifyAdapter) StoreID() string { return a.shop }

func (a *ShopifyAdapter) apiPath(resource string) string {
	return fmt.Sprintf("/admin/api/%s/%s", shopifyAPIVersion, resource)
}

// FetchItems follows the Link header cursor until there is no next page.
func (a *ShopifyAdapter) FetchItems(ctx context.Context) ([]dto.SyncItem, error) {
	var items []dto.SyncItem
	req := a.http.R().SetQueryParam("limit", strconv.Itoa(a.pageSize))
	url := a.apiPath("products.json")

	for page := 1; url != ""; page++ {
		var out struct {
			Products []shopifyProduct `json:"products"`
		}
		resp, err := req.SetContext(ctx).SetResult(&out).Get(url)
		if err != nil {
			return nil, fmt.Errorf("shopify products page %d: %w", page, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("shopify products page %d: unexpected status %s", page, resp.Status())
		}

		for i := range out.Products {
			for _, v := range out.Products[i].Variants {
				items = append(items, a.mapVariant(&out.Products[i], v))
			}
		}

		url = nextPage(resp.Header().Get("Link"))
		// The cursor URL carries its own query string.
		req = a.http.R()
	}
	return items, nil
}

// FetchItem takes a variant id.
func (a *ShopifyAdapter) FetchItem(ctx context.Context, ref string) (*dto.SyncItem, error) {
	var v struct {
		Variant shopifyVariant `json:"variant"`
	}
	resp, err := a.http.R().SetContext(ctx).SetResult(&v).Get(a.apiPath("variants/" + ref + ".json"))
	if err != nil {
		return nil, fmt.Errorf("shopify variant %s: %w", ref, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrItemNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("shopify variant %s: unexpected status %s", ref, resp.Status())
	}

	var p struct {
		Product shopifyProduct `json:"product"`
	}
	productPath := a.apiPath(fmt.Sprintf("products/%d.json", v.Variant.ProductID))
	resp, err = a.http.R().
		SetContext(ctx).
		SetQueryParam("fields", "id,title,variants").
		SetResult(&p).
		Get(productPath)
	if err != nil {
		return nil, fmt.Errorf("shopify product %d: %w", v.Variant.ProductID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrItemNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("shopify product %d: unexpected status %s", v.Variant.ProductID, resp.Status())
	}

	item := a.mapVariant(&p.Product, v.Variant)
	return &item, nil
}

func (a *ShopifyAdapter) mapVariant(p *shopifyProduct, v shopifyVariant) dto.SyncItem {
	name := p.Title
	if len(p.Variants) > 1 && v.Title != "" && v.Title != "Default Title" {
		name = fmt.Sprintf("%s - %s", p.Title, v.Title)
	}
	item := dto.SyncItem{
		Name:              name,
		SKU:               v.SKU,
		PlatformItemID:    idString(p.ID),
		PlatformVariantID: idString(v.ID),
		StoreID:           a.shop,
	}
	if v.InventoryQuantity != nil {
		item.Quantity = *v.InventoryQuantity
	}
	return item
}

func nextPage(link string) string {
	for _, part := range strings.Split(link, ",") {
		if m := linkNextRe.FindStringSubmatch(part); m != nil {
			return m[1]
		}
	}
	return ""
}
