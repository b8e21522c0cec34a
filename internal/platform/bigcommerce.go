package platform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"github.com/go-resty/resty/v2"
)

const bigCommerceAPI = "https://api.bigcommerce.com"

type BigCommerceConfig struct {
	BaseURL     string
	StoreHash   string
	AccessToken string
	Timeout     time.Duration
}

type bcVariant struct {
	ID                    int64    `json:"id"`
	ProductID             int64    `json:"product_id"`
	SKU                   string   `json:"sku"`
	InventoryLevel        *float64 `json:"inventory_level"`
	InventoryWarningLevel *float64 `json:"inventory_warning_level"`
}

type bcProduct struct {
	ID                    int64       `json:"id"`
	Name                  string      `json:"name"`
	SKU                   string      `json:"sku"`
	InventoryLevel        *float64    `json:"inventory_level"`
	InventoryWarningLevel *float64    `json:"inventory_warning_level"`
	Variants              []bcVariant `json:"variants"`
}

type bcPage struct {
	Data []bcProduct `json:"data"`
	Meta struct {
		Pagination struct {
			CurrentPage int `json:"current_page"`
			TotalPages  int `json:"total_pages"`
		} `json:"pagination"`
	} `json:"meta"`
}

type BigCommerceAdapter struct {
	storeHash string
	http      *resty.Client
	pageSize  int
}

func NewBigCommerceAdapter(cfg *BigCommerceConfig) *BigCommerceAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = bigCommerceAPI
	}
	client := newHTTPClient(base, cfg.Timeout).
		SetHeader("X-Auth-Token", cfg.AccessToken)
	return &BigCommerceAdapter{storeHash: cfg.StoreHash, http: client, pageSize: 250}
}

func (a *BigCommerceAdapter) Platform() string { return "bigcommerce" }

func (a *BigCommerceAdapter) StoreID() string { return a.storeHash }

func (a *BigCommerceAdapter) productsPath() string {
	return fmt.Sprintf("/stores/%s/v3/catalog/products", a.storeHash)
}

func (a *BigCommerceAdapter) FetchItems(ctx context.Context) ([]dto.SyncItem, error) {
	var items []dto.SyncItem
	for page := 1; ; page++ {
		var out bcPage
		resp, err := a.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"include": "variants",
				"page":    strconv.Itoa(page),
				"limit":   strconv.Itoa(a.pageSize),
			}).
			SetResult(&out).
			Get(a.productsPath())
		if err != nil {
			return nil, fmt.Errorf("bigcommerce products page %d: %w", page, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("bigcommerce products page %d: unexpected status %s", page, resp.Status())
		}

		for i := range out.Data {
			items = append(items, a.mapProduct(&out.Data[i])...)
		}
		if len(out.Data) == 0 || page >= out.Meta.Pagination.TotalPages {
			return items, nil
		}
	}
}

// FetchItem accepts "<productID>/<variantID>", or "<productID>" for a product
// that maps to a single item.
func (a *BigCommerceAdapter) FetchItem(ctx context.Context, ref string) (*dto.SyncItem, error) {
	items, err := a.FetchRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(items) > 1 {
		return nil, fmt.Errorf("bigcommerce product %s: %w", ref, ErrMultipleItems)
	}
	return &items[0], nil
}

// FetchRef accepts "<productID>" or "<productID>/<variantID>". A product ref
// expands to every variant of the product.
func (a *BigCommerceAdapter) FetchRef(ctx context.Context, ref string) ([]dto.SyncItem, error) {
	productID, variantID, _ := strings.Cut(ref, "/")

	var out struct {
		Data bcProduct `json:"data"`
	}
	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParam("include", "variants").
		SetResult(&out).
		Get(a.productsPath() + "/" + productID)
	if err != nil {
		return nil, fmt.Errorf("bigcommerce product %s: %w", productID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrItemNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("bigcommerce product %s: unexpected status %s", productID, resp.Status())
	}

	mapped := a.mapProduct(&out.Data)
	if variantID == "" {
		if len(mapped) == 0 {
			return nil, ErrItemNotFound
		}
		return mapped, nil
	}
	for i := range mapped {
		if mapped[i].PlatformVariantID == variantID {
			return mapped[i : i+1], nil
		}
	}
	return nil, ErrItemNotFound
}

// mapProduct emits one item per variant. A product whose only variant is the
// base variant maps to a single item named after the product.
func (a *BigCommerceAdapter) mapProduct(p *bcProduct) []dto.SyncItem {
	productID := idString(p.ID)
	if len(p.Variants) == 0 {
		return []dto.SyncItem{{
			Name:             p.Name,
			SKU:              p.SKU,
			PlatformItemID:   productID,
			StoreID:          a.storeHash,
			Quantity:         floatOrNil(p.InventoryLevel),
			ReorderThreshold: floatOrNil(p.InventoryWarningLevel),
		}}
	}

	items := make([]dto.SyncItem, 0, len(p.Variants))
	for _, v := range p.Variants {
		name := p.Name
		if len(p.Variants) > 1 && v.SKU != "" {
			name = fmt.Sprintf("%s - %s", p.Name, v.SKU)
		}
		items = append(items, dto.SyncItem{
			Name:              name,
			SKU:               v.SKU,
			PlatformItemID:    productID,
			PlatformVariantID: idString(v.ID),
			StoreID:           a.storeHash,
			Quantity:          floatOrNil(v.InventoryLevel),
			ReorderThreshold:  floatOrNil(v.InventoryWarningLevel),
		})
	}
	return items
}

func floatOrNil(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
