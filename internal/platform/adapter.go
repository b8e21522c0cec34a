package platform

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = 15 * time.Second

var (
	ErrItemNotFound = errors.New("platform item not found")
	// ErrMultipleItems is returned by FetchItem when ref names a record that
	// maps to several items. Use RefFetcher.FetchRef instead.
	ErrMultipleItems = errors.New("platform ref maps to multiple items")
)

// Adapter pulls catalog records from one external platform and maps them to
// SyncItems. Quantities are passed through as received.
type Adapter interface {
	Platform() string
	// StoreID identifies the connected store or merchant on the platform.
	StoreID() string
	FetchItems(ctx context.Context) ([]dto.SyncItem, error)
	// FetchItem refetches a single record after a webhook. ref is the
	// platform's item or variant id as carried in the webhook envelope.
	FetchItem(ctx context.Context, ref string) (*dto.SyncItem, error)
}

// RefFetcher is implemented by adapters whose webhook refs can name a parent
// record, such as a product with several variants. FetchRef returns every
// item the ref covers.
type RefFetcher interface {
	FetchRef(ctx context.Context, ref string) ([]dto.SyncItem, error)
}

// FetchRef refetches all items named by ref, expanding parent refs when the
// adapter supports it.
func FetchRef(ctx context.Context, a Adapter, ref string) ([]dto.SyncItem, error) {
	if rf, ok := a.(RefFetcher); ok {
		return rf.FetchRef(ctx, ref)
	}
	item, err := a.FetchItem(ctx, ref)
	if err != nil {
		return nil, err
	}
	return []dto.SyncItem{*item}, nil
}

func newHTTPClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
}

func idString(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}
