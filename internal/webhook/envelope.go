package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrUnsupportedEvent = errors.New("unsupported webhook event")

// Change points at one platform record that needs to be refetched.
type Change struct {
	StoreID string
	// Ref is passed to the platform adapter's FetchItem.
	Ref string
}

type Envelope struct {
	Changes []Change
	// DeliveryID is set when the provider embeds one in the body.
	DeliveryID string
}

// ParseEnvelope decodes a provider payload. topic is the provider's event
// name when it is delivered out of band (Shopify sends it as a header).
func ParseEnvelope(platform, topic string, payload []byte) (*Envelope, error) {
	switch platform {
	case "bigcommerce":
		return parseBigCommerce(payload)
	case "shopify":
		return parseShopify(topic, payload)
	case "clover":
		return parseClover(payload)
	default:
		return nil, fmt.Errorf("%w: platform %q", ErrUnsupportedEvent, platform)
	}
}

type bigCommerceEvent struct {
	Scope    string `json:"scope"`
	Producer string `json:"producer"`
	Hash     string `json:"hash"`
	Data     struct {
		Type      string `json:"type"`
		ID        int64  `json:"id"`
		Inventory *struct {
			ProductID int64 `json:"product_id"`
			VariantID int64 `json:"variant_id"`
		} `json:"inventory"`
	} `json:"data"`
}

func parseBigCommerce(payload []byte) (*Envelope, error) {
	var ev bigCommerceEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode bigcommerce event: %w", err)
	}

	store := strings.TrimPrefix(ev.Producer, "stores/")
	env := &Envelope{DeliveryID: ev.Hash}

	switch ev.Scope {
	case "store/product/inventory/updated", "store/product/inventory/order/updated", "store/product/updated":
		env.Changes = []Change{{StoreID: store, Ref: strconv.FormatInt(ev.Data.ID, 10)}}
	case "store/sku/inventory/updated", "store/sku/inventory/order/updated":
		if ev.Data.Inventory == nil || ev.Data.Inventory.ProductID == 0 {
			return nil, fmt.Errorf("%w: %s without product id", ErrUnsupportedEvent, ev.Scope)
		}
		ref := strconv.FormatInt(ev.Data.Inventory.ProductID, 10)
		if ev.Data.Inventory.VariantID != 0 {
			ref += "/" + strconv.FormatInt(ev.Data.Inventory.VariantID, 10)
		}
		env.Changes = []Change{{StoreID: store, Ref: ref}}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, ev.Scope)
	}
	return env, nil
}

// Shopify inventory_levels/update carries an inventory item id with no
// variant id, so only product payloads are refetched here; level changes
// are picked up by the next poll.
func parseShopify(topic string, payload []byte) (*Envelope, error) {
	switch topic {
	case "products/update", "products/create":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, topic)
	}

	var p struct {
		ID       int64 `json:"id"`
		Variants []struct {
			ID int64 `json:"id"`
		} `json:"variants"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode shopify product: %w", err)
	}

	env := &Envelope{}
	for _, v := range p.Variants {
		env.Changes = append(env.Changes, Change{Ref: strconv.FormatInt(v.ID, 10)})
	}
	return env, nil
}

type cloverEvent struct {
	AppID     string `json:"appId"`
	Merchants map[string][]struct {
		ObjectID string `json:"objectId"`
		Type     string `json:"type"`
		TS       int64  `json:"ts"`
	} `json:"merchants"`
}

// parseClover keeps item ("I:") creates and updates, ordered by merchant id.
// Deletes are not reconciled.
func parseClover(payload []byte) (*Envelope, error) {
	var ev cloverEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode clover event: %w", err)
	}

	merchantIDs := make([]string, 0, len(ev.Merchants))
	for merchantID := range ev.Merchants {
		merchantIDs = append(merchantIDs, merchantID)
	}
	sort.Strings(merchantIDs)

	env := &Envelope{}
	for _, merchantID := range merchantIDs {
		for _, u := range ev.Merchants[merchantID] {
			id, ok := strings.CutPrefix(u.ObjectID, "I:")
			if !ok || u.Type == "DELETE" {
				continue
			}
			env.Changes = append(env.Changes, Change{StoreID: merchantID, Ref: id})
		}
	}
	if len(env.Changes) == 0 {
		return nil, fmt.Errorf("%w: no item changes", ErrUnsupportedEvent)
	}
	return env, nil
}
