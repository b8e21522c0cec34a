package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/enrichment"
	historydto "github.com/fekuna/omnipos-inventory-sync/internal/history/dto"
	inventorydto "github.com/fekuna/omnipos-inventory-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
)

type memInventory struct {
	mu          sync.Mutex
	items       []model.InventoryItem
	history     *memHistory
	failUpdates map[string]error // keyed by item name
	failHistory map[string]error // keyed by item name, fails after the row write
	createHook  func(item *model.InventoryItem) error
}

func newMemInventory(hist *memHistory) *memInventory {
	return &memInventory{history: hist, failUpdates: map[string]error{}, failHistory: map[string]error{}}
}

func (m *memInventory) find(pred func(it *model.InventoryItem) bool) (*model.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if pred(&m.items[i]) {
			c := m.items[i]
			return &c, nil
		}
	}
	return nil, nil
}

func eq(p *string, v string) bool { return p != nil && *p == v }

// matchesKey applies the platform scope and the unlinked-variant rule the
// postgres lookups use.
func matchesKey(it *model.InventoryItem, key *inventorydto.IdentityKey, scoped bool) bool {
	if it.TenantID != key.TenantID {
		return false
	}
	if scoped && key.Platform != "" && it.Platform != nil && *it.Platform != key.Platform {
		return false
	}
	return true
}

func unlinked(it *model.InventoryItem, key *inventorydto.IdentityKey) bool {
	return key.VariantID == "" || it.PlatformVariantID == nil
}

func (m *memInventory) FindByVariantID(_ context.Context, key *inventorydto.IdentityKey) (*model.InventoryItem, error) {
	return m.find(func(it *model.InventoryItem) bool {
		return matchesKey(it, key, true) && eq(it.PlatformVariantID, key.VariantID)
	})
}

func (m *memInventory) FindByProductAndSKU(_ context.Context, key *inventorydto.IdentityKey) (*model.InventoryItem, error) {
	return m.find(func(it *model.InventoryItem) bool {
		return matchesKey(it, key, true) && eq(it.PlatformItemID, key.ProductID) && eq(it.SKU, key.SKU) && unlinked(it, key)
	})
}

func (m *memInventory) FindByProductID(_ context.Context, key *inventorydto.IdentityKey) (*model.InventoryItem, error) {
	return m.find(func(it *model.InventoryItem) bool {
		return matchesKey(it, key, true) && eq(it.PlatformItemID, key.ProductID) && unlinked(it, key)
	})
}

func (m *memInventory) FindBySKU(_ context.Context, key *inventorydto.IdentityKey) (*model.InventoryItem, error) {
	return m.find(func(it *model.InventoryItem) bool {
		return matchesKey(it, key, false) && eq(it.SKU, key.SKU) && unlinked(it, key)
	})
}

func (m *memInventory) FindByName(_ context.Context, tenantID, name string) (*model.InventoryItem, error) {
	return m.find(func(it *model.InventoryItem) bool { return it.TenantID == tenantID && it.Name == name })
}

func (m *memInventory) FindByID(_ context.Context, tenantID, id string) (*model.InventoryItem, error) {
	return m.find(func(it *model.InventoryItem) bool { return it.TenantID == tenantID && it.ID == id })
}

func (m *memInventory) FindAll(context.Context, *inventorydto.ItemFilters) ([]model.InventoryItem, int, error) {
	return nil, 0, nil
}

func (m *memInventory) CreateWithHistory(ctx context.Context, item *model.InventoryItem, event *model.HistoryEvent) error {
	if m.createHook != nil {
		if err := m.createHook(item); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if event != nil {
		if err := m.failHistory[item.Name]; err != nil {
			return err
		}
		_ = m.history.Append(ctx, event)
	}
	m.items = append(m.items, *item)
	return nil
}

func (m *memInventory) UpdateWithHistory(ctx context.Context, item *model.InventoryItem, event *model.HistoryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failUpdates[item.Name]; ok {
		return err
	}
	for i := range m.items {
		if m.items[i].ID == item.ID && m.items[i].TenantID == item.TenantID {
			if event != nil {
				if err := m.failHistory[item.Name]; err != nil {
					return err
				}
				_ = m.history.Append(ctx, event)
			}
			m.items[i] = *item
			return nil
		}
	}
	return errors.New("not found")
}

func (m *memInventory) all() []model.InventoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.InventoryItem(nil), m.items...)
}

type memHistory struct {
	mu      sync.Mutex
	events  []model.HistoryEvent
	imports []model.ImportRecord
}

func (h *memHistory) Append(_ context.Context, e *model.HistoryEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, *e)
	return nil
}

func (h *memHistory) ExistsSince(_ context.Context, tenantID, itemID string, newQuantity int64, source string, since time.Time) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		if e.TenantID == tenantID && e.ItemID == itemID && e.NewQuantity == newQuantity &&
			e.Source == source && !e.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (h *memHistory) List(context.Context, *historydto.HistoryFilters) ([]model.HistoryEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.HistoryEvent(nil), h.events...), nil
}

func (h *memHistory) SumMovement(context.Context, *historydto.HistoryFilters) (*historydto.Movement, error) {
	return &historydto.Movement{}, nil
}

func (h *memHistory) RecordImport(_ context.Context, rec *model.ImportRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.imports = append(h.imports, *rec)
	return nil
}

func (h *memHistory) all() []model.HistoryEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.HistoryEvent(nil), h.events...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeEnricher struct {
	mu     sync.Mutex
	calls  []string
	result *enrichment.Result
	err    error
}

func (f *fakeEnricher) Label(_ context.Context, name string) (*enrichment.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.result, f.err
}

type fakeMarker struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (f *fakeMarker) MarkOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeMarker) Unmark(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, key)
	return nil
}
