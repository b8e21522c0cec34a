package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-inventory-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

const itemColumns = `id, tenant_id, name, sku, platform, platform_item_id, platform_variant_id, store_id,
            quantity, reorder_threshold, category, ai_label, item_type, created_at, updated_at`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// findOne returns the oldest row matching where. Several rows can match a
// non-unique key such as SKU or name; the oldest one wins so repeated syncs
// keep converging on the same row.
func (r *PGRepository) findOne(ctx context.Context, where string, args ...interface{}) (*model.InventoryItem, error) {
	var item model.InventoryItem
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE ` + where + ` ORDER BY created_at ASC, id ASC LIMIT 1`
	err := r.DB.GetContext(ctx, &item, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// keyFilter accumulates positional conditions for identity lookups.
type keyFilter struct {
	conds []string
	args  []interface{}
}

func newKeyFilter(tenantID string) *keyFilter {
	f := &keyFilter{}
	f.add("tenant_id = $%d", tenantID)
	return f
}

func (f *keyFilter) add(cond string, arg interface{}) {
	f.args = append(f.args, arg)
	f.conds = append(f.conds, fmt.Sprintf(cond, len(f.args)))
}

func (f *keyFilter) raw(cond string) {
	f.conds = append(f.conds, cond)
}

func (f *keyFilter) platform(key *dto.IdentityKey) {
	if key.Platform != "" {
		f.add("(platform = $%d OR platform IS NULL)", key.Platform)
	}
}

func (f *keyFilter) unlinked(key *dto.IdentityKey) {
	if key.VariantID != "" {
		f.raw("platform_variant_id IS NULL")
	}
}

func (f *keyFilter) where() string {
	return strings.Join(f.conds, " AND ")
}

func (r *PGRepository) FindByVariantID(ctx context.Context, key *dto.IdentityKey) (*model.InventoryItem, error) {
	f := newKeyFilter(key.TenantID)
	f.add("platform_variant_id = $%d", key.VariantID)
	f.platform(key)
	return r.findOne(ctx, f.where(), f.args...)
}

func (r *PGRepository) FindByProductAndSKU(ctx context.Context, key *dto.IdentityKey) (*model.InventoryItem, error) {
	f := newKeyFilter(key.TenantID)
	f.add("platform_item_id = $%d", key.ProductID)
	f.add("sku = $%d", key.SKU)
	f.platform(key)
	f.unlinked(key)
	return r.findOne(ctx, f.where(), f.args...)
}

func (r *PGRepository) FindByProductID(ctx context.Context, key *dto.IdentityKey) (*model.InventoryItem, error) {
	f := newKeyFilter(key.TenantID)
	f.add("platform_item_id = $%d", key.ProductID)
	f.platform(key)
	f.unlinked(key)
	return r.findOne(ctx, f.where(), f.args...)
}

// FindBySKU is not platform scoped: a shared SKU is how items are linked
// across platforms.
func (r *PGRepository) FindBySKU(ctx context.Context, key *dto.IdentityKey) (*model.InventoryItem, error) {
	f := newKeyFilter(key.TenantID)
	f.add("sku = $%d", key.SKU)
	f.unlinked(key)
	return r.findOne(ctx, f.where(), f.args...)
}

func (r *PGRepository) FindByName(ctx context.Context, tenantID, name string) (*model.InventoryItem, error) {
	return r.findOne(ctx, `tenant_id = $1 AND name = $2`, tenantID, name)
}

func (r *PGRepository) FindByID(ctx context.Context, tenantID, id string) (*model.InventoryItem, error) {
	return r.findOne(ctx, `tenant_id = $1 AND id = $2`, tenantID, id)
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ItemFilters) ([]model.InventoryItem, int, error) {
	var items []model.InventoryItem
	var count int

	conditions := []string{"tenant_id = :tenant_id"}
	args := map[string]interface{}{"tenant_id": f.TenantID}

	if f.SKU != "" {
		conditions = append(conditions, "sku = :sku")
		args["sku"] = f.SKU
	}
	if f.Platform != "" {
		conditions = append(conditions, "platform = :platform")
		args["platform"] = f.Platform
	}
	if f.SearchQuery != "" {
		conditions = append(conditions, "(name ILIKE :search OR sku ILIKE :search)")
		args["search"] = "%" + f.SearchQuery + "%"
	}
	if f.LowStock {
		conditions = append(conditions, "quantity <= reorder_threshold AND reorder_threshold > 0")
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM inventory_items"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + itemColumns + " FROM inventory_items" + whereClause + " ORDER BY updated_at DESC, id ASC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

const insertItemQuery = `
        INSERT INTO inventory_items (` + itemColumns + `)
        VALUES (
            :id, :tenant_id, :name, :sku, :platform, :platform_item_id, :platform_variant_id, :store_id,
            :quantity, :reorder_threshold, :category, :ai_label, :item_type, :created_at, :updated_at
        )
    `

const updateItemQuery = `
        UPDATE inventory_items SET
            name = :name,
            sku = :sku,
            platform = :platform,
            platform_item_id = :platform_item_id,
            platform_variant_id = :platform_variant_id,
            store_id = :store_id,
            quantity = :quantity,
            reorder_threshold = :reorder_threshold,
            category = :category,
            ai_label = :ai_label,
            item_type = :item_type,
            updated_at = :updated_at
        WHERE id = :id AND tenant_id = :tenant_id
    `

const insertHistoryQuery = `
        INSERT INTO inventory_history (
            id, tenant_id, item_id, item_name, sku,
            previous_quantity, new_quantity, quantity_change,
            change_type, source, created_at
        )
        VALUES (
            :id, :tenant_id, :item_id, :item_name, :sku,
            :previous_quantity, :new_quantity, :quantity_change,
            :change_type, :source, :created_at
        )
    `

func (r *PGRepository) CreateWithHistory(ctx context.Context, item *model.InventoryItem, event *model.HistoryEvent) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Insert item
	if _, err := tx.NamedExecContext(ctx, insertItemQuery, item); err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	// 2. Log opening stock
	if event != nil {
		if _, err := tx.NamedExecContext(ctx, insertHistoryQuery, event); err != nil {
			return fmt.Errorf("failed to record history: %w", err)
		}
	}

	return tx.Commit()
}

func (r *PGRepository) UpdateWithHistory(ctx context.Context, item *model.InventoryItem, event *model.HistoryEvent) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Update item
	res, err := tx.NamedExecContext(ctx, updateItemQuery, item)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("inventory item %s not found", item.ID)
	}

	// 2. Log movement
	if event != nil {
		if _, err := tx.NamedExecContext(ctx, insertHistoryQuery, event); err != nil {
			return fmt.Errorf("failed to record history: %w", err)
		}
	}

	return tx.Commit()
}
