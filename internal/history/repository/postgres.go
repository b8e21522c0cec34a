package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/history/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) ExistsSince(ctx context.Context, tenantID, itemID string, newQuantity int64, source string, since time.Time) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS (
            SELECT 1 FROM inventory_history
            WHERE tenant_id = $1 AND item_id = $2 AND new_quantity = $3 AND source = $4 AND created_at >= $5
        )
    `
	err := r.DB.GetContext(ctx, &exists, query, tenantID, itemID, newQuantity, source, since)
	return exists, err
}

func (r *PGRepository) List(ctx context.Context, f *dto.HistoryFilters) ([]model.HistoryEvent, error) {
	where, args := buildWhere(f)

	order := "DESC"
	if f.Order == dto.OldestFirst {
		order = "ASC"
	}
	query := `
        SELECT id, tenant_id, item_id, item_name, sku,
               previous_quantity, new_quantity, quantity_change,
               change_type, source, created_at
        FROM inventory_history` + where + ` ORDER BY created_at ` + order + `, id ` + order
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var events []model.HistoryEvent
	err := r.DB.SelectContext(ctx, &events, query, args...)
	return events, err
}

func (r *PGRepository) SumMovement(ctx context.Context, f *dto.HistoryFilters) (*dto.Movement, error) {
	where, args := buildWhere(f)
	query := `
        SELECT
            COALESCE(SUM(CASE WHEN quantity_change < 0 THEN -quantity_change ELSE 0 END), 0) AS decrement,
            COALESCE(SUM(CASE WHEN quantity_change > 0 THEN quantity_change ELSE 0 END), 0) AS increment,
            COUNT(*) AS events
        FROM inventory_history` + where

	var m dto.Movement
	if err := r.DB.GetContext(ctx, &m, query, args...); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PGRepository) RecordImport(ctx context.Context, rec *model.ImportRecord) error {
	query := `
        INSERT INTO imports (
            id, tenant_id, source, status, created_count, updated_count, failed_count, created_at
        )
        VALUES (
            :id, :tenant_id, :source, :status, :created_count, :updated_count, :failed_count, :created_at
        )
    `
	_, err := r.DB.NamedExecContext(ctx, query, rec)
	return err
}

func buildWhere(f *dto.HistoryFilters) (string, []interface{}) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{f.TenantID}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if f.Until != nil {
		add("created_at < $%d", *f.Until)
	}
	if f.ItemID != "" {
		add("item_id = $%d", f.ItemID)
	}
	if f.Source != "" {
		add("source = $%d", f.Source)
	}
	if f.ChangeType != "" {
		add("change_type = $%d", f.ChangeType)
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
