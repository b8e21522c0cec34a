package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/auth"
	"github.com/fekuna/omnipos-inventory-sync/internal/history"
	historydto "github.com/fekuna/omnipos-inventory-sync/internal/history/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/inventory"
	inventorydto "github.com/fekuna/omnipos-inventory-sync/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile"
	"github.com/fekuna/omnipos-inventory-sync/internal/reconcile/dto"
	"github.com/fekuna/omnipos-inventory-sync/pkg/logger"
	"github.com/fekuna/omnipos-inventory-sync/pkg/validator"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type SyncHandler struct {
	uc        reconcile.UseCase
	history   history.UseCase
	inventory inventory.UseCase
	logger    logger.ZapLogger
}

func NewSyncHandler(uc reconcile.UseCase, hist history.UseCase, inv inventory.UseCase, log logger.ZapLogger) *SyncHandler {
	return &SyncHandler{
		uc:        uc,
		history:   hist,
		inventory: inv,
		logger:    log,
	}
}

type reconcileRequest struct {
	Source           string         `json:"source" validate:"required,notblank"`
	Platform         string         `json:"platform"`
	EnableEnrichment bool           `json:"enable_enrichment"`
	Items            []dto.SyncItem `json:"items" validate:"required,min=1"`
}

type reconcileResponse struct {
	*dto.SyncBatchResult
	Success bool   `json:"success"`
	Summary string `json:"summary"`
}

func (h *SyncHandler) ReconcileItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var in reconcileRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	res, err := h.uc.Reconcile(ctx, &dto.ReconcileInput{
		TenantID: tenantID,
		Source:   in.Source,
		Items:    in.Items,
		Options: dto.Options{
			EnableEnrichment: in.EnableEnrichment,
			Platform:         in.Platform,
		},
	})
	if err != nil {
		return nil, h.toStatus("ReconcileItems", err)
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}

	return encode(reconcileResponse{SyncBatchResult: res, Success: res.Success(), Summary: res.Summary()})
}

type listHistoryRequest struct {
	Since time.Time `json:"since"`
	Limit int       `json:"limit" validate:"gte=0,lte=1000"`
	Order string    `json:"order" validate:"omitempty,oneof=asc desc"`
}

func (h *SyncHandler) ListHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var in listHistoryRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.Since.IsZero() {
		return nil, status.Error(codes.InvalidArgument, "since is required")
	}

	events, err := h.history.ListSince(ctx, tenantID, in.Since, in.Limit, historydto.Order(in.Order))
	if err != nil {
		return nil, h.toStatus("ListHistory", err)
	}
	if events == nil {
		events = []model.HistoryEvent{}
	}
	return encode(map[string]interface{}{"events": events})
}

type movementRequest struct {
	Since      time.Time  `json:"since"`
	Until      *time.Time `json:"until"`
	ItemID     string     `json:"item_id"`
	Source     string     `json:"source"`
	ChangeType string     `json:"change_type" validate:"omitempty,oneof=sync webhook manual thrive_validation"`
}

func (h *SyncHandler) StockMovement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var in movementRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.Since.IsZero() {
		return nil, status.Error(codes.InvalidArgument, "since is required")
	}

	m, err := h.history.StockMovement(ctx, &historydto.HistoryFilters{
		TenantID:   tenantID,
		ItemID:     in.ItemID,
		Source:     in.Source,
		ChangeType: in.ChangeType,
		Since:      in.Since,
		Until:      in.Until,
	})
	if err != nil {
		return nil, h.toStatus("StockMovement", err)
	}
	return encode(map[string]interface{}{
		"decrement": m.Decrement,
		"increment": m.Increment,
		"net":       m.Net(),
		"events":    m.Events,
	})
}

type getItemRequest struct {
	ID string `json:"id" validate:"required,notblank"`
}

func (h *SyncHandler) GetItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var in getItemRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	item, err := h.inventory.GetItem(ctx, tenantID, in.ID)
	if err != nil {
		return nil, h.toStatus("GetItem", err)
	}
	if item == nil {
		return nil, status.Error(codes.NotFound, "item not found")
	}
	return encode(item)
}

type listItemsRequest struct {
	SKU      string `json:"sku"`
	Platform string `json:"platform"`
	Query    string `json:"query"`
	Page     int    `json:"page" validate:"gte=0"`
	PageSize int    `json:"page_size" validate:"gte=0,lte=100"`
}

func (h *SyncHandler) ListItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var in listItemsRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	items, total, err := h.inventory.ListItems(ctx, &inventorydto.ItemFilters{
		TenantID:    tenantID,
		SKU:         in.SKU,
		Platform:    in.Platform,
		SearchQuery: in.Query,
		Page:        in.Page,
		PageSize:    in.PageSize,
	})
	if err != nil {
		return nil, h.toStatus("ListItems", err)
	}
	return encodeItems(items, total)
}

func (h *SyncHandler) ListLowStock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var in listItemsRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}

	items, total, err := h.inventory.ListLowStock(ctx, tenantID, in.Page, in.PageSize)
	if err != nil {
		return nil, h.toStatus("ListLowStock", err)
	}
	return encodeItems(items, total)
}

func (h *SyncHandler) SearchItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var in listItemsRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, status.Error(codes.InvalidArgument, "query is required")
	}

	items, total, err := h.inventory.SearchItems(ctx, tenantID, in.Query, in.Page, in.PageSize)
	if err != nil {
		return nil, h.toStatus("SearchItems", err)
	}
	return encodeItems(items, total)
}

func requireTenant(ctx context.Context) (string, error) {
	tenantID := auth.GetTenantID(ctx)
	if tenantID == "" {
		return "", status.Error(codes.Unauthenticated, "missing "+auth.TenantHeader)
	}
	return tenantID, nil
}

func (h *SyncHandler) toStatus(method string, err error) error {
	switch {
	case errors.Is(err, reconcile.ErrTenantRequired):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, reconcile.ErrSourceRequired), errors.Is(err, reconcile.ErrNoItems):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		h.logger.Error("Sync service call failed", zap.String("method", method), zap.Error(err))
		return status.Error(codes.Internal, err.Error())
	}
}

func decode(req *structpb.Struct, out interface{}) error {
	b, err := protojson.Marshal(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := json.Unmarshal(b, out); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := validator.Validate(out); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func encode(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func encodeItems(items []model.InventoryItem, total int) (*structpb.Struct, error) {
	if items == nil {
		items = []model.InventoryItem{}
	}
	return encode(map[string]interface{}{"items": items, "total": total})
}
