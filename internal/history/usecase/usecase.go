package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-inventory-sync/internal/history"
	"github.com/fekuna/omnipos-inventory-sync/internal/history/dto"
	"github.com/fekuna/omnipos-inventory-sync/internal/model"
	"github.com/fekuna/omnipos-inventory-sync/pkg/logger"
)

const maxListLimit = 1000

type historyUseCase struct {
	repo   history.Repository
	logger logger.ZapLogger
}

func NewHistoryUseCase(repo history.Repository, log logger.ZapLogger) history.UseCase {
	return &historyUseCase{
		repo:   repo,
		logger: log,
	}
}

func (uc *historyUseCase) ListSince(ctx context.Context, tenantID string, since time.Time, limit int, order dto.Order) ([]model.HistoryEvent, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if order != dto.OldestFirst {
		order = dto.NewestFirst
	}
	return uc.repo.List(ctx, &dto.HistoryFilters{
		TenantID: tenantID,
		Since:    since,
		Limit:    limit,
		Order:    order,
	})
}

func (uc *historyUseCase) TotalDecrement(ctx context.Context, tenantID string, since, until time.Time) (int64, error) {
	m, err := uc.StockMovement(ctx, window(tenantID, since, until))
	if err != nil {
		return 0, err
	}
	return m.Decrement, nil
}

func (uc *historyUseCase) TotalIncrement(ctx context.Context, tenantID string, since, until time.Time) (int64, error) {
	m, err := uc.StockMovement(ctx, window(tenantID, since, until))
	if err != nil {
		return 0, err
	}
	return m.Increment, nil
}

func (uc *historyUseCase) StockMovement(ctx context.Context, filters *dto.HistoryFilters) (*dto.Movement, error) {
	if filters.TenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	return uc.repo.SumMovement(ctx, filters)
}

func window(tenantID string, since, until time.Time) *dto.HistoryFilters {
	f := &dto.HistoryFilters{TenantID: tenantID, Since: since}
	if !until.IsZero() {
		f.Until = &until
	}
	return f
}
