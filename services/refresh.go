package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grin-gateway/apperrors"
	"grin-gateway/models"
	"grin-gateway/repository"
)

// RateRefreshService recomputes the displayed GRIN amount for an order from
// the current rate. The payment page polls this while open, so it is built to
// be called repeatedly; each call is last-write-wins on the stored amount.
type RateRefreshService struct {
	repo   repository.OrderRepository
	rates  RateProvider
	logger *zap.Logger
}

func NewRateRefreshService(repo repository.OrderRepository, rates RateProvider, logger *zap.Logger) *RateRefreshService {
	return &RateRefreshService{repo: repo, rates: rates, logger: logger}
}

// RefreshAmount recomputes and persists the GRIN amount for the order and
// returns it formatted to 8 decimal places. Unknown orders fail before any
// write happens.
func (s *RateRefreshService) RefreshAmount(ctx context.Context, orderID uuid.UUID) (string, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.Wrap(apperrors.ErrOrderNotFound, err)
		}
		return "", apperrors.Wrap(apperrors.ErrInternal, err)
	}

	rate, err := s.rates.GetRate(ctx)
	if err != nil {
		return "", err
	}
	if !rate.IsPositive() {
		return "", apperrors.Wrap(apperrors.ErrInvalidRate, fmt.Errorf("resolved rate %s", rate))
	}

	grinAmount := order.Total.Div(rate)

	if err := s.repo.SetMetaValue(ctx, order.ID, models.MetaGrinAmount, grinAmount.String()); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternal, err)
	}

	s.logger.Debug("GRIN amount refreshed",
		zap.String("order_id", order.ID.String()),
		zap.String("grin_amount", grinAmount.StringFixed(8)),
	)

	return grinAmount.StringFixed(8), nil
}
