package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grin-gateway/apperrors"
	"grin-gateway/awsx"
	"grin-gateway/kafka"
	"grin-gateway/models"
	"grin-gateway/repository"
)

// RateProvider is the rate-resolution port CheckoutService and friends use.
type RateProvider interface {
	GetRate(ctx context.Context) (decimal.Decimal, error)
}

// CheckoutResult is what the storefront's checkout handler gets back.
type CheckoutResult struct {
	Result   string `json:"result"` // "success"
	Redirect string `json:"redirect"`
}

const pendingReason = "Awaiting GRIN payment"

// CheckoutService computes the GRIN amount for an order and moves it into the
// pending-payment state.
type CheckoutService struct {
	repo          repository.OrderRepository
	rates         RateProvider
	producer      kafka.ProducerAPI
	metrics       *awsx.MetricsClient
	returnURLBase string
	logger        *zap.Logger
	now           func() time.Time
}

func NewCheckoutService(repo repository.OrderRepository, rates RateProvider, producer kafka.ProducerAPI, metrics *awsx.MetricsClient, returnURLBase string, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		repo:          repo,
		rates:         rates,
		producer:      producer,
		metrics:       metrics,
		returnURLBase: returnURLBase,
		logger:        logger,
		now:           time.Now,
	}
}

// InitiateCheckout runs the checkout flow for an order: derive the payment
// reference, resolve the rate, persist reference and amount together, mark the
// order pending and signal the cart to clear. Any failure surfaces to the
// caller; there are no retries here.
func (s *CheckoutService) InitiateCheckout(ctx context.Context, orderID uuid.UUID) (*CheckoutResult, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrOrderNotFound, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	reference := GeneratePaymentReference(order.ID, s.now())

	rate, err := s.rates.GetRate(ctx)
	if err != nil {
		return nil, err
	}
	if !rate.IsPositive() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidRate, fmt.Errorf("resolved rate %s", rate))
	}

	grinAmount := order.Total.Div(rate)

	if err := s.repo.SetPaymentMeta(ctx, order.ID, reference, grinAmount.String()); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	if err := s.repo.MarkPending(ctx, order.ID, pendingReason); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	// Cart clear is fire-and-forget; the checkout has already succeeded.
	if s.producer != nil {
		evt := models.CartClearEvent{
			OrderID:   order.ID.String(),
			UserID:    order.UserID.String(),
			Timestamp: s.now().UTC(),
		}
		if err := s.producer.SendCartClear(evt); err != nil {
			s.logger.Warn("Failed to publish cart clear event",
				zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}

	if s.metrics != nil {
		go func() {
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.metrics.RecordCount(mctx, awsx.MetricCheckoutsInitiated, nil)
		}()
	}

	s.logger.Info("GRIN checkout initiated",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_reference", reference),
		zap.String("grin_amount", grinAmount.StringFixed(8)),
	)

	return &CheckoutResult{
		Result:   "success",
		Redirect: fmt.Sprintf("%s/%s", s.returnURLBase, order.ID),
	}, nil
}
