package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grin-gateway/awsx"
	"grin-gateway/kafka"
	"grin-gateway/models"
	"grin-gateway/repository"
)

const completionNote = "GRIN payment verified and completed."

// Reconciler owns the recurring pending-payment scan. Each pass lists pending
// GRIN orders inside the lookback window, asks the verification oracle about
// each one and completes matched orders exactly once. A pass never fails as a
// whole: per-order problems are logged and the order is retried on the next
// scheduled pass. Overlapping passes are safe because completion goes through
// the repository's compare-and-set update.
type Reconciler struct {
	repo        repository.OrderRepository
	verifier    PaymentVerifier
	producer    kafka.ProducerAPI
	sns         awsx.SNSPublisher
	snsTopicArn string
	metrics     *awsx.MetricsClient
	lookback    time.Duration
	interval    time.Duration
	currency    string
	logger      *zap.Logger
}

func NewReconciler(repo repository.OrderRepository, verifier PaymentVerifier, producer kafka.ProducerAPI, sns awsx.SNSPublisher, snsTopicArn string, metrics *awsx.MetricsClient, lookback, interval time.Duration, currency string, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		repo:        repo,
		verifier:    verifier,
		producer:    producer,
		sns:         sns,
		snsTopicArn: snsTopicArn,
		metrics:     metrics,
		lookback:    lookback,
		interval:    interval,
		currency:    currency,
		logger:      logger,
	}
}

// Start runs reconciliation passes on the configured interval until the
// context is cancelled. The external scheduler contract is at-least-once, so
// an SQS-triggered pass may run concurrently with this loop; that is fine.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Reconciliation loop started",
		zap.Duration("interval", r.interval), zap.Duration("lookback", r.lookback))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciliation loop stopped")
			return
		case <-ticker.C:
			r.RunPass(ctx, time.Now())
		}
	}
}

// RunPass executes one reconciliation pass as of now.
func (r *Reconciler) RunPass(ctx context.Context, now time.Time) {
	if r.verifier == nil {
		// Without an oracle nothing can ever verify; orders stay pending
		// until the stale window excludes them or an admin steps in.
		r.logger.Warn("No verification oracle configured, skipping reconciliation pass")
		return
	}

	start := time.Now()
	since := now.Add(-r.lookback)

	orders, err := r.repo.FindPendingGrinOrders(ctx, since, now)
	if err != nil {
		r.logger.Error("Failed to list pending GRIN orders", zap.Error(err))
		return
	}

	r.logger.Info("Reconciliation pass started",
		zap.Int("pending_orders", len(orders)), zap.Time("window_start", since))

	completed := 0
	for _, order := range orders {
		if r.reconcileOrder(ctx, order) {
			completed++
		}
	}

	r.logger.Info("Reconciliation pass finished",
		zap.Int("pending_orders", len(orders)),
		zap.Int("completed", completed),
		zap.Duration("elapsed", time.Since(start)),
	)

	if r.metrics != nil {
		go func() {
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = r.metrics.RecordCount(mctx, awsx.MetricReconcilePasses, nil)
			_ = r.metrics.RecordLatency(mctx, awsx.MetricReconcileLatency, time.Since(start), nil)
		}()
	}
}

// reconcileOrder handles a single candidate and reports whether it completed
// the order. Failures never propagate; the next pass retries naturally.
func (r *Reconciler) reconcileOrder(ctx context.Context, order models.Order) bool {
	log := r.logger.With(zap.String("order_id", order.ID.String()))

	meta, err := r.repo.GetMeta(ctx, order.ID)
	if err != nil {
		log.Warn("Failed to read order metadata", zap.Error(err))
		return false
	}

	reference := meta[models.MetaPaymentReference]
	amountStr := meta[models.MetaGrinAmount]
	if reference == "" || amountStr == "" {
		log.Warn("Pending GRIN order is missing payment metadata, skipping",
			zap.Bool("has_reference", reference != ""),
			zap.Bool("has_amount", amountStr != ""),
		)
		return false
	}

	expectedAmount, err := decimal.NewFromString(amountStr)
	if err != nil {
		log.Warn("Pending GRIN order has malformed amount metadata, skipping",
			zap.String("grin_amount", amountStr), zap.Error(err))
		return false
	}

	verified, err := r.verifier.VerifyPayment(ctx, reference, expectedAmount)
	if err != nil {
		log.Warn("Verification oracle call failed, will retry next pass", zap.Error(err))
		if r.metrics != nil {
			_ = r.metrics.RecordCount(ctx, awsx.MetricOracleErrors, nil)
		}
		return false
	}
	if !verified {
		return false
	}

	didComplete, err := r.repo.CompleteOrder(ctx, order.ID, completionNote)
	if err != nil {
		log.Error("Failed to complete verified order", zap.Error(err))
		return false
	}
	if !didComplete {
		// Another pass got there first; already-completed is success.
		log.Info("Order already completed, skipping")
		return false
	}

	log.Info("GRIN payment verified and order completed",
		zap.String("payment_reference", reference),
		zap.String("grin_amount", expectedAmount.StringFixed(8)),
	)

	if r.metrics != nil {
		_ = r.metrics.RecordCount(ctx, awsx.MetricPaymentsCompleted, nil)
	}

	r.publishCompletion(ctx, order, reference, expectedAmount)
	return true
}

// publishCompletion notifies the storefront that the payment settled. Kafka is
// the primary channel; SNS is a best-effort mirror.
func (r *Reconciler) publishCompletion(ctx context.Context, order models.Order, reference string, amount decimal.Decimal) {
	evt := models.PaymentEvent{
		Type:             "grin_payment_completed",
		OrderID:          order.ID.String(),
		PaymentReference: reference,
		GrinAmount:       amount.StringFixed(8),
		Currency:         r.currency,
		Timestamp:        time.Now().UTC(),
	}

	if r.producer != nil {
		if err := r.producer.SendPaymentEvent(evt); err != nil {
			r.logger.Warn("Failed to publish payment completion event",
				zap.String("order_id", evt.OrderID), zap.Error(err))
		}
	}

	if r.sns != nil && r.snsTopicArn != "" {
		payload, _ := json.Marshal(evt)
		if err := r.sns.Publish(ctx, r.snsTopicArn, payload); err != nil {
			r.logger.Warn("SNS publish failed for payment completion event",
				zap.String("order_id", evt.OrderID), zap.Error(err))
		}
	}
}
