package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"grin-gateway/awsx"
)

// SQSReconcileConsumer lets admin tooling request an out-of-band
// reconciliation pass by dropping a message on a queue, instead of waiting for
// the next ticker run. Passes triggered here may overlap the scheduled loop;
// the reconciler is safe under that.
type SQSReconcileConsumer struct {
	consumer   *awsx.SQSConsumer
	reconciler *Reconciler
	logger     *zap.Logger
}

func NewSQSReconcileConsumer(consumer *awsx.SQSConsumer, reconciler *Reconciler, logger *zap.Logger) *SQSReconcileConsumer {
	return &SQSReconcileConsumer{consumer: consumer, reconciler: reconciler, logger: logger}
}

// Start begins polling the reconcile queue until the context is cancelled.
func (c *SQSReconcileConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting reconcile queue consumer")

	err := c.consumer.StartPolling(ctx, func(ctx context.Context, body string) error {
		return c.handleMessage(ctx, body)
	})
	if err != nil && err != context.Canceled {
		c.logger.Error("Reconcile queue polling error", zap.Error(err))
	}
}

func (c *SQSReconcileConsumer) handleMessage(ctx context.Context, body string) error {
	// Unwrap SNS envelope if present.
	var snsEnvelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &snsEnvelope); err == nil && snsEnvelope.Message != "" {
		body = snsEnvelope.Message
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		c.logger.Warn("Invalid reconcile request JSON, dropping", zap.String("payload", body))
		return nil // don't retry malformed messages
	}
	if req.Action != "reconcile" {
		c.logger.Warn("Unknown reconcile queue action, dropping", zap.String("action", req.Action))
		return nil
	}

	c.logger.Info("On-demand reconciliation pass requested")
	c.reconciler.RunPass(ctx, time.Now())
	return nil
}
