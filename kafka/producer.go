package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"grin-gateway/models"
)

// ProducerAPI is the event-publishing surface the services depend on.
type ProducerAPI interface {
	SendPaymentEvent(evt models.PaymentEvent) error
	SendCartClear(evt models.CartClearEvent) error
	Close() error
}

type Producer struct {
	writer         *kafka.Writer
	paymentTopic   string
	cartClearTopic string
	logger         *zap.Logger
}

func NewProducer(brokers []string, paymentTopic, cartClearTopic string, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("Kafka producer initialized",
		zap.Strings("brokers", brokers),
		zap.String("payment_topic", paymentTopic),
		zap.String("cart_clear_topic", cartClearTopic),
	)
	return &Producer{writer: w, paymentTopic: paymentTopic, cartClearTopic: cartClearTopic, logger: logger}
}

func (p *Producer) SendPaymentEvent(evt models.PaymentEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: p.paymentTopic,
		Key:   []byte(evt.OrderID),
		Value: data,
	}
	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		p.logger.Error("Failed to publish payment event",
			zap.String("order_id", evt.OrderID), zap.String("type", evt.Type), zap.Error(err))
		return err
	}
	p.logger.Info("Payment event published",
		zap.String("order_id", evt.OrderID), zap.String("type", evt.Type))
	return nil
}

func (p *Producer) SendCartClear(evt models.CartClearEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: p.cartClearTopic,
		Key:   []byte(evt.OrderID),
		Value: data,
	}
	return p.writer.WriteMessages(context.Background(), msg)
}

func (p *Producer) Close() error {
	p.logger.Info("Closing Kafka producer")
	return p.writer.Close()
}
