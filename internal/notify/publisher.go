package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

// Publisher emits order/payment notification events for the mail sender to
// consume. Delivery is best-effort: failures are logged and swallowed, never
// retried, and never fail the payment result already returned to the user.
type Publisher struct {
	writer *kafka.Writer
	log    *slog.Logger
}

func NewPublisher(log *slog.Logger, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-notifications",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) OrderConfirmed(ctx context.Context, order *domain.Order) {
	p.publish(ctx, "order-confirmation", order.Code, map[string]interface{}{
		"order_code": order.Code,
		"email":      order.Email,
		"total":      order.Total,
		"items":      order.Items,
		"created_at": order.CreatedAt,
	})
}

func (p *Publisher) PaymentFailed(ctx context.Context, order *domain.Order, payment *domain.Payment) {
	p.publish(ctx, "payment-failed", order.Code, map[string]interface{}{
		"order_code":  order.Code,
		"email":       order.Email,
		"total":       order.Total,
		"return_code": payment.ReturnCode,
		"created_at":  payment.CreatedAt,
	})
}

func (p *Publisher) publish(ctx context.Context, eventType, orderCode string, payload map[string]interface{}) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("failed to marshal notification payload", "event_type", eventType, "order_code", orderCode, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(orderCode),
		Value: payloadJSON,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}

	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.log.Error("failed to publish notification", "event_type", eventType, "order_code", orderCode, "error", err)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
