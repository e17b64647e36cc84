package checkout

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	awspkg "storefront-service/aws"
	"storefront-service/logger"
	"storefront-service/models"
)

const EventOrderCreated = "order.created"

// OrderCreatedEvent is published after an order is persisted.
type OrderCreatedEvent struct {
	EventType     string               `json:"event_type"`
	OrderID       string               `json:"order_id"`
	UserEmail     string               `json:"user_email"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Status        models.OrderStatus   `json:"status"`
	Total         float64              `json:"total"`
	Items         []models.OrderItem   `json:"items"`
	CreatedAt     time.Time            `json:"created_at"`
}

// EventPublisher sends order events to SNS. Publishing is best-effort.
type EventPublisher struct {
	sns      awspkg.SNSPublisher
	topicArn string
}

// NewEventPublisher returns nil when publishing is not configured.
func NewEventPublisher(sns awspkg.SNSPublisher, topicArn string) *EventPublisher {
	if sns == nil || topicArn == "" {
		return nil
	}
	return &EventPublisher{sns: sns, topicArn: topicArn}
}

func (p *EventPublisher) OrderCreated(ctx context.Context, orderID string, order models.Order) {
	if p == nil {
		return
	}
	event := OrderCreatedEvent{
		EventType:     EventOrderCreated,
		OrderID:       orderID,
		UserEmail:     order.UserEmail,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		Total:         order.Total,
		Items:         order.Products,
		CreatedAt:     order.CreatedAt,
	}
	body, err := json.Marshal(event)
	if err != nil {
		logger.Error(ctx, "failed to encode order event", err)
		return
	}
	if err := p.sns.Publish(ctx, p.topicArn, body, map[string]string{"event_type": EventOrderCreated}); err != nil {
		logger.Warn(ctx, "order event not published", zap.String("order_id", orderID), zap.Error(err))
	}
}
