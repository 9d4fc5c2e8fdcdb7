package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CartClearer убирает заказанные товары из корзины; повторный вызов безопасен.
type CartClearer interface {
	ClearOrdered(ctx context.Context, customerID int64, productIDs []int64, orderedAt time.Time) error
}

// Dispatcher - получатель outbox worker: маршрутизирует сообщение по типу события.
// cart.clear_items выполняется локально, notification.* и order.* уходят во внешний канал.
type Dispatcher struct {
	carts    CartClearer
	external domain.OutboxPublisher
	logger   *log.Entry
}

// NewDispatcher собирает маршрутизатор. external == nil означает логирование вместо доставки.
func NewDispatcher(carts CartClearer, external domain.OutboxPublisher, logger *log.Entry) *Dispatcher {
	if logger == nil {
		logger = log.WithField("component", "outbox-dispatcher")
	}
	if external == nil {
		external = NewLogNotifier(logger)
	}
	return &Dispatcher{carts: carts, external: external, logger: logger}
}

func (d *Dispatcher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	switch {
	case msg.EventType == domain.EventCartClearItems:
		return d.clearCart(ctx, msg)
	case IsExternal(msg.EventType):
		return d.external.Publish(ctx, msg)
	default:
		return fmt.Errorf("%w: no route for event type %q", domain.ErrOutboxPublish, msg.EventType)
	}
}

// IsExternal сообщает, доставляется ли событие во внешний канал.
func IsExternal(eventType string) bool {
	return strings.HasPrefix(eventType, "notification.") || strings.HasPrefix(eventType, "order.")
}

func (d *Dispatcher) clearCart(ctx context.Context, msg domain.OutboxMessage) error {
	if d.carts == nil {
		return fmt.Errorf("%w: cart clearer is not configured", domain.ErrOutboxPublish)
	}

	var payload domain.CartClearPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	// сообщения без ordered_at ставятся в той же транзакции, что и заказ
	orderedAt := payload.OrderedAt
	if orderedAt.IsZero() {
		orderedAt = msg.CreatedAt
	}
	if err := d.carts.ClearOrdered(ctx, payload.CustomerID, payload.ProductIDs, orderedAt); err != nil {
		return fmt.Errorf("clear cart for order %d: %w", payload.OrderID, err)
	}
	return nil
}

var _ domain.OutboxPublisher = (*Dispatcher)(nil)
