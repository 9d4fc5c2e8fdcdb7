package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CartClearPayload - полезная нагрузка cart.clear_items. Позиции, изменённые
// после OrderedAt, не удаляются.
type CartClearPayload struct {
	OrderID    int64     `json:"order_id"`
	CustomerID int64     `json:"customer_id"`
	ProductIDs []int64   `json:"product_ids"`
	OrderedAt  time.Time `json:"ordered_at"`
}

// OrderCreatedNotice - уведомление покупателю об оформленном заказе.
type OrderCreatedNotice struct {
	OrderID    int64     `json:"order_id"`
	CustomerID int64     `json:"customer_id"`
	Email      string    `json:"email"`
	Final      string    `json:"final_amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// AccountLockedNotice - уведомление о блокировке аккаунта.
type AccountLockedNotice struct {
	CustomerID int64     `json:"customer_id"`
	Email      string    `json:"email"`
	LockedAt   time.Time `json:"locked_at"`
}

// StatusChangedPayload - событие смены статуса заказа.
type StatusChangedPayload struct {
	OrderID    int64       `json:"order_id"`
	CustomerID int64       `json:"customer_id"`
	From       OrderStatus `json:"from"`
	To         OrderStatus `json:"to"`
	Occurred   time.Time   `json:"occurred_at"`
}

// NewOutboxMessage сериализует payload в JSON и заполняет заголовок сообщения.
// ID присваивает репозиторий.
func NewOutboxMessage(aggregateType string, aggregateID int64, eventType string, payload any, now time.Time) (OutboxMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   strconv.FormatInt(aggregateID, 10),
		EventType:     eventType,
		Payload:       data,
		CreatedAt:     now,
	}, nil
}
