package domain

import "time"

// Типы событий истории заказа.
const (
	TimelineOrderCreated   = "order.created"
	TimelineStatusChanged  = "order.status_changed"
	TimelineShippingEdited = "order.shipping_updated"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  int64
	Type     string
	Reason   string
	Occurred time.Time
}
