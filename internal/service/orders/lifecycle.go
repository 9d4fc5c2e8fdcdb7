package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Transition переводит заказ в target в одной транзакции со строкой заказа под блокировкой.
// Ошибки в порядке проверки: ErrOrderNotFound, ErrInvalidStatus, ErrIllegalTransition.
// Переход в fulfilled начисляет итоговую сумму покупателю, пересчитывает ранг
// и проставляет время выполнения. Второй параллельный fulfilled увидит уже
// обновлённый статус и получит ErrIllegalTransition.
func (s *Service) Transition(ctx context.Context, orderID int64, target string) (domain.Order, error) {
	var (
		updated domain.Order
		from    domain.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		to, err := domain.ParseOrderStatus(target)
		if err != nil {
			return err
		}
		if err := order.Status.CheckTransition(to); err != nil {
			return err
		}

		now := s.clock.Now()
		var completedAt *time.Time
		if to == domain.OrderStatusFulfilled {
			spend, rank, err := s.accrual.ApplyFulfillment(ctx, order.CustomerID, order.Final)
			if err != nil {
				return fmt.Errorf("apply fulfillment: %w", err)
			}
			s.logger.WithFields(log.Fields{
				"order_id":       order.ID,
				"customer_id":    order.CustomerID,
				"lifetime_spend": domain.FormatMoney(spend),
				"rank":           rank,
			}).Info("fulfillment accrued")
			completedAt = &now
		}

		if err := s.orders.UpdateStatus(ctx, order.ID, to, completedAt, now); err != nil {
			return err
		}

		if err := s.appendTimeline(ctx, domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelineStatusChanged,
			Reason:   fmt.Sprintf("%s -> %s", from, to),
			Occurred: now,
		}); err != nil {
			return fmt.Errorf("append timeline: %w", err)
		}
		if _, err := s.enqueue(ctx, domain.AggregateOrder, order.ID, domain.EventOrderStatusChanged, domain.StatusChangedPayload{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			From:       from,
			To:         to,
			Occurred:   now,
		}); err != nil {
			return fmt.Errorf("enqueue status change: %w", err)
		}

		order.Status = to
		order.UpdatedAt = now
		if completedAt != nil {
			order.CompletedAt = completedAt
		}
		updated = order
		return nil
	})
	if err != nil {
		s.metrics.RecordTransitionFailure(string(domain.KindOf(err)))
		return domain.Order{}, err
	}

	s.metrics.RecordTransition(string(from), string(updated.Status))
	if updated.Status == domain.OrderStatusFulfilled {
		s.metrics.RecordFulfilledRevenue(updated.Final.InexactFloat64())
	}
	s.logger.WithFields(log.Fields{
		"order_id": updated.ID,
		"from":     from,
		"to":       updated.Status,
	}).Info("order status changed")
	return updated, nil
}

// ShippingUpdate - частичное изменение полей доставки; nil означает «не менять».
type ShippingUpdate struct {
	Name    *string
	Phone   *string
	Address *string
}

func (u ShippingUpdate) empty() bool {
	return u.Name == nil && u.Phone == nil && u.Address == nil
}

func (u ShippingUpdate) apply(current domain.Shipping) (domain.Shipping, error) {
	next := current
	for _, field := range []struct {
		value *string
		dst   *string
	}{
		{u.Name, &next.Name},
		{u.Phone, &next.Phone},
		{u.Address, &next.Address},
	} {
		if field.value == nil {
			continue
		}
		v := strings.TrimSpace(*field.value)
		if v == "" {
			return domain.Shipping{}, domain.ErrShippingRequired
		}
		*field.dst = v
	}
	return next, nil
}

// UpdateShipping меняет поля доставки заказа покупателя, пока заказ в pending.
func (s *Service) UpdateShipping(ctx context.Context, customerID, orderID int64, update ShippingUpdate) (domain.Order, error) {
	if update.empty() {
		return domain.Order{}, domain.ErrNothingToUpdate
	}

	var updated domain.Order
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.lockOwned(ctx, customerID, orderID)
		if err != nil {
			return err
		}
		if !order.Pending() {
			return fmt.Errorf("%w: status %s", domain.ErrOrderLocked, order.Status)
		}

		shipping, err := update.apply(order.Shipping)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := s.orders.UpdateShipping(ctx, order.ID, shipping, now); err != nil {
			return err
		}
		if err := s.appendTimeline(ctx, domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     domain.TimelineShippingEdited,
			Occurred: now,
		}); err != nil {
			return fmt.Errorf("append timeline: %w", err)
		}

		order.Shipping = shipping
		order.UpdatedAt = now
		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// Delete удаляет заказ покупателя, пока он в pending.
func (s *Service) Delete(ctx context.Context, customerID, orderID int64) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.lockOwned(ctx, customerID, orderID)
		if err != nil {
			return err
		}
		if !order.Pending() {
			return fmt.Errorf("%w: status %s", domain.ErrOrderLocked, order.Status)
		}
		return s.orders.Delete(ctx, order.ID)
	})
	if err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{"order_id": orderID, "customer_id": customerID}).Info("order deleted")
	return nil
}

// lockOwned блокирует заказ; чужой заказ неотличим от отсутствующего.
func (s *Service) lockOwned(ctx context.Context, customerID, orderID int64) (domain.Order, error) {
	order, err := s.orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.CustomerID != customerID {
		return domain.Order{}, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, orderID)
	}
	return order, nil
}
