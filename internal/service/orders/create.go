package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CreateOrderInput - запрос на оформление заказа из содержимого корзины.
type CreateOrderInput struct {
	CustomerID    int64
	Shipping      domain.Shipping
	PaymentMethod string
	Lines         []domain.LineItem
}

// CreateOrder собирает заказ атомарно: либо заказ со всеми позициями, событием
// timeline и сообщениями outbox, либо ничего.
//
// Порядок проверок: пустой список, неположительные количества, поля доставки и
// способ оплаты, затем товары под блокировкой (по возрастанию id) и покупатель,
// который должен быть активен. После коммита корзина очищается сразу; при
// неудаче это сделает outbox.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	started := time.Now()

	order, cartClearID, err := s.createOrder(ctx, in)
	if err != nil {
		s.metrics.RecordCreateFailure(string(domain.KindOf(err)))
		return domain.Order{}, err
	}
	s.metrics.RecordOrderCreated(time.Since(started))

	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"final":       domain.FormatMoney(order.Final),
		"rank":        order.RankAtOrder,
	}).Info("order created")

	s.clearCart(ctx, order, cartClearID)
	return order, nil
}

// createOrder возвращает заказ и id сообщения cart.clear_items.
func (s *Service) createOrder(ctx context.Context, in CreateOrderInput) (domain.Order, string, error) {
	lines, err := domain.CoalesceLines(in.Lines)
	if err != nil {
		return domain.Order{}, "", err
	}

	shipping := domain.Shipping{
		Name:    strings.TrimSpace(in.Shipping.Name),
		Phone:   strings.TrimSpace(in.Shipping.Phone),
		Address: strings.TrimSpace(in.Shipping.Address),
	}
	if !shipping.Complete() {
		return domain.Order{}, "", domain.ErrShippingRequired
	}
	paymentMethod := strings.TrimSpace(in.PaymentMethod)
	if paymentMethod == "" {
		return domain.Order{}, "", domain.ErrPaymentMethodRequired
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	var (
		created     domain.Order
		cartClearID string
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		products, err := s.catalog.ResolveForUpdate(ctx, ids)
		if err != nil {
			return fmt.Errorf("resolve products: %w", err)
		}
		byID := make(map[int64]domain.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}
		if len(byID) != len(ids) {
			missing := make([]int64, 0, len(ids)-len(byID))
			for _, id := range ids {
				if _, ok := byID[id]; !ok {
					missing = append(missing, id)
				}
			}
			return domain.NewProductsNotFoundError(missing)
		}

		customer, err := s.customers.Get(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if !customer.Active {
			return fmt.Errorf("%w: %d", domain.ErrCustomerInactive, customer.ID)
		}
		tier := s.tierFor(customer)

		pricing, err := domain.PriceLines(lines, byID, tier.BonusPercent)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		order := domain.Order{
			CustomerID:    customer.ID,
			Shipping:      shipping,
			RankAtOrder:   tier.Rank,
			BonusPercent:  tier.BonusPercent,
			Subtotal:      pricing.Subtotal,
			Discount:      pricing.Discount,
			Final:         pricing.Final,
			PaymentMethod: paymentMethod,
			Status:        domain.OrderStatusPending,
			Items:         pricing.Items,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return fmt.Errorf("order invariants violated: %v", errs)
		}

		created, err = s.orders.Create(ctx, order)
		if err != nil {
			return err
		}

		if err := s.appendTimeline(ctx, domain.TimelineEvent{
			OrderID:  created.ID,
			Type:     domain.TimelineOrderCreated,
			Reason:   string(domain.OrderStatusPending),
			Occurred: now,
		}); err != nil {
			return fmt.Errorf("append timeline: %w", err)
		}

		cartClear, err := s.enqueue(ctx, domain.AggregateOrder, created.ID, domain.EventCartClearItems, domain.CartClearPayload{
			OrderID:    created.ID,
			CustomerID: created.CustomerID,
			ProductIDs: created.ProductIDs(),
			OrderedAt:  now,
		})
		if err != nil {
			return fmt.Errorf("enqueue cart clearing: %w", err)
		}
		cartClearID = cartClear.ID
		if _, err := s.enqueue(ctx, domain.AggregateOrder, created.ID, domain.EventNotifyOrderCreated, domain.OrderCreatedNotice{
			OrderID:    created.ID,
			CustomerID: created.CustomerID,
			Email:      customer.Email,
			Final:      domain.FormatMoney(created.Final),
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("enqueue order notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, "", err
	}
	return created, cartClearID, nil
}

// tierFor берёт ранг покупателя до учёта текущего заказа. Если сохранённый ранг
// отсутствует в таблице (таблицу поменяли), ранг выводится из накоплений.
func (s *Service) tierFor(customer domain.Customer) domain.RankTier {
	if bonus, ok := s.ranks.BonusFor(customer.Rank); ok {
		return domain.RankTier{Rank: customer.Rank, BonusPercent: bonus}
	}
	return s.ranks.RankFor(customer.LifetimeSpend)
}

// clearCart очищает корзину сразу после коммита. При успехе сообщение
// cart.clear_items помечается sent, иначе его доставит outbox worker.
func (s *Service) clearCart(ctx context.Context, order domain.Order, cartClearID string) {
	if s.carts == nil {
		return
	}
	entry := s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
	})
	if err := s.carts.ClearOrdered(ctx, order.CustomerID, order.ProductIDs(), order.CreatedAt); err != nil {
		s.metrics.RecordCartClearFailure()
		entry.WithError(err).Warn("immediate cart clearing failed, outbox will retry")
		return
	}
	if err := s.outbox.MarkSent(ctx, cartClearID); err != nil {
		entry.WithError(err).Warn("failed to mark cart clearing as sent, outbox will repeat it")
	}
}
