package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Get возвращает любой заказ (административный доступ).
func (s *Service) Get(ctx context.Context, orderID int64) (domain.Order, error) {
	return s.orders.Get(ctx, orderID)
}

// GetForCustomer возвращает заказ, только если он принадлежит покупателю.
func (s *Service) GetForCustomer(ctx context.Context, customerID, orderID int64) (domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.CustomerID != customerID {
		return domain.Order{}, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, orderID)
	}
	return order, nil
}

// ListForCustomer возвращает заказы покупателя от новых к старым.
func (s *Service) ListForCustomer(ctx context.Context, customerID int64, limit int) ([]domain.Order, error) {
	return s.orders.ListByCustomer(ctx, customerID, normalizeLimit(limit))
}

// ListAll возвращает заказы всех покупателей с фильтром.
func (s *Service) ListAll(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, filter.Status)
	}
	filter.Limit = normalizeLimit(filter.Limit)
	return s.orders.ListAll(ctx, filter)
}

// Timeline возвращает историю заказа.
func (s *Service) Timeline(ctx context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.timeline.List(ctx, orderID)
}

// Revenue агрегирует выполненные заказы с временем выполнения в [from, to).
func (s *Service) Revenue(ctx context.Context, from, to time.Time) (domain.RevenueSummary, error) {
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return domain.RevenueSummary{}, fmt.Errorf("%w: from must be before to", domain.ErrInvalidPeriod)
	}
	return s.orders.Revenue(ctx, from, to)
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
