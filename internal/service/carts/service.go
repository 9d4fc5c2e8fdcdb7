package carts

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service управляет позициями корзины покупателя.
type Service struct {
	tx        domain.TxManager
	carts     domain.CartRepository
	catalog   domain.CatalogRepository
	customers domain.CustomerRepository
	clock     clock.Clock
	logger    *log.Entry
}

// NewService собирает сервис корзины.
func NewService(
	tx domain.TxManager,
	carts domain.CartRepository,
	catalog domain.CatalogRepository,
	customers domain.CustomerRepository,
	clk clock.Clock,
	logger *log.Entry,
) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = log.New().WithField("component", "cart-service")
	}
	return &Service{tx: tx, carts: carts, catalog: catalog, customers: customers, clock: clk, logger: logger}
}

// List возвращает позиции корзины; отсутствие корзины - пустой список.
func (s *Service) List(ctx context.Context, customerID int64) ([]domain.CartItem, error) {
	return s.carts.ListItems(ctx, customerID)
}

// AddItem добавляет товар в корзину или увеличивает его количество одним upsert.
// Покупатель должен быть активен, товар - существовать и быть в наличии.
func (s *Service) AddItem(ctx context.Context, customerID, productID int64, quantity int32) (domain.CartItem, error) {
	if quantity <= 0 {
		return domain.CartItem{}, domain.ErrInvalidQuantity
	}

	var item domain.CartItem
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		customer, err := s.customers.Get(ctx, customerID)
		if err != nil {
			return err
		}
		if !customer.Active {
			return fmt.Errorf("%w: %d", domain.ErrCustomerInactive, customerID)
		}
		product, err := s.catalog.Get(ctx, productID)
		if err != nil {
			return err
		}
		if !product.InStock {
			return domain.ErrProductOutOfStock
		}
		item, err = s.carts.UpsertItem(ctx, customerID, productID, quantity, s.clock.Now())
		return err
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	return item, nil
}

// SetQuantity заменяет количество существующей позиции.
func (s *Service) SetQuantity(ctx context.Context, customerID, productID int64, quantity int32) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return s.carts.SetQuantity(ctx, customerID, productID, quantity, s.clock.Now())
}

// RemoveItem удаляет позицию из корзины.
func (s *Service) RemoveItem(ctx context.Context, customerID, productID int64) error {
	return s.carts.RemoveItem(ctx, customerID, productID)
}

// ClearOrdered удаляет из корзины заказанные товары, которые не менялись после
// orderedAt: позиция, добавленная повторно после оформления, остаётся. Идемпотентна:
// отсутствие корзины или части позиций ошибкой не считается.
func (s *Service) ClearOrdered(ctx context.Context, customerID int64, productIDs []int64, orderedAt time.Time) error {
	if len(productIDs) == 0 {
		return nil
	}
	removed, err := s.carts.ClearItems(ctx, customerID, productIDs, orderedAt)
	if err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{
		"customer_id": customerID,
		"requested":   len(productIDs),
		"removed":     removed,
	}).Debug("ordered items cleared from cart")
	return nil
}
