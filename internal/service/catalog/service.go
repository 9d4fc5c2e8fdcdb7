package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service - запись в каталог: регистрация товара, цена, наличие.
// Изменение цены берёт ту же блокировку строки, что и оформление заказа,
// поэтому ждёт завершения оформлений, читающих этот товар.
type Service struct {
	tx      domain.TxManager
	catalog domain.CatalogRepository
	clock   clock.Clock
	logger  *log.Entry
}

// NewService собирает сервис каталога.
func NewService(tx domain.TxManager, catalog domain.CatalogRepository, clk clock.Clock, logger *log.Entry) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = log.New().WithField("component", "catalog-service")
	}
	return &Service{tx: tx, catalog: catalog, clock: clk, logger: logger}
}

// CreateProductInput - данные нового товара.
type CreateProductInput struct {
	Name    string
	Price   decimal.Decimal
	InStock bool
}

// CreateProduct регистрирует товар.
func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Product{}, domain.ErrNameRequired
	}
	if in.Price.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrInvalidPrice, in.Price)
	}

	return s.catalog.Create(ctx, domain.Product{
		Name:      name,
		Price:     domain.RoundMoney(in.Price),
		InStock:   in.InStock,
		UpdatedAt: s.clock.Now(),
	})
}

// Get возвращает товар.
func (s *Service) Get(ctx context.Context, id int64) (domain.Product, error) {
	return s.catalog.Get(ctx, id)
}

// UpdatePrice меняет цену под блокировкой строки товара.
func (s *Service) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) (domain.Product, error) {
	if price.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrInvalidPrice, price)
	}
	price = domain.RoundMoney(price)

	var updated domain.Product
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		product, err := s.catalog.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := s.catalog.UpdatePrice(ctx, id, price, now); err != nil {
			return err
		}
		s.logger.WithFields(log.Fields{
			"product_id": id,
			"old_price":  domain.FormatMoney(product.Price),
			"new_price":  domain.FormatMoney(price),
		}).Info("product price changed")

		product.Price = price
		product.UpdatedAt = now
		updated = product
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}

// SetInStock меняет признак наличия.
func (s *Service) SetInStock(ctx context.Context, id int64, inStock bool) (domain.Product, error) {
	var updated domain.Product
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		product, err := s.catalog.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := s.catalog.SetInStock(ctx, id, inStock, now); err != nil {
			return err
		}
		product.InStock = inStock
		product.UpdatedAt = now
		updated = product
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return updated, nil
}
