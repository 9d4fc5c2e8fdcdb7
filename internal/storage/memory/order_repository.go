package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type orderRepository struct {
	store *Store
}

// NewOrderRepository создаёт in-memory реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{store: store}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	err := r.store.write(ctx, func(st *state) error {
		if _, ok := st.customers[order.CustomerID]; !ok {
			return fmt.Errorf("%w: %d", domain.ErrCustomerNotFound, order.CustomerID)
		}
		for _, item := range order.Items {
			if _, ok := st.products[item.ProductID]; !ok {
				return fmt.Errorf("%w: %d", domain.ErrProductNotFound, item.ProductID)
			}
		}

		order = copyOrder(order)
		st.orderSeq++
		order.ID = st.orderSeq
		for i := range order.Items {
			st.orderItemSeq++
			order.Items[i].ID = st.orderItemSeq
		}
		st.orders[order.ID] = copyOrder(order)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	var order domain.Order
	err := r.store.read(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
		}
		order = copyOrder(o)
		return nil
	})
	return order, err
}

func (r *orderRepository) GetForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	if !r.store.inTx(ctx) {
		return domain.Order{}, fmt.Errorf("get order for update must run inside a transaction")
	}
	return r.Get(ctx, id)
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]domain.Order, error) {
	return r.ListAll(ctx, domain.OrderFilter{CustomerID: customerID, Limit: limit})
}

func (r *orderRepository) ListAll(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	err := r.store.read(ctx, func(st *state) error {
		for _, o := range st.orders {
			if filter.CustomerID > 0 && o.CustomerID != filter.CustomerID {
				continue
			}
			if filter.Status != "" && o.Status != filter.Status {
				continue
			}
			orders = append(orders, copyOrder(o))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, completedAt *time.Time, updatedAt time.Time) error {
	return r.update(ctx, id, func(o *domain.Order) {
		o.Status = status
		if completedAt != nil {
			t := *completedAt
			o.CompletedAt = &t
		}
		o.UpdatedAt = updatedAt
	})
}

func (r *orderRepository) UpdateShipping(ctx context.Context, id int64, shipping domain.Shipping, updatedAt time.Time) error {
	return r.update(ctx, id, func(o *domain.Order) {
		o.Shipping = shipping
		o.UpdatedAt = updatedAt
	})
}

func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.orders[id]; !ok {
			return fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
		}
		delete(st.orders, id)
		delete(st.timeline, id)
		return nil
	})
}

func (r *orderRepository) Revenue(ctx context.Context, from, to time.Time) (domain.RevenueSummary, error) {
	summary := domain.RevenueSummary{
		From:     from,
		To:       to,
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Final:    decimal.Zero,
	}
	err := r.store.read(ctx, func(st *state) error {
		for _, o := range st.orders {
			if o.Status != domain.OrderStatusFulfilled || o.CompletedAt == nil {
				continue
			}
			if o.CompletedAt.Before(from) || !o.CompletedAt.Before(to) {
				continue
			}
			summary.Orders++
			summary.Subtotal = summary.Subtotal.Add(o.Subtotal)
			summary.Discount = summary.Discount.Add(o.Discount)
			summary.Final = summary.Final.Add(o.Final)
		}
		return nil
	})
	return summary, err
}

func (r *orderRepository) update(ctx context.Context, id int64, mut func(o *domain.Order)) error {
	return r.store.write(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
		}
		mut(&o)
		st.orders[id] = o
		return nil
	})
}

var _ domain.OrderRepository = (*orderRepository)(nil)
