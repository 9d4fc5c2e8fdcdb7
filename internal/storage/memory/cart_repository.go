package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartRepository struct {
	store *Store
}

// NewCartRepository создаёт in-memory корзины.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{store: store}
}

func (r *cartRepository) ListItems(ctx context.Context, customerID int64) ([]domain.CartItem, error) {
	items := make([]domain.CartItem, 0)
	err := r.store.read(ctx, func(st *state) error {
		for _, item := range st.carts[customerID] {
			items = append(items, item)
		}
		return nil
	})
	sort.Slice(items, func(i, j int) bool {
		if !items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].AddedAt.Before(items[j].AddedAt)
		}
		return items[i].ProductID < items[j].ProductID
	})
	return items, err
}

func (r *cartRepository) UpsertItem(ctx context.Context, customerID, productID int64, delta int32, now time.Time) (domain.CartItem, error) {
	if delta <= 0 {
		return domain.CartItem{}, domain.ErrInvalidQuantity
	}

	var item domain.CartItem
	err := r.store.write(ctx, func(st *state) error {
		if _, ok := st.customers[customerID]; !ok {
			return fmt.Errorf("%w: %d", domain.ErrCustomerNotFound, customerID)
		}
		cart, ok := st.carts[customerID]
		if !ok {
			cart = make(map[int64]domain.CartItem)
			st.carts[customerID] = cart
		}
		existing, ok := cart[productID]
		if !ok {
			existing = domain.CartItem{ProductID: productID, AddedAt: now}
		}
		if existing.Quantity > math.MaxInt32-delta {
			return fmt.Errorf("%w: quantity overflow for product %d", domain.ErrInvalidQuantity, productID)
		}
		existing.Quantity += delta
		existing.UpdatedAt = now
		cart[productID] = existing
		item = existing
		return nil
	})
	return item, err
}

func (r *cartRepository) SetQuantity(ctx context.Context, customerID, productID int64, quantity int32, now time.Time) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return r.store.write(ctx, func(st *state) error {
		item, ok := st.carts[customerID][productID]
		if !ok {
			return fmt.Errorf("%w: product %d", domain.ErrCartItemNotFound, productID)
		}
		item.Quantity = quantity
		item.UpdatedAt = now
		st.carts[customerID][productID] = item
		return nil
	})
}

func (r *cartRepository) RemoveItem(ctx context.Context, customerID, productID int64) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.carts[customerID][productID]; !ok {
			return fmt.Errorf("%w: product %d", domain.ErrCartItemNotFound, productID)
		}
		delete(st.carts[customerID], productID)
		return nil
	})
}

func (r *cartRepository) ClearItems(ctx context.Context, customerID int64, productIDs []int64, before time.Time) (int, error) {
	removed := 0
	err := r.store.write(ctx, func(st *state) error {
		cart := st.carts[customerID]
		for _, id := range productIDs {
			item, ok := cart[id]
			if !ok || (!before.IsZero() && item.UpdatedAt.After(before)) {
				continue
			}
			delete(cart, id)
			removed++
		}
		return nil
	})
	return removed, err
}

var _ domain.CartRepository = (*cartRepository)(nil)
