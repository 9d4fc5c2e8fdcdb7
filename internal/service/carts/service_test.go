package carts_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/carts"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	svc       *carts.Service
	customers domain.CustomerRepository
	clock     *clock.Manual
	customer  domain.Customer
	inStock   domain.Product
	sold      domain.Product
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	catalog := memory.NewCatalogRepository(store)
	customers := memory.NewCustomerRepository(store)
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	customer, err := customers.Create(ctx, domain.Customer{Email: "cart@example.com", Rank: domain.RankIron, Active: true})
	require.NoError(t, err)
	inStock, err := catalog.Create(ctx, domain.Product{Name: "tea", Price: decimal.NewFromInt(3), InStock: true})
	require.NoError(t, err)
	sold, err := catalog.Create(ctx, domain.Product{Name: "coffee", Price: decimal.NewFromInt(5), InStock: false})
	require.NoError(t, err)

	return fixture{
		svc:       carts.NewService(store, memory.NewCartRepository(store), catalog, customers, clk, nil),
		customers: customers,
		clock:     clk,
		customer:  customer,
		inStock:   inStock,
		sold:      sold,
	}
}

func TestAddItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.svc.AddItem(ctx, f.customer.ID, f.inStock.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), item.Quantity)

	item, err = f.svc.AddItem(ctx, f.customer.ID, f.inStock.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), item.Quantity, "repeated add increments quantity")

	_, err = f.svc.AddItem(ctx, f.customer.ID, f.sold.ID, 1)
	require.ErrorIs(t, err, domain.ErrProductOutOfStock)

	_, err = f.svc.AddItem(ctx, f.customer.ID, 404, 1)
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = f.svc.AddItem(ctx, f.customer.ID, f.inStock.ID, 0)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.AddItem(ctx, 404, f.inStock.ID, 1)
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestAddItemRejectsInactiveCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.customers.SetActive(ctx, f.customer.ID, false, f.clock.Now()))

	_, err := f.svc.AddItem(ctx, f.customer.ID, f.inStock.ID, 1)
	require.ErrorIs(t, err, domain.ErrCustomerInactive)
	assert.Equal(t, domain.KindCustomerInactive, domain.KindOf(err))

	items, err := f.svc.List(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSetQuantityAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, f.customer.ID, f.inStock.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.SetQuantity(ctx, f.customer.ID, f.inStock.ID, 7))
	items, err := f.svc.List(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(7), items[0].Quantity)

	require.ErrorIs(t, f.svc.SetQuantity(ctx, f.customer.ID, f.inStock.ID, -1), domain.ErrInvalidQuantity)
	require.ErrorIs(t, f.svc.SetQuantity(ctx, f.customer.ID, f.sold.ID, 1), domain.ErrCartItemNotFound)

	require.NoError(t, f.svc.RemoveItem(ctx, f.customer.ID, f.inStock.ID))
	require.ErrorIs(t, f.svc.RemoveItem(ctx, f.customer.ID, f.inStock.ID), domain.ErrCartItemNotFound)
}

func TestClearOrderedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, f.customer.ID, f.inStock.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.ClearOrdered(ctx, f.customer.ID, []int64{f.inStock.ID, 404}, f.clock.Now()))
	require.NoError(t, f.svc.ClearOrdered(ctx, f.customer.ID, []int64{f.inStock.ID}, f.clock.Now()))
	require.NoError(t, f.svc.ClearOrdered(ctx, 9999, []int64{f.inStock.ID}, f.clock.Now()), "missing cart is not an error")
	require.NoError(t, f.svc.ClearOrdered(ctx, f.customer.ID, nil, f.clock.Now()))

	items, err := f.svc.List(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClearOrderedKeepsItemsChangedAfterOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddItem(ctx, f.customer.ID, f.inStock.ID, 1)
	require.NoError(t, err)
	orderedAt := f.clock.Now()

	f.clock.Advance(time.Minute)
	_, err = f.svc.AddItem(ctx, f.customer.ID, f.inStock.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.ClearOrdered(ctx, f.customer.ID, []int64{f.inStock.ID}, orderedAt))

	items, err := f.svc.List(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(3), items[0].Quantity)
}
