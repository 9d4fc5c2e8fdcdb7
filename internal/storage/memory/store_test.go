package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	store     *memory.Store
	catalog   domain.CatalogRepository
	customers domain.CustomerRepository
	orders    domain.OrderRepository
	carts     domain.CartRepository
	timeline  domain.TimelineRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	return fixture{
		store:     store,
		catalog:   memory.NewCatalogRepository(store),
		customers: memory.NewCustomerRepository(store),
		orders:    memory.NewOrderRepository(store),
		carts:     memory.NewCartRepository(store),
		timeline:  memory.NewTimelineRepository(store),
	}
}

func (f fixture) seedCustomer(t *testing.T, email string) domain.Customer {
	t.Helper()
	c, err := f.customers.Create(context.Background(), domain.Customer{
		Email:         email,
		Name:          "Ivan",
		LifetimeSpend: decimal.Zero,
		Rank:          domain.RankIron,
		Active:        true,
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}

func (f fixture) seedProduct(t *testing.T, price string) domain.Product {
	t.Helper()
	p, err := f.catalog.Create(context.Background(), domain.Product{
		Name:    "item " + price,
		Price:   decimal.RequireFromString(price),
		InStock: true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "10.00")

	boom := errors.New("boom")
	err := f.store.WithTx(ctx, func(ctx context.Context) error {
		if err := f.catalog.UpdatePrice(ctx, product.ID, decimal.RequireFromString("99.99"), time.Now()); err != nil {
			return err
		}
		if _, err := f.catalog.Create(ctx, domain.Product{Name: "ghost", Price: decimal.NewFromInt(1)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	stored, err := f.catalog.Get(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !stored.Price.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected price rollback to 10.00, got %s", stored.Price)
	}
	if _, err := f.catalog.Get(ctx, product.ID+1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected product created in rolled back tx to vanish, got %v", err)
	}
}

func TestStore_NestedWithTxReusesOuter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "5.00")

	err := f.store.WithTx(ctx, func(ctx context.Context) error {
		return f.store.WithTx(ctx, func(ctx context.Context) error {
			_, err := f.catalog.GetForUpdate(ctx, product.ID)
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested tx: %v", err)
	}
}

func TestStore_ForUpdateRequiresTx(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, "5.00")

	if _, err := f.catalog.GetForUpdate(ctx, product.ID); err == nil {
		t.Fatal("expected error outside transaction")
	}
	if _, err := f.catalog.ResolveForUpdate(ctx, []int64{product.ID}); err == nil {
		t.Fatal("expected error outside transaction")
	}
}

func TestStore_TransactionsSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, "race@example.com")

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = f.store.WithTx(ctx, func(ctx context.Context) error {
				c, err := f.customers.GetForUpdate(ctx, customer.ID)
				if err != nil {
					return err
				}
				spend := c.LifetimeSpend.Add(decimal.NewFromInt(100))
				return f.customers.SaveSpendAndRank(ctx, c.ID, spend, c.Rank, time.Now())
			})
		}()
	}
	wg.Wait()

	stored, err := f.customers.Get(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if !stored.LifetimeSpend.Equal(decimal.NewFromInt(100 * workers)) {
		t.Fatalf("expected lost-update free spend %d, got %s", 100*workers, stored.LifetimeSpend)
	}
}

func TestStore_ResolveForUpdateSkipsMissingAndDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedProduct(t, "1.00")
	b := f.seedProduct(t, "2.00")

	var products []domain.Product
	err := f.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		products, err = f.catalog.ResolveForUpdate(ctx, []int64{b.ID, 999, a.ID, b.ID})
		return err
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(products) != 2 || products[0].ID != a.ID || products[1].ID != b.ID {
		t.Fatalf("unexpected products: %+v", products)
	}
}

func TestCustomerRepository_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "dup@example.com")

	_, err := f.customers.Create(context.Background(), domain.Customer{Email: "DUP@example.com"})
	if !errors.Is(err, domain.ErrCustomerExists) {
		t.Fatalf("expected ErrCustomerExists, got %v", err)
	}
}

func TestCustomerRepository_SetActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.seedCustomer(t, "lock@example.com")

	if err := f.customers.SetActive(ctx, c.ID, false, time.Now()); err != nil {
		t.Fatalf("set active: %v", err)
	}
	stored, _ := f.customers.Get(ctx, c.ID)
	if stored.Active {
		t.Fatal("expected customer to be inactive")
	}
	if err := f.customers.SetActive(ctx, 404, false, time.Now()); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}
