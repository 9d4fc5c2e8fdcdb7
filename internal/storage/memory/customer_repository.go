package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type customerRepository struct {
	store *Store
}

// NewCustomerRepository создаёт in-memory хранилище покупателей.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{store: store}
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	err := r.store.write(ctx, func(st *state) error {
		for _, existing := range st.customers {
			if strings.EqualFold(existing.Email, customer.Email) {
				return fmt.Errorf("%w: %s", domain.ErrCustomerExists, customer.Email)
			}
		}
		st.customerSeq++
		customer.ID = st.customerSeq
		customer.LifetimeSpend = domain.RoundMoney(customer.LifetimeSpend)
		st.customers[customer.ID] = customer
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (r *customerRepository) Get(ctx context.Context, id int64) (domain.Customer, error) {
	var customer domain.Customer
	err := r.store.read(ctx, func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrCustomerNotFound, id)
		}
		customer = c
		return nil
	})
	return customer, err
}

func (r *customerRepository) GetForUpdate(ctx context.Context, id int64) (domain.Customer, error) {
	if !r.store.inTx(ctx) {
		return domain.Customer{}, fmt.Errorf("get customer for update must run inside a transaction")
	}
	return r.Get(ctx, id)
}

func (r *customerRepository) SaveSpendAndRank(ctx context.Context, id int64, spend decimal.Decimal, rank domain.Rank, updatedAt time.Time) error {
	return r.update(ctx, id, func(c *domain.Customer) {
		c.LifetimeSpend = domain.RoundMoney(spend)
		c.Rank = rank
		c.UpdatedAt = updatedAt
	})
}

func (r *customerRepository) SetActive(ctx context.Context, id int64, active bool, updatedAt time.Time) error {
	return r.update(ctx, id, func(c *domain.Customer) {
		c.Active = active
		c.UpdatedAt = updatedAt
	})
}

func (r *customerRepository) UpdateProfile(ctx context.Context, id int64, name, phone, address string, updatedAt time.Time) error {
	return r.update(ctx, id, func(c *domain.Customer) {
		c.Name = name
		c.Phone = phone
		c.Address = address
		c.UpdatedAt = updatedAt
	})
}

func (r *customerRepository) update(ctx context.Context, id int64, mut func(c *domain.Customer)) error {
	return r.store.write(ctx, func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrCustomerNotFound, id)
		}
		mut(&c)
		st.customers[id] = c
		return nil
	})
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
