package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const customerColumns = `id, email, name, phone, address, lifetime_spend, rank, active, updated_at`

type customerRepository struct {
	store *Store
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{store: store}
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.store.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO customers (email, name, phone, address, lifetime_spend, rank, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
		RETURNING id`,
		customer.Email, customer.Name, customer.Phone, customer.Address,
		domain.RoundMoney(customer.LifetimeSpend), string(customer.Rank), customer.Active, customer.UpdatedAt,
	).Scan(&customer.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Customer{}, fmt.Errorf("%w: %s", domain.ErrCustomerExists, customer.Email)
		}
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) Get(ctx context.Context, id int64) (domain.Customer, error) {
	return r.get(ctx, id, "")
}

func (r *customerRepository) GetForUpdate(ctx context.Context, id int64) (domain.Customer, error) {
	if err := requireTx(ctx, "get customer for update"); err != nil {
		return domain.Customer{}, err
	}
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *customerRepository) get(ctx context.Context, id int64, lock string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		customer domain.Customer
		rank     string
	)
	err := r.store.conn(ctx).QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`+lock, id).Scan(
		&customer.ID, &customer.Email, &customer.Name, &customer.Phone, &customer.Address,
		&customer.LifetimeSpend, &rank, &customer.Active, &customer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, fmt.Errorf("%w: %d", domain.ErrCustomerNotFound, id)
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	customer.Rank = domain.Rank(rank)
	customer.UpdatedAt = customer.UpdatedAt.UTC()
	return customer, nil
}

func (r *customerRepository) SaveSpendAndRank(ctx context.Context, id int64, spend decimal.Decimal, rank domain.Rank, updatedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE customers
		SET lifetime_spend = $2,
		    rank = $3,
		    updated_at = $4
		WHERE id = $1`,
		id, domain.RoundMoney(spend), string(rank), updatedAt,
	)
	if err != nil {
		return fmt.Errorf("save customer spend: %w", err)
	}
	return expectAffected(res, fmt.Errorf("%w: %d", domain.ErrCustomerNotFound, id))
}

func (r *customerRepository) SetActive(ctx context.Context, id int64, active bool, updatedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `UPDATE customers SET active = $2, updated_at = $3 WHERE id = $1`, id, active, updatedAt)
	if err != nil {
		return fmt.Errorf("set customer active: %w", err)
	}
	return expectAffected(res, fmt.Errorf("%w: %d", domain.ErrCustomerNotFound, id))
}

func (r *customerRepository) UpdateProfile(ctx context.Context, id int64, name, phone, address string, updatedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE customers SET name = $2, phone = $3, address = $4, updated_at = $5
		WHERE id = $1`, id, name, phone, address, updatedAt)
	if err != nil {
		return fmt.Errorf("update customer profile: %w", err)
	}
	return expectAffected(res, fmt.Errorf("%w: %d", domain.ErrCustomerNotFound, id))
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
