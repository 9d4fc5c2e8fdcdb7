package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartRepository struct {
	store *Store
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{store: store}
}

func (r *cartRepository) ListItems(ctx context.Context, customerID int64) ([]domain.CartItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.store.conn(ctx).QueryContext(ctx, `
		SELECT product_id, quantity, added_at, updated_at
		FROM cart_items
		WHERE customer_id = $1 ORDER BY added_at, product_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0)
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.AddedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.AddedAt = item.AddedAt.UTC()
		item.UpdatedAt = item.UpdatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return items, nil
}

func (r *cartRepository) UpsertItem(ctx context.Context, customerID, productID int64, delta int32, now time.Time) (domain.CartItem, error) {
	if delta <= 0 {
		return domain.CartItem{}, domain.ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// WHERE в DO UPDATE не даёт количеству выйти за INTEGER: строка не
	// возвращается, и это ErrNoRows.
	item := domain.CartItem{}
	err := r.store.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO cart_items (customer_id, product_id, quantity, added_at, updated_at)
		VALUES ($1,$2,$3,$4,$4)
		ON CONFLICT (customer_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		WHERE cart_items.quantity <= 2147483647 - EXCLUDED.quantity
		RETURNING product_id, quantity, added_at, updated_at`,
		customerID, productID, delta, now,
	).Scan(&item.ProductID, &item.Quantity, &item.AddedAt, &item.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.CartItem{}, fmt.Errorf("%w: %d", domain.ErrCustomerNotFound, customerID)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CartItem{}, fmt.Errorf("%w: quantity overflow for product %d", domain.ErrInvalidQuantity, productID)
		}
		return domain.CartItem{}, fmt.Errorf("upsert cart item: %w", err)
	}
	item.AddedAt = item.AddedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

func (r *cartRepository) SetQuantity(ctx context.Context, customerID, productID int64, quantity int32, now time.Time) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3, updated_at = $4
		WHERE customer_id = $1 AND product_id = $2`, customerID, productID, quantity, now)
	if err != nil {
		return fmt.Errorf("set cart quantity: %w", err)
	}
	return expectAffected(res, fmt.Errorf("%w: product %d", domain.ErrCartItemNotFound, productID))
}

func (r *cartRepository) RemoveItem(ctx context.Context, customerID, productID int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `DELETE FROM cart_items WHERE customer_id = $1 AND product_id = $2`, customerID, productID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return expectAffected(res, fmt.Errorf("%w: product %d", domain.ErrCartItemNotFound, productID))
}

func (r *cartRepository) ClearItems(ctx context.Context, customerID int64, productIDs []int64, before time.Time) (int, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		DELETE FROM cart_items
		WHERE customer_id = $1 AND product_id = ANY($2::bigint[])`
	args := []any{customerID, int64Array(productIDs)}
	if !before.IsZero() {
		query += ` AND updated_at <= $3`
		args = append(args, before)
	}

	res, err := r.store.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear cart items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
