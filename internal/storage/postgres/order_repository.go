package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const orderColumns = `id, customer_id, customer_name, customer_phone, customer_address,
		rank_at_order, bonus_percent, subtotal_amount, discount_amount, final_amount,
		payment_method, status, created_at, completed_at, updated_at`

type orderRepository struct {
	store *Store
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{store: store}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	err := r.store.WithTx(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()

		q := r.store.conn(ctx)
		if err := q.QueryRowContext(ctx, `
			INSERT INTO orders (
				customer_id, customer_name, customer_phone, customer_address,
				rank_at_order, bonus_percent, subtotal_amount, discount_amount, final_amount,
				payment_method, status, created_at, completed_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			RETURNING id`,
			order.CustomerID, order.Shipping.Name, order.Shipping.Phone, order.Shipping.Address,
			string(order.RankAtOrder), order.BonusPercent, order.Subtotal, order.Discount, order.Final,
			order.PaymentMethod, string(order.Status), order.CreatedAt, order.CompletedAt, order.UpdatedAt,
		).Scan(&order.ID); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: %d", domain.ErrCustomerNotFound, order.CustomerID)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			if err := q.QueryRowContext(ctx, `
				INSERT INTO order_items (order_id, product_id, quantity, unit_price)
				VALUES ($1,$2,$3,$4)
				RETURNING id`,
				order.ID, item.ProductID, item.Quantity, item.UnitPrice,
			).Scan(&item.ID); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	return r.get(ctx, id, "")
}

func (r *orderRepository) GetForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	if err := requireTx(ctx, "get order for update"); err != nil {
		return domain.Order{}, err
	}
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *orderRepository) get(ctx context.Context, id int64, lock string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.store.conn(ctx).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`+lock, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
		}
		return domain.Order{}, err
	}

	orders := []domain.Order{order}
	if err := r.attachItems(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]domain.Order, error) {
	return r.ListAll(ctx, domain.OrderFilter{CustomerID: customerID, Limit: limit})
}

func (r *orderRepository) ListAll(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if filter.CustomerID > 0 {
		args = append(args, filter.CustomerID)
		where = append(where, "customer_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.store.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	// Внутри транзакции соединение одно: позиции читаем только после закрытия курсора.
	rows.Close()

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, completedAt *time.Time, updatedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    completed_at = COALESCE($3, completed_at),
		    updated_at = $4
		WHERE id = $1`,
		id, string(status), completedAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return expectAffected(res, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id))
}

func (r *orderRepository) UpdateShipping(ctx context.Context, id int64, shipping domain.Shipping, updatedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE orders
		SET customer_name = $2,
		    customer_phone = $3,
		    customer_address = $4,
		    updated_at = $5
		WHERE id = $1`,
		id, shipping.Name, shipping.Phone, shipping.Address, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order shipping: %w", err)
	}
	return expectAffected(res, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id))
}

func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return expectAffected(res, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id))
}

func (r *orderRepository) Revenue(ctx context.Context, from, to time.Time) (domain.RevenueSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	summary := domain.RevenueSummary{From: from, To: to}
	err := r.store.conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(subtotal_amount), 0),
		       COALESCE(SUM(discount_amount), 0),
		       COALESCE(SUM(final_amount), 0)
		FROM orders
		WHERE status = 'fulfilled' AND completed_at >= $1 AND completed_at < $2`, from, to,
	).Scan(&summary.Orders, &summary.Subtotal, &summary.Discount, &summary.Final)
	if err != nil {
		return domain.RevenueSummary{}, fmt.Errorf("revenue query: %w", err)
	}
	summary.Subtotal = domain.RoundMoney(summary.Subtotal)
	summary.Discount = domain.RoundMoney(summary.Discount)
	summary.Final = domain.RoundMoney(summary.Final)
	return summary, nil
}

// attachItems одним запросом подгружает позиции для всех заказов.
func (r *orderRepository) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[int64]int, len(orders))
	ids := make([]int64, 0, len(orders))
	for i := range orders {
		index[orders[i].ID] = i
		ids = append(ids, orders[i].ID)
		orders[i].Items = make([]domain.OrderItem, 0)
	}

	rows, err := r.store.conn(ctx).QueryContext(ctx, `
		SELECT order_id, id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1::bigint[]) ORDER BY order_id, product_id`, int64Array(ids))
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order       domain.Order
		rank        string
		status      string
		completedAt sql.NullTime
	)
	err := row.Scan(
		&order.ID, &order.CustomerID, &order.Shipping.Name, &order.Shipping.Phone, &order.Shipping.Address,
		&rank, &order.BonusPercent, &order.Subtotal, &order.Discount, &order.Final,
		&order.PaymentMethod, &status, &order.CreatedAt, &completedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}

	order.RankAtOrder = domain.Rank(rank)
	order.Status = domain.OrderStatus(status)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		order.CompletedAt = &t
	}
	return order, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
