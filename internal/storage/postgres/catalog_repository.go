package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const productColumns = `id, name, price, in_stock, updated_at`

type catalogRepository struct {
	store *Store
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{store: store}
}

func (r *catalogRepository) ResolveForUpdate(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if err := requireTx(ctx, "resolve products for update"); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// ORDER BY id задаёт единый порядок захвата блокировок для всех оформлений.
	rows, err := r.store.conn(ctx).QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1::bigint[]) ORDER BY id FOR UPDATE`, int64Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked products: %w", err)
	}

	return products, nil
}

func (r *catalogRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	return r.get(ctx, id, "")
}

func (r *catalogRepository) GetForUpdate(ctx context.Context, id int64) (domain.Product, error) {
	if err := requireTx(ctx, "get product for update"); err != nil {
		return domain.Product{}, err
	}
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *catalogRepository) get(ctx context.Context, id int64, lock string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.store.conn(ctx).QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`+lock, id)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}
	return product, err
}

func (r *catalogRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product.Price = domain.RoundMoney(product.Price)
	err := r.store.conn(ctx).QueryRowContext(ctx, `
		INSERT INTO products (name, price, in_stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$4)
		RETURNING id`,
		product.Name, product.Price, product.InStock, product.UpdatedAt,
	).Scan(&product.ID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return product, nil
}

func (r *catalogRepository) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal, updatedAt time.Time) error {
	return r.update(ctx, id, `UPDATE products SET price = $2, updated_at = $3 WHERE id = $1`, domain.RoundMoney(price), updatedAt)
}

func (r *catalogRepository) SetInStock(ctx context.Context, id int64, inStock bool, updatedAt time.Time) error {
	return r.update(ctx, id, `UPDATE products SET in_stock = $2, updated_at = $3 WHERE id = $1`, inStock, updatedAt)
}

func (r *catalogRepository) update(ctx context.Context, id int64, query string, value any, updatedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.conn(ctx).ExecContext(ctx, query, id, value, updatedAt)
	if err != nil {
		return fmt.Errorf("update product %d: %w", id, err)
	}
	return expectAffected(res, fmt.Errorf("%w: %d", domain.ErrProductNotFound, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var product domain.Product
	if err := row.Scan(&product.ID, &product.Name, &product.Price, &product.InStock, &product.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, err
		}
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}
	product.UpdatedAt = product.UpdatedAt.UTC()
	return product, nil
}

// int64Array собирает литерал массива Postgres ("{1,2,3}") с отсортированными уникальными id.
func int64Array(ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var b strings.Builder
	b.WriteByte('{')
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		if b.Len() > 1 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	b.WriteByte('}')
	return b.String()
}

// expectAffected возвращает notFound, если запрос не затронул ни одной строки.
func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
