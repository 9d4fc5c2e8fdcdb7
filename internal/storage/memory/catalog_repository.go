package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type catalogRepository struct {
	store *Store
}

// NewCatalogRepository создаёт in-memory каталог поверх общего Store.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{store: store}
}

func (r *catalogRepository) ResolveForUpdate(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if !r.store.inTx(ctx) {
		return nil, fmt.Errorf("resolve products for update must run inside a transaction")
	}

	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	products := make([]domain.Product, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		if p, ok := r.store.state.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (r *catalogRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	var product domain.Product
	err := r.store.read(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
		}
		product = p
		return nil
	})
	return product, err
}

func (r *catalogRepository) GetForUpdate(ctx context.Context, id int64) (domain.Product, error) {
	if !r.store.inTx(ctx) {
		return domain.Product{}, fmt.Errorf("get product for update must run inside a transaction")
	}
	return r.Get(ctx, id)
}

func (r *catalogRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	err := r.store.write(ctx, func(st *state) error {
		st.productSeq++
		product.ID = st.productSeq
		product.Price = domain.RoundMoney(product.Price)
		st.products[product.ID] = product
		return nil
	})
	return product, err
}

func (r *catalogRepository) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal, updatedAt time.Time) error {
	return r.update(ctx, id, func(p *domain.Product) {
		p.Price = domain.RoundMoney(price)
		p.UpdatedAt = updatedAt
	})
}

func (r *catalogRepository) SetInStock(ctx context.Context, id int64, inStock bool, updatedAt time.Time) error {
	return r.update(ctx, id, func(p *domain.Product) {
		p.InStock = inStock
		p.UpdatedAt = updatedAt
	})
}

func (r *catalogRepository) update(ctx context.Context, id int64, mut func(p *domain.Product)) error {
	return r.store.write(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
		}
		mut(&p)
		st.products[id] = p
		return nil
	})
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
