package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Store - общее in-memory состояние всех репозиториев.
// Транзакция держит эксклюзивную блокировку всего хранилища, поэтому
// FOR UPDATE эмулируется тривиально: транзакции выполняются строго по очереди.
// При ошибке fn состояние восстанавливается из снимка.
type Store struct {
	mu    sync.RWMutex
	state *state
}

type txKey struct{}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{state: newState()}
}

// WithTx выполняет fn под эксклюзивной блокировкой с откатом при ошибке.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Ping всегда успешен; нужен для health-checker.
func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// read выполняет fn под read-блокировкой, если вызов не внутри транзакции.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.state)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// write выполняет fn под эксклюзивной блокировкой; одиночная запись атомарна сама по себе.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

type outboxRecord struct {
	msg      domain.OutboxMessage
	status   string
	attempts int
}

type state struct {
	customers   map[int64]domain.Customer
	products    map[int64]domain.Product
	carts       map[int64]map[int64]domain.CartItem
	orders      map[int64]domain.Order
	timeline    map[int64][]domain.TimelineEvent
	outbox      []*outboxRecord
	idempotency map[string]domain.IdempotencyRecord

	customerSeq  int64
	productSeq   int64
	orderSeq     int64
	orderItemSeq int64
}

func newState() *state {
	return &state{
		customers:   make(map[int64]domain.Customer),
		products:    make(map[int64]domain.Product),
		carts:       make(map[int64]map[int64]domain.CartItem),
		orders:      make(map[int64]domain.Order),
		timeline:    make(map[int64][]domain.TimelineEvent),
		idempotency: make(map[string]domain.IdempotencyRecord),
	}
}

func (st *state) clone() *state {
	cp := newState()
	for id, c := range st.customers {
		cp.customers[id] = c
	}
	for id, p := range st.products {
		cp.products[id] = p
	}
	for customerID, items := range st.carts {
		cart := make(map[int64]domain.CartItem, len(items))
		for productID, item := range items {
			cart[productID] = item
		}
		cp.carts[customerID] = cart
	}
	for id, o := range st.orders {
		cp.orders[id] = copyOrder(o)
	}
	for id, events := range st.timeline {
		cp.timeline[id] = append([]domain.TimelineEvent(nil), events...)
	}
	cp.outbox = make([]*outboxRecord, 0, len(st.outbox))
	for _, rec := range st.outbox {
		r := *rec
		cp.outbox = append(cp.outbox, &r)
	}
	for key, rec := range st.idempotency {
		cp.idempotency[key] = rec
	}
	cp.customerSeq = st.customerSeq
	cp.productSeq = st.productSeq
	cp.orderSeq = st.orderSeq
	cp.orderItemSeq = st.orderItemSeq
	return cp
}

// copyOrder отвязывает слайс позиций и указатель completedAt от хранимой копии.
func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		o.CompletedAt = &t
	}
	return o
}

var _ domain.TxManager = (*Store)(nil)
