package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TxManager выполняет fn в одной транзакции хранилища.
// Репозитории, вызванные с ctx внутри fn, работают в этой же транзакции.
// Ошибка fn откатывает транзакцию целиком.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CatalogRepository - источник цен и наличия товаров.
type CatalogRepository interface {
	// ResolveForUpdate возвращает найденные товары и держит на них эксклюзивную блокировку
	// до конца транзакции. Блокировки берутся по возрастанию id. Отсутствующие id просто не попадают в ответ.
	ResolveForUpdate(ctx context.Context, ids []int64) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetForUpdate(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	UpdatePrice(ctx context.Context, id int64, price decimal.Decimal, updatedAt time.Time) error
	SetInStock(ctx context.Context, id int64, inStock bool, updatedAt time.Time) error
}

// CustomerRepository хранит покупателей, их накопления и ранг.
type CustomerRepository interface {
	Create(ctx context.Context, customer Customer) (Customer, error)
	Get(ctx context.Context, id int64) (Customer, error)
	// GetForUpdate блокирует строку покупателя до конца транзакции.
	GetForUpdate(ctx context.Context, id int64) (Customer, error)
	SaveSpendAndRank(ctx context.Context, id int64, spend decimal.Decimal, rank Rank, updatedAt time.Time) error
	SetActive(ctx context.Context, id int64, active bool, updatedAt time.Time) error
	UpdateProfile(ctx context.Context, id int64, name, phone, address string, updatedAt time.Time) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями и возвращает его с присвоенными id.
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id int64) (Order, error)
	// GetForUpdate то же, что Get, но блокирует строку заказа до конца транзакции.
	GetForUpdate(ctx context.Context, id int64) (Order, error)
	// ListByCustomer возвращает заказы клиента от новых к старым, limit <= 0 - без ограничения.
	ListByCustomer(ctx context.Context, customerID int64, limit int) ([]Order, error)
	ListAll(ctx context.Context, filter OrderFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, status OrderStatus, completedAt *time.Time, updatedAt time.Time) error
	UpdateShipping(ctx context.Context, id int64, shipping Shipping, updatedAt time.Time) error
	Delete(ctx context.Context, id int64) error
	// Revenue агрегирует выполненные заказы с completed_at в [from, to).
	Revenue(ctx context.Context, from, to time.Time) (RevenueSummary, error)
}

// CartRepository хранит корзины: одна корзина на покупателя.
type CartRepository interface {
	ListItems(ctx context.Context, customerID int64) ([]CartItem, error)
	// UpsertItem добавляет товар или увеличивает количество одной операцией.
	// Переполнение int32 - ErrInvalidQuantity.
	UpsertItem(ctx context.Context, customerID, productID int64, delta int32, now time.Time) (CartItem, error)
	SetQuantity(ctx context.Context, customerID, productID int64, quantity int32, now time.Time) error
	RemoveItem(ctx context.Context, customerID, productID int64) error
	// ClearItems удаляет перечисленные товары, не менявшиеся позже before, и
	// возвращает число удалённых строк. Нулевой before снимает ограничение.
	ClearItems(ctx context.Context, customerID int64, productIDs []int64, before time.Time) (int, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID int64) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Типы событий outbox.
const (
	EventCartClearItems      = "cart.clear_items"
	EventOrderStatusChanged  = "order.status_changed"
	EventNotifyOrderCreated  = "notification.order_created"
	EventNotifyAccountLocked = "notification.account_locked"
	AggregateOrder           = "order"
	AggregateCustomer        = "customer"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
