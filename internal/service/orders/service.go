package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Accrual начисляет сумму выполненного заказа покупателю внутри транзакции перехода.
type Accrual interface {
	ApplyFulfillment(ctx context.Context, customerID int64, amount decimal.Decimal) (decimal.Decimal, domain.Rank, error)
}

// CartClearer убирает заказанные товары из корзины, не трогая позиции,
// изменённые после orderedAt.
type CartClearer interface {
	ClearOrdered(ctx context.Context, customerID int64, productIDs []int64, orderedAt time.Time) error
}

// Repositories - хранилища, с которыми работает сервис заказов.
type Repositories struct {
	Tx        domain.TxManager
	Catalog   domain.CatalogRepository
	Customers domain.CustomerRepository
	Orders    domain.OrderRepository
	Timeline  domain.TimelineRepository
	Outbox    domain.OutboxRepository
}

// Options задаёт необязательные зависимости сервиса.
type Options struct {
	Logger  *log.Entry
	Clock   clock.Clock
	Metrics *metrics.OrderMetrics
	Carts   CartClearer
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithClock подменяет источник времени.
func WithClock(clk clock.Clock) Option {
	return func(opts *Options) {
		opts.Clock = clk
	}
}

// WithMetrics включает метрики заказов.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithCartClearer включает немедленную очистку корзины после оформления.
// Без него корзину очищает только outbox.
func WithCartClearer(carts CartClearer) Option {
	return func(opts *Options) {
		opts.Carts = carts
	}
}

// Service - оформление заказов и их жизненный цикл.
type Service struct {
	tx        domain.TxManager
	catalog   domain.CatalogRepository
	customers domain.CustomerRepository
	orders    domain.OrderRepository
	timeline  domain.TimelineRepository
	outbox    domain.OutboxRepository

	accrual Accrual
	carts   CartClearer
	ranks   domain.RankTable
	clock   clock.Clock
	metrics *metrics.OrderMetrics
	logger  *log.Entry
}

// NewService собирает сервис заказов.
func NewService(repos Repositories, accrual Accrual, ranks domain.RankTable, options ...Option) *Service {
	var opts Options
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}

	return &Service{
		tx:        repos.Tx,
		catalog:   repos.Catalog,
		customers: repos.Customers,
		orders:    repos.Orders,
		timeline:  repos.Timeline,
		outbox:    repos.Outbox,
		accrual:   accrual,
		carts:     opts.Carts,
		ranks:     ranks,
		clock:     clk,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

func (s *Service) enqueue(ctx context.Context, aggregateType string, aggregateID int64, eventType string, payload any) (domain.OutboxMessage, error) {
	msg, err := domain.NewOutboxMessage(aggregateType, aggregateID, eventType, payload, s.clock.Now())
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	stored, err := s.outbox.Enqueue(ctx, msg)
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	s.metrics.RecordOutboxEvent()
	return stored, nil
}

func (s *Service) appendTimeline(ctx context.Context, event domain.TimelineEvent) error {
	if err := s.timeline.Append(ctx, event); err != nil {
		return err
	}
	s.metrics.RecordTimelineEvent()
	return nil
}
