package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики оформления и жизненного цикла заказов.
type OrderMetrics struct {
	// Оформление
	ordersCreated    prometheus.Counter
	createFailures   *prometheus.CounterVec
	assemblyDuration prometheus.Histogram

	// Переходы статусов
	transitions        *prometheus.CounterVec
	transitionFailures *prometheus.CounterVec
	fulfilledRevenue   prometheus.Counter

	// Побочные эффекты
	cartClearFailures prometheus.Counter
	timelineEvents    prometheus.Counter
	outboxEvents      prometheus.Counter
}

// NewOrderMetrics регистрирует метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Total number of orders assembled successfully",
		}),
		createFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_create_failures_total",
			Help: "Total number of failed order assemblies by error kind",
		}, []string{"kind"}),
		assemblyDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_order_assembly_duration_seconds",
			Help:    "Duration of the order assembly transaction in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Total number of applied order status transitions",
		}, []string{"from", "to"}),
		transitionFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_transition_failures_total",
			Help: "Total number of rejected order status transitions by error kind",
		}, []string{"kind"}),
		fulfilledRevenue: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_fulfilled_revenue_total",
			Help: "Sum of final amounts of fulfilled orders",
		}),
		cartClearFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_clear_failures_total",
			Help: "Total number of failed immediate cart clearings after order assembly",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated учитывает успешно оформленный заказ и длительность транзакции.
func (m *OrderMetrics) RecordOrderCreated(duration time.Duration) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.assemblyDuration.Observe(duration.Seconds())
}

// RecordCreateFailure учитывает неудачное оформление.
func (m *OrderMetrics) RecordCreateFailure(kind string) {
	if m == nil {
		return
	}
	m.createFailures.WithLabelValues(kind).Inc()
}

// RecordTransition учитывает применённый переход статуса.
func (m *OrderMetrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordTransitionFailure учитывает отклонённый переход.
func (m *OrderMetrics) RecordTransitionFailure(kind string) {
	if m == nil {
		return
	}
	m.transitionFailures.WithLabelValues(kind).Inc()
}

// RecordFulfilledRevenue добавляет итоговую сумму выполненного заказа.
func (m *OrderMetrics) RecordFulfilledRevenue(amount float64) {
	if m == nil || amount < 0 {
		return
	}
	m.fulfilledRevenue.Add(amount)
}

// RecordCartClearFailure увеличивает счётчик неудачных очисток корзины.
func (m *OrderMetrics) RecordCartClearFailure() {
	if m == nil {
		return
	}
	m.cartClearFailures.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}
