package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа. Множество значений закрыто.
type OrderStatus string

const (
	// OrderStatusPending - заказ создан, покупатель ещё может менять доставку или удалить его.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed - заказ подтверждён магазином.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipping - заказ передан в доставку.
	OrderStatusShipping OrderStatus = "shipping"
	// OrderStatusFulfilled - заказ выполнен, сумма зачтена в накопления покупателя.
	OrderStatusFulfilled OrderStatus = "fulfilled"
	// OrderStatusCancelled - заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipping, OrderStatusCancelled},
	OrderStatusShipping:  {OrderStatusFulfilled, OrderStatusCancelled},
	OrderStatusFulfilled: nil,
	OrderStatusCancelled: nil,
}

// OrderStatuses возвращает все известные статусы в порядке жизненного цикла.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusShipping,
		OrderStatusFulfilled,
		OrderStatusCancelled,
	}
}

// ParseOrderStatus нормализует строку (trim + lower) и проверяет, что статус известен.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// Valid проверяет, что статус входит в закрытое множество.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal - из статуса нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// AllowedTransitions возвращает копию списка допустимых целевых статусов.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	return append([]OrderStatus(nil), orderTransitions[s]...)
}

// CanTransitionTo проверяет переход по таблице. Переход в тот же статус запрещён.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CheckTransition возвращает ErrIllegalTransition с контекстом, если переход запрещён.
func (s OrderStatus) CheckTransition(target OrderStatus) error {
	if !target.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	if !s.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, target)
	}
	return nil
}

// Shipping - свободные поля доставки заказа.
type Shipping struct {
	Name    string
	Phone   string
	Address string
}

// Complete проверяет, что все поля доставки заполнены.
func (s Shipping) Complete() bool {
	return strings.TrimSpace(s.Name) != "" &&
		strings.TrimSpace(s.Phone) != "" &&
		strings.TrimSpace(s.Address) != ""
}

// LineItem - запрошенная позиция (товар + количество).
type LineItem struct {
	ProductID int64
	Quantity  int32
}

// OrderItem представляет одну позицию заказа с ценой, зафиксированной при создании.
type OrderItem struct {
	ID        int64
	ProductID int64
	Quantity  int32
	UnitPrice decimal.Decimal
}

// LineTotal - цена позиции с учётом количества.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID            int64
	CustomerID    int64
	Shipping      Shipping
	RankAtOrder   Rank
	BonusPercent  int
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Final         decimal.Decimal
	PaymentMethod string
	Status        OrderStatus
	Items         []OrderItem
	CreatedAt     time.Time
	CompletedAt   *time.Time
	UpdatedAt     time.Time
}

// Pending - покупатель ещё может менять заказ.
func (o *Order) Pending() bool {
	return o.Status == OrderStatusPending
}

// ProductIDs возвращает идентификаторы товаров заказа по возрастанию.
func (o *Order) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ValidateInvariants проверяет денежные инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Items) == 0 {
		errs = append(errs, ErrEmptyCart)
	}

	calc := decimal.Zero
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, fmt.Errorf("%w: product %d", ErrInvalidQuantity, item.ProductID))
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, fmt.Errorf("%w: product %d", ErrInvalidPrice, item.ProductID))
		}
		calc = calc.Add(item.LineTotal())
	}
	if !RoundMoney(calc).Equal(o.Subtotal) {
		errs = append(errs, fmt.Errorf("subtotal %s does not match items sum %s", FormatMoney(o.Subtotal), FormatMoney(calc)))
	}
	if !o.Subtotal.Sub(o.Discount).Equal(o.Final) {
		errs = append(errs, fmt.Errorf("final %s does not equal subtotal %s minus discount %s",
			FormatMoney(o.Final), FormatMoney(o.Subtotal), FormatMoney(o.Discount)))
	}
	if !o.Status.Valid() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidStatus, o.Status))
	}

	return errs
}

// CoalesceLines проверяет запрошенные позиции и объединяет дубли по товару.
// Сначала пустой список (ErrEmptyCart), затем неположительные количества (ErrInvalidQuantity).
// Результат отсортирован по ProductID, что задаёт порядок захвата блокировок.
func CoalesceLines(lines []LineItem) ([]LineItem, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d quantity %d", ErrInvalidQuantity, line.ProductID, line.Quantity)
		}
	}

	sums := make(map[int64]int64, len(lines))
	for _, line := range lines {
		sums[line.ProductID] += int64(line.Quantity)
	}

	merged := make([]LineItem, 0, len(sums))
	for id, qty := range sums {
		if qty > math.MaxInt32 {
			return nil, fmt.Errorf("%w: product %d quantity overflows", ErrInvalidQuantity, id)
		}
		merged = append(merged, LineItem{ProductID: id, Quantity: int32(qty)})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}

// Pricing - результат расчёта сумм заказа.
type Pricing struct {
	Items    []OrderItem
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Final    decimal.Decimal
}

// PriceLines считает позиции и суммы по ценам зафиксированных товаров.
// products должен содержать каждый товар из lines.
func PriceLines(lines []LineItem, products map[int64]Product, bonusPercent int) (Pricing, error) {
	if bonusPercent < 0 || bonusPercent > 100 {
		return Pricing{}, fmt.Errorf("%w: bonus percent %d", ErrInvalidRankTable, bonusPercent)
	}

	pricing := Pricing{Items: make([]OrderItem, 0, len(lines)), Subtotal: decimal.Zero}
	var missing []int64
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			missing = append(missing, line.ProductID)
			continue
		}
		item := OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: RoundMoney(product.Price),
		}
		pricing.Items = append(pricing.Items, item)
		pricing.Subtotal = pricing.Subtotal.Add(item.LineTotal())
	}
	if len(missing) > 0 {
		return Pricing{}, NewProductsNotFoundError(missing)
	}

	pricing.Subtotal = RoundMoney(pricing.Subtotal)
	pricing.Discount = RoundMoney(pricing.Subtotal.Mul(decimal.NewFromInt(int64(bonusPercent))).Div(decimal.NewFromInt(100)))
	pricing.Final = pricing.Subtotal.Sub(pricing.Discount)
	return pricing, nil
}

// RevenueSummary - агрегаты по выполненным заказам за период.
type RevenueSummary struct {
	From     time.Time
	To       time.Time
	Orders   int64
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Final    decimal.Decimal
}

// OrderFilter ограничивает выборку заказов для администратора.
type OrderFilter struct {
	CustomerID int64
	Status     OrderStatus
	Limit      int
}
