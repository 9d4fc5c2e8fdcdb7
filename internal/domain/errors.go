package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrorKind - стабильная категория ошибки, которую видит клиент.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindIllegalTransition ErrorKind = "illegal_transition"
	KindOrderLocked       ErrorKind = "order_locked"
	KindCustomerInactive  ErrorKind = "customer_inactive"
	KindConflict          ErrorKind = "conflict"
	KindInternal          ErrorKind = "internal"
)

var (
	// Ошибка пустого списка позиций при создании заказа.
	ErrEmptyCart = errors.New("cart is empty")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// Ошибка, если цена товара отрицательная.
	ErrInvalidPrice = errors.New("price must be non-negative")
	// Ошибка неизвестного значения статуса заказа.
	ErrInvalidStatus = errors.New("invalid order status")
	// Ошибка незаполненных полей доставки.
	ErrShippingRequired = errors.New("customer_name, customer_phone and customer_address are required")
	// Ошибка отсутствующего способа оплаты.
	ErrPaymentMethodRequired = errors.New("payment_method is required")
	// Ошибка попытки изменить недопустимое поле заказа.
	ErrFieldNotAllowed = errors.New("field is not allowed to update")
	// Ошибка пустого обновления.
	ErrNothingToUpdate = errors.New("nothing to update")
	// Ошибка попытки положить в корзину товар, которого нет в наличии.
	ErrProductOutOfStock = errors.New("product is out of stock")
	// Ошибка некорректной таблицы рангов.
	ErrInvalidRankTable = errors.New("invalid rank table")
	// Ошибка некорректного диапазона дат.
	ErrInvalidPeriod = errors.New("invalid period")
	// Ошибка пустого или некорректного email покупателя.
	ErrInvalidEmail = errors.New("valid email is required")
	// Ошибка пустого названия товара.
	ErrNameRequired = errors.New("name is required")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrCustomerNotFound возвращается, если покупатель не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrCartItemNotFound возвращается, если позиции нет в корзине.
	ErrCartItemNotFound = errors.New("cart item not found")

	// ErrIllegalTransition - переход статуса запрещён таблицей переходов.
	ErrIllegalTransition = errors.New("illegal order status transition")
	// ErrOrderLocked - заказ уже вышел из статуса pending и не может быть изменён.
	ErrOrderLocked = errors.New("order is locked: only pending orders can be changed")

	// ErrCustomerInactive - покупатель заблокирован и не может оформлять заказы
	// и менять корзину.
	ErrCustomerInactive = errors.New("customer account is inactive")

	// ErrCustomerExists - покупатель с таким email уже зарегистрирован.
	ErrCustomerExists = errors.New("customer already exists")
	// ErrOutboxPublish - ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ProductsNotFoundError перечисляет товары, которые не удалось найти при сборке заказа.
type ProductsNotFoundError struct {
	IDs []int64
}

// NewProductsNotFoundError копирует и сортирует список идентификаторов.
func NewProductsNotFoundError(ids []int64) *ProductsNotFoundError {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &ProductsNotFoundError{IDs: sorted}
}

func (e *ProductsNotFoundError) Error() string {
	parts := make([]string, 0, len(e.IDs))
	for _, id := range e.IDs {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return fmt.Sprintf("some products not found: %s", strings.Join(parts, ","))
}

// Is позволяет сравнивать ошибку с ErrProductNotFound через errors.Is.
func (e *ProductsNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// FieldsNotAllowedError перечисляет поля запроса, которые нельзя менять.
type FieldsNotAllowedError struct {
	Fields []string
}

// NewFieldsNotAllowedError копирует и сортирует имена полей.
func NewFieldsNotAllowedError(fields []string) *FieldsNotAllowedError {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	return &FieldsNotAllowedError{Fields: sorted}
}

func (e *FieldsNotAllowedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrFieldNotAllowed, strings.Join(e.Fields, ","))
}

// Is позволяет сравнивать ошибку с ErrFieldNotAllowed через errors.Is.
func (e *FieldsNotAllowedError) Is(target error) bool {
	return target == ErrFieldNotAllowed
}

// KindOf классифицирует ошибку для внешнего API.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrShippingRequired),
		errors.Is(err, ErrPaymentMethodRequired),
		errors.Is(err, ErrFieldNotAllowed),
		errors.Is(err, ErrNothingToUpdate),
		errors.Is(err, ErrProductOutOfStock),
		errors.Is(err, ErrInvalidRankTable),
		errors.Is(err, ErrInvalidPeriod),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrNameRequired):
		return KindValidation
	case errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrCustomerNotFound),
		errors.Is(err, ErrCartItemNotFound):
		return KindNotFound
	case errors.Is(err, ErrIllegalTransition):
		return KindIllegalTransition
	case errors.Is(err, ErrOrderLocked):
		return KindOrderLocked
	case errors.Is(err, ErrCustomerInactive):
		return KindCustomerInactive
	case errors.Is(err, ErrCustomerExists),
		errors.Is(err, ErrIdempotencyKeyAlreadyExists),
		errors.Is(err, ErrIdempotencyHashMismatch):
		return KindConflict
	default:
		return KindInternal
	}
}
