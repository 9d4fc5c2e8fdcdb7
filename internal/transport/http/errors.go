package http

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	codeNotFound              = "not_found"
	codeMethodNotAllowed      = "method_not_allowed"
	codeInvalidRequestBody    = "invalid_request_body"
	codeInvalidID             = "invalid_id"
	codeInvalidQuery          = "invalid_query"
	codeUnauthenticated       = "unauthenticated"
	codeForbidden             = "forbidden"
	codeIdempotencyConflict   = "idempotency_conflict"
	codeIdempotencyInProgress = "idempotency_in_progress"
	codeInternalError         = "internal_error"

	codeEmptyCart             = "empty_cart"
	codeInvalidQuantity       = "invalid_quantity"
	codeInvalidPrice          = "invalid_price"
	codeInvalidStatus         = "invalid_status"
	codeShippingRequired      = "shipping_required"
	codePaymentMethodRequired = "payment_method_required"
	codeFieldNotAllowed       = "field_not_allowed"
	codeNothingToUpdate       = "nothing_to_update"
	codeProductOutOfStock     = "product_out_of_stock"
	codeInvalidPeriod         = "invalid_period"
	codeInvalidEmail          = "invalid_email"
	codeNameRequired          = "name_required"
	codeProductsNotFound      = "products_not_found"
	codeOrderNotFound         = "order_not_found"
	codeProductNotFound       = "product_not_found"
	codeCustomerNotFound      = "customer_not_found"
	codeCartItemNotFound      = "cart_item_not_found"
	codeIllegalTransition     = "illegal_transition"
	codeOrderLocked           = "order_locked"
	codeCustomerExists        = "customer_exists"
	codeCustomerInactive      = "customer_inactive"
	codeConflict              = "conflict"
)

type errorResponse struct {
	Error      string   `json:"error"`
	Code       string   `json:"code"`
	ProductIDs []int64  `json:"product_ids,omitempty"`
	Fields     []string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorBody(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorBody(w http.ResponseWriter, status int, body errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(body)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// sentinelCodes сопоставляет доменные ошибки со стабильными кодами ответа.
var sentinelCodes = []struct {
	err  error
	code string
}{
	{domain.ErrEmptyCart, codeEmptyCart},
	{domain.ErrInvalidQuantity, codeInvalidQuantity},
	{domain.ErrInvalidPrice, codeInvalidPrice},
	{domain.ErrInvalidStatus, codeInvalidStatus},
	{domain.ErrShippingRequired, codeShippingRequired},
	{domain.ErrPaymentMethodRequired, codePaymentMethodRequired},
	{domain.ErrFieldNotAllowed, codeFieldNotAllowed},
	{domain.ErrNothingToUpdate, codeNothingToUpdate},
	{domain.ErrProductOutOfStock, codeProductOutOfStock},
	{domain.ErrInvalidPeriod, codeInvalidPeriod},
	{domain.ErrInvalidEmail, codeInvalidEmail},
	{domain.ErrNameRequired, codeNameRequired},
	{domain.ErrOrderNotFound, codeOrderNotFound},
	{domain.ErrProductNotFound, codeProductNotFound},
	{domain.ErrCustomerNotFound, codeCustomerNotFound},
	{domain.ErrCartItemNotFound, codeCartItemNotFound},
	{domain.ErrIllegalTransition, codeIllegalTransition},
	{domain.ErrOrderLocked, codeOrderLocked},
	{domain.ErrCustomerExists, codeCustomerExists},
	{domain.ErrCustomerInactive, codeCustomerInactive},
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindIllegalTransition, domain.KindConflict:
		return http.StatusConflict
	case domain.KindOrderLocked:
		return http.StatusLocked
	case domain.KindCustomerInactive:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError переводит ошибку сервиса в ответ. Внутренние ошибки
// логируются, клиенту уходит только общий текст.
func writeServiceError(w http.ResponseWriter, logger *log.Entry, err error) {
	kind := domain.KindOf(err)
	status := statusForKind(kind)

	if kind == domain.KindInternal {
		logger.WithError(err).Error("request failed")
		writeError(w, status, codeInternalError, "internal error")
		return
	}

	var missing *domain.ProductsNotFoundError
	if errors.As(err, &missing) {
		writeErrorBody(w, status, errorResponse{Error: err.Error(), Code: codeProductsNotFound, ProductIDs: missing.IDs})
		return
	}
	var rejected *domain.FieldsNotAllowedError
	if errors.As(err, &rejected) {
		writeErrorBody(w, status, errorResponse{Error: err.Error(), Code: codeFieldNotAllowed, Fields: rejected.Fields})
		return
	}

	code := string(kind)
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			code = sc.code
			break
		}
	}
	if code == string(domain.KindConflict) {
		code = codeConflict
	}
	writeError(w, status, code, err.Error())
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
}

func methodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})
}
