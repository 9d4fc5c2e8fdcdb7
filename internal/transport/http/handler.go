package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/customers"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

// OrderService - операции с заказами, доступные через HTTP.
type OrderService interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (domain.Order, error)
	Get(ctx context.Context, orderID int64) (domain.Order, error)
	GetForCustomer(ctx context.Context, customerID, orderID int64) (domain.Order, error)
	ListForCustomer(ctx context.Context, customerID int64, limit int) ([]domain.Order, error)
	ListAll(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	Transition(ctx context.Context, orderID int64, target string) (domain.Order, error)
	UpdateShipping(ctx context.Context, customerID, orderID int64, update orders.ShippingUpdate) (domain.Order, error)
	Delete(ctx context.Context, customerID, orderID int64) error
	Timeline(ctx context.Context, orderID int64) ([]domain.TimelineEvent, error)
	Revenue(ctx context.Context, from, to time.Time) (domain.RevenueSummary, error)
}

// CartService - корзина текущего покупателя.
type CartService interface {
	List(ctx context.Context, customerID int64) ([]domain.CartItem, error)
	AddItem(ctx context.Context, customerID, productID int64, quantity int32) (domain.CartItem, error)
	SetQuantity(ctx context.Context, customerID, productID int64, quantity int32) error
	RemoveItem(ctx context.Context, customerID, productID int64) error
}

// CustomerService - профиль и статус учётной записи.
type CustomerService interface {
	Register(ctx context.Context, in customers.RegisterInput) (domain.Customer, error)
	Profile(ctx context.Context, id int64) (domain.Customer, error)
	UpdateProfile(ctx context.Context, id int64, update customers.ProfileUpdate) (domain.Customer, error)
	SetActive(ctx context.Context, id int64, active bool) (domain.Customer, error)
}

// CatalogService - административные операции с товарами.
type CatalogService interface {
	CreateProduct(ctx context.Context, in catalog.CreateProductInput) (domain.Product, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
	UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) (domain.Product, error)
	SetInStock(ctx context.Context, id int64, inStock bool) (domain.Product, error)
}

// Services - зависимости HTTP-слоя.
type Services struct {
	Orders      OrderService
	Carts       CartService
	Customers   CustomerService
	Catalog     CatalogService
	Idempotency domain.IdempotencyRepository
}

// Options - необязательные настройки Handler.
type Options struct {
	Logger         *log.Entry
	Clock          clock.Clock
	Location       *time.Location
	IdempotencyTTL time.Duration
}

// Option настраивает Handler.
type Option func(*Options)

// WithLogger задаёт logger для access-лога и ошибок.
func WithLogger(logger *log.Entry) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithClock подменяет часы (TTL idempotency-ключей).
func WithClock(clk clock.Clock) Option {
	return func(o *Options) { o.Clock = clk }
}

// WithLocation задаёт часовой пояс для временных меток в ответах.
func WithLocation(loc *time.Location) Option {
	return func(o *Options) { o.Location = loc }
}

// WithIdempotencyTTL задаёт срок хранения ответа по Idempotency-Key.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(o *Options) { o.IdempotencyTTL = ttl }
}

const defaultIdempotencyTTL = 24 * time.Hour

// Handler - HTTP API магазина.
type Handler struct {
	svc            Services
	logger         *log.Entry
	clock          clock.Clock
	render         renderer
	idempotencyTTL time.Duration
}

// NewHandler собирает Handler.
func NewHandler(svc Services, options ...Option) *Handler {
	opts := Options{IdempotencyTTL: defaultIdempotencyTTL}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "http")
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaultIdempotencyTTL
	}

	return &Handler{
		svc:            svc,
		logger:         opts.Logger,
		clock:          opts.Clock,
		render:         renderer{loc: opts.Location},
		idempotencyTTL: opts.IdempotencyTTL,
	}
}

// Routes возвращает router со всеми маршрутами API.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = notFoundHandler()
	r.MethodNotAllowedHandler = methodNotAllowedHandler()

	api := r.PathPrefix("/").Subrouter()
	api.Use(Authenticate)

	api.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}", h.getOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}", h.updateOrder).Methods(http.MethodPatch)
	api.HandleFunc("/orders/{id:[0-9]+}", h.deleteOrder).Methods(http.MethodDelete)

	api.HandleFunc("/cart", h.listCart).Methods(http.MethodGet)
	api.HandleFunc("/cart/items", h.addCartItem).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{productID:[0-9]+}", h.setCartItem).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{productID:[0-9]+}", h.removeCartItem).Methods(http.MethodDelete)

	api.HandleFunc("/me", h.profile).Methods(http.MethodGet)
	api.HandleFunc("/me", h.updateProfile).Methods(http.MethodPatch)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(RequireAdmin)

	admin.HandleFunc("/orders", h.adminListOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id:[0-9]+}", h.adminGetOrder).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id:[0-9]+}/status", h.adminUpdateStatus).Methods(http.MethodPut)
	admin.HandleFunc("/orders/{id:[0-9]+}/timeline", h.adminTimeline).Methods(http.MethodGet)
	admin.HandleFunc("/statistics/revenue", h.adminRevenue).Methods(http.MethodGet)
	admin.HandleFunc("/customers", h.adminRegisterCustomer).Methods(http.MethodPost)
	admin.HandleFunc("/customers/{id:[0-9]+}/status", h.adminSetCustomerStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/products", h.adminCreateProduct).Methods(http.MethodPost)
	admin.HandleFunc("/products/{id:[0-9]+}/price", h.adminUpdatePrice).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id:[0-9]+}/stock", h.adminSetInStock).Methods(http.MethodPut)

	return RequestLogger(h.logger)(r)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidID, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

// decodeStringPatch читает PATCH-тело из строковых полей. Если есть поля вне
// allowed, запрос отклоняется целиком, и в ответе перечислены все такие поля.
func (h *Handler) decodeStringPatch(w http.ResponseWriter, r *http.Request, allowed map[string]struct{}) (map[string]string, bool) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return nil, false
	}

	var rejected []string
	for field := range raw {
		if _, ok := allowed[field]; !ok {
			rejected = append(rejected, field)
		}
	}
	if len(rejected) > 0 {
		writeServiceError(w, h.logger, domain.NewFieldsNotAllowedError(rejected))
		return nil, false
	}

	values := make(map[string]string, len(raw))
	for field, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, field+" must be a string")
			return nil, false
		}
		values[field] = s
	}
	return values, true
}

func parsePositiveInt(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("must be positive: %d", id)
	}
	return id, nil
}
